// Package qdrant implements the vector index on a Qdrant collection,
// talking to the engine over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 6334
	DefaultCollection = "KBCollection_LinkedIn"
	DefaultTimeout    = 10 * time.Second
)

// Payload keys stored with every point.
const (
	keyText       = "text"
	keyDocumentID = "document_id"
	keyFilename   = "filename"
	keyChunkIndex = "chunk_index"
	keyCreatedAt  = "created_at"
	keySourceURL  = "source_url"
)

// Config holds connection settings.
type Config struct {
	Host       string
	Port       int
	Collection string

	// Timeout bounds every call to the engine.
	Timeout time.Duration
}

// Index is a Qdrant-backed vector index.
type Index struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	timeout     time.Duration
}

// New creates a client for the configured collection. The connection is
// established lazily by gRPC; the first call surfaces reachability.
func New(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant connect %s: %v", domain.ErrIndexUnavailable, addr, err)
	}
	return &Index{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
		timeout:     cfg.Timeout,
	}, nil
}

// Collection returns the collection name.
func (i *Index) Collection() string {
	return i.collection
}

func (i *Index) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, i.timeout)
}

// EnsureCollection creates the collection with cosine distance if it is
// absent, otherwise checks that its vector size matches dimension.
func (i *Index) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}
	ctx, cancel := i.bounded(ctx)
	defer cancel()

	exists, err := i.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: i.collection})
	if err != nil {
		return mapError("collection exists", err)
	}
	if exists.GetResult().GetExists() {
		return i.checkDimension(ctx, dimension)
	}

	_, err = i.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(dimension), Distance: pb.Distance_Cosine},
		}},
	})
	if status.Code(err) == codes.AlreadyExists {
		// Lost a creation race; validate the winner's schema.
		return i.checkDimension(ctx, dimension)
	}
	if err != nil {
		return mapError("create collection", err)
	}
	logger.Info("created collection %s (%d dimensions, cosine)", i.collection, dimension)

	fieldType := pb.FieldType_FieldTypeInteger
	_, err = i.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: i.collection,
		Wait:           ptr(true),
		FieldName:      keyDocumentID,
		FieldType:      &fieldType,
	})
	if err != nil {
		// Filtering works without the index, only slower.
		logger.Warn("create payload index on %s: %v", keyDocumentID, err)
	}
	return nil
}

func (i *Index) checkDimension(ctx context.Context, dimension int) error {
	info, err := i.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: i.collection})
	if err != nil {
		return mapError("get collection", err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != uint64(dimension) {
		return fmt.Errorf("%w: collection %s has %d dimensions, embedding model produces %d",
			domain.ErrSchemaMismatch, i.collection, size, dimension)
	}
	return nil
}

// Dimension returns the vector size of the existing collection, or 0
// when it does not exist.
func (i *Index) Dimension(ctx context.Context) (int, error) {
	ctx, cancel := i.bounded(ctx)
	defer cancel()

	exists, err := i.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: i.collection})
	if err != nil {
		return 0, mapError("collection exists", err)
	}
	if !exists.GetResult().GetExists() {
		return 0, nil
	}
	info, err := i.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: i.collection})
	if err != nil {
		return 0, mapError("get collection", err)
	}
	return int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()), nil
}

// Upsert writes every point in one request and waits for it to apply.
func (i *Index) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*pb.PointStruct, len(points))
	for n, p := range points {
		structs[n] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: toPayload(p.Payload),
		}
	}

	ctx, cancel := i.bounded(ctx)
	defer cancel()
	_, err := i.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: i.collection,
		Wait:           ptr(true),
		Points:         structs,
	})
	if err != nil {
		return mapError("upsert", err)
	}
	return nil
}

// Search returns the nearest points. The score threshold is applied by
// the engine before the limit.
func (i *Index) Search(ctx context.Context, vector []float32, topK int, minConfidence *float64) ([]domain.ScoredPoint, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := &pb.SearchPoints{
		CollectionName: i.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if minConfidence != nil {
		req.ScoreThreshold = ptr(float32(*minConfidence))
	}

	ctx, cancel := i.bounded(ctx)
	defer cancel()
	resp, err := i.points.Search(ctx, req)
	if err != nil {
		return nil, mapError("search", err)
	}

	results := make([]domain.ScoredPoint, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		// Cosine scores can be negative; confidence stays in [0, 1].
		score := math.Max(0, math.Min(1, float64(pt.GetScore())))
		// float32 rounding must not let a hit slip under the threshold.
		if minConfidence != nil && score < *minConfidence {
			continue
		}
		results = append(results, domain.ScoredPoint{
			ID:      pt.GetId().GetUuid(),
			Score:   score,
			Payload: fromPayload(pt.GetPayload()),
		})
	}
	return results, nil
}

// Count returns the exact number of points, optionally for one document.
func (i *Index) Count(ctx context.Context, documentID *int64) (int, error) {
	req := &pb.CountPoints{CollectionName: i.collection, Exact: ptr(true)}
	if documentID != nil {
		req.Filter = &pb.Filter{Must: []*pb.Condition{matchInt(keyDocumentID, *documentID)}}
	}

	ctx, cancel := i.bounded(ctx)
	defer cancel()
	resp, err := i.points.Count(ctx, req)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, mapError("count", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// DeleteDocument removes the document's points from fromIndex onwards.
func (i *Index) DeleteDocument(ctx context.Context, documentID int64, fromIndex int) error {
	must := []*pb.Condition{matchInt(keyDocumentID, documentID)}
	if fromIndex > 0 {
		must = append(must, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   keyChunkIndex,
			Range: &pb.Range{Gte: ptr(float64(fromIndex))},
		}}})
	}

	ctx, cancel := i.bounded(ctx)
	defer cancel()
	_, err := i.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: i.collection,
		Wait:           ptr(true),
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{
			Filter: &pb.Filter{Must: must},
		}},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return mapError("delete", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (i *Index) Close() error {
	return i.conn.Close()
}

func matchInt(key string, v int64) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
		Key:   key,
		Match: &pb.Match{MatchValue: &pb.Match_Integer{Integer: v}},
	}}}
}

func toPayload(p domain.ChunkPayload) map[string]*pb.Value {
	payload := map[string]*pb.Value{
		keyText:       {Kind: &pb.Value_StringValue{StringValue: p.Text}},
		keyDocumentID: {Kind: &pb.Value_IntegerValue{IntegerValue: p.DocumentID}},
		keyFilename:   {Kind: &pb.Value_StringValue{StringValue: p.Filename}},
		keyChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.ChunkIndex)}},
		keyCreatedAt:  {Kind: &pb.Value_StringValue{StringValue: p.CreatedAt.UTC().Format(time.RFC3339)}},
	}
	if p.SourceURL != "" {
		payload[keySourceURL] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: p.SourceURL}}
	}
	return payload
}

func fromPayload(payload map[string]*pb.Value) domain.ChunkPayload {
	created, _ := time.Parse(time.RFC3339, payload[keyCreatedAt].GetStringValue())
	return domain.ChunkPayload{
		DocumentID: payload[keyDocumentID].GetIntegerValue(),
		ChunkIndex: int(payload[keyChunkIndex].GetIntegerValue()),
		Filename:   payload[keyFilename].GetStringValue(),
		Text:       payload[keyText].GetStringValue(),
		SourceURL:  payload[keySourceURL].GetStringValue(),
		CreatedAt:  created,
	}
}

// mapError wraps every engine failure as ErrIndexUnavailable so callers
// never mistake a transport error for an empty result.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: qdrant %s: %w", domain.ErrIndexUnavailable, op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: qdrant %s: %v", domain.ErrIndexUnavailable, op, err)
	}
	return fmt.Errorf("%w: qdrant %s: %s: %s", domain.ErrIndexUnavailable, op, st.Code(), st.Message())
}

func ptr[T any](v T) *T {
	return &v
}
