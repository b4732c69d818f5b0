package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PointID returns the stable vector point id for a chunk. Re-ingesting a
// document reproduces the same ids, so upserts overwrite in place.
func PointID(documentID int64, chunkIndex int) string {
	name := fmt.Sprintf("sercha-kb:doc:%d:chunk:%d", documentID, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// maxStemLength bounds the sanitized part of a stored filename.
const maxStemLength = 100

// StoredFilename builds a collision-free name for an artifact:
// YYYYmmdd_HHMMSS_<8 hex>_<sanitized original>.pdf
func StoredFilename(original string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Trim(unsafeFilenameChars.ReplaceAllString(stem, "_"), "._-")
	if stem == "" {
		stem = "document"
	}
	if len(stem) > maxStemLength {
		stem = stem[:maxStemLength]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s.pdf", now.UTC().Format("20060102_150405"), suffix, stem)
}
