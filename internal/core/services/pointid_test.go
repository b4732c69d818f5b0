package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID(t *testing.T) {
	id := PointID(7, 3)
	assert.Equal(t, id, PointID(7, 3), "ids are deterministic")
	assert.NotEqual(t, id, PointID(7, 4))
	assert.NotEqual(t, id, PointID(8, 3))

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestStoredFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		original string
		suffix   string
	}{
		{"report.pdf", "_report.pdf"},
		{"Annual Report (final).PDF", "_Annual_Report_final.pdf"},
		{"../../etc/passwd.pdf", "_passwd.pdf"},
		{`C:\Users\me\cv.pdf`, "_cv.pdf"},
		{".pdf", "_document.pdf"},
		{"", "_document.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			name := StoredFilename(tt.original, now)
			assert.Regexp(t, `^20240309_140507_[0-9a-f]{8}_`, name)
			assert.Equal(t, tt.suffix, name[len("20240309_140507_")+8:])
		})
	}

	assert.NotEqual(t, StoredFilename("a.pdf", now), StoredFilename("a.pdf", now), "names do not collide")
}
