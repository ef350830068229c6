package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b.srt"), ReplaceExt(filepath.Join("a", "b.mp3"), "srt"))
	assert.Equal(t, filepath.Join("a", "b.srt"), ReplaceExt(filepath.Join("a", "b.mp3"), ".srt"))
	assert.Equal(t, "noext.srt", ReplaceExt("noext", "srt"))
	assert.Equal(t, "", ReplaceExt("", "srt"))
}

func TestInsertSuffix(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b_part001.mp3"),
		InsertSuffix(filepath.Join("a", "b.mp3"), "_part001"))
	assert.Equal(t, "noext_downsampled", InsertSuffix("noext", "_downsampled"))
	assert.Equal(t, filepath.Join("a", "b.mp3"), InsertSuffix(filepath.Join("a", "b.mp3"), ""))
}

func TestNewestWithExtAfter(t *testing.T) {
	dir := t.TempDir()
	start := time.Now().Add(-time.Hour)

	older := filepath.Join(dir, "older.mp3")
	newer := filepath.Join(dir, "newer.mp3")
	other := filepath.Join(dir, "ignored.txt")

	require.NoError(t, os.WriteFile(older, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("c"), 0644))

	halfOld := time.Now().Add(-30 * time.Minute)
	require.NoError(t, os.Chtimes(older, halfOld, halfOld))

	got, err := NewestWithExtAfter(dir, "mp3", start)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = NewestWithExtAfter(dir, ".flac", start)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
