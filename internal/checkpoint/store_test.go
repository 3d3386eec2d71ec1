package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSummary(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("summary"), 0o600))
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has("https://x.test/a"))

	writeSummary(t, dir, "x.test_a.txt")
	s.Put("https://x.test/a", "x.test_a.txt")
	require.NoError(t, s.Flush())

	// A fresh open sees the persisted entry.
	reopened, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	name, ok := reopened.Get("https://x.test/a")
	require.True(t, ok)
	assert.Equal(t, "x.test_a.txt", name)
	assert.True(t, reopened.Has("https://x.test/a"))
}

func TestStaleEntryIsTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	writeSummary(t, dir, "x.test_a.txt")
	s.Put("https://x.test/a", "x.test_a.txt")
	require.NoError(t, s.Flush())

	require.NoError(t, os.Remove(filepath.Join(dir, "x.test_a.txt")))

	reopened, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, reopened.Has("https://x.test/a"))
	_, ok := reopened.Get("https://x.test/a")
	assert.False(t, ok)
	// The stale entry is still carried in the file until overwritten.
	assert.Equal(t, 1, reopened.Len())
}

func TestFlushIsAtomicRewrite(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	writeSummary(t, dir, "a.txt")
	writeSummary(t, dir, "b.txt")
	s.Put("https://x.test/a", "a.txt")
	require.NoError(t, s.Flush())
	s.Put("https://x.test/b", "b.txt")
	require.NoError(t, s.Flush())

	// No leftover temp files.
	matches, err := filepath.Glob(filepath.Join(dir, FileName+".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	reopened, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	assert.True(t, reopened.Has("https://x.test/a"))
	assert.True(t, reopened.Has("https://x.test/b"))
}

func TestOpenRejectsCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o600))

	_, err := Open(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode checkpoint")
}
