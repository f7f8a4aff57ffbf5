package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	err := s.WriteJSON(ctx, "audits/2025/12/10/index.json", map[string]int{"count": 2})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "audits/2025/12/10/index.json")
	require.NoError(t, err)
	assert.True(t, ok)

	var got map[string]int
	require.NoError(t, s.ReadJSON(ctx, "audits/2025/12/10/index.json", &got))
	assert.Equal(t, 2, got["count"])
}

func TestSQLiteStore_OverwriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	require.NoError(t, s.WriteJSON(ctx, "k.json", map[string]string{"v": "first"}))
	require.NoError(t, s.WriteJSON(ctx, "k.json", map[string]string{"v": "second"}))

	var got map[string]string
	require.NoError(t, s.ReadJSON(ctx, "k.json", &got))
	assert.Equal(t, "second", got["v"])
}

func TestSQLiteStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	var v any
	err := s.ReadJSON(ctx, "missing.json", &v)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	err = s.Download(ctx, "missing.json", filepath.Join(t.TempDir(), "out"))
	assert.True(t, IsNotFound(err))
}

func TestSQLiteStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	for _, key := range []string{
		"audits/2025/12/10/processed/a.json",
		"audits/2025/12/10/processed/b.json",
		"audits/2025/12/10/failed/c.json",
	} {
		require.NoError(t, s.WriteJSON(ctx, key, map[string]string{}))
	}

	keys, err := s.List(ctx, "audits/2025/12/10/processed/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"audits/2025/12/10/processed/a.json",
		"audits/2025/12/10/processed/b.json",
	}, keys)
}

func TestSQLiteStore_UploadDownload(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	tmp := t.TempDir()

	src := filepath.Join(tmp, "vale.jpg")
	require.NoError(t, os.WriteFile(src, []byte{0xff, 0xd8, 0xff}, 0o644))
	require.NoError(t, s.Upload(ctx, src, "images/vale.jpg"))

	dest := filepath.Join(tmp, "copy.jpg")
	require.NoError(t, s.Download(ctx, "images/vale.jpg", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}
