package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "plots", "exploration")

	require.NoError(t, fs.MkdirAll(dir, 0o755))
	assert.True(t, fs.Exists(dir))

	name := filepath.Join(dir, "summary.txt")
	require.NoError(t, fs.WriteFile(name, []byte("m50"), 0o644))
	data, err := fs.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "m50", string(data))

	w, err := fs.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte("m10"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err = os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "m10", string(data))

	assert.False(t, fs.Exists(filepath.Join(dir, "missing.png")))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	data := []byte("hello, world")
	require.NoError(t, mfs.WriteFile("/out/test.txt", data, 0o644))
	data[0] = 'j'

	got, err := mfs.ReadFile("/out/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(got), "stored data must not alias the caller's slice")
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/created.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("created "))
	require.NoError(t, err)
	_, err = w.Write([]byte("content"))
	require.NoError(t, err)

	got, err := mfs.ReadFile("/out/created.txt")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, w.Close())
	got, err = mfs.ReadFile("/out/created.txt")
	require.NoError(t, err)
	assert.Equal(t, "created content", string(got))
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	_, err := NewMemoryFileSystem().ReadFile("/nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryFileSystem_MkdirAllAndFiles(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/out/plots/a", 0o755))
	assert.True(t, mfs.Exists("/out"))
	assert.True(t, mfs.Exists("/out/plots"))
	assert.True(t, mfs.Exists("/out/plots/a"))

	require.NoError(t, mfs.WriteFile("/out/b.txt", nil, 0o644))
	require.NoError(t, mfs.WriteFile("/out/plots/a/c.png", nil, 0o644))
	require.NoError(t, mfs.WriteFile("/other/d.txt", nil, 0o644))

	assert.Equal(t, []string{"/out/b.txt", "/out/plots/a/c.png"}, mfs.Files("/out"))
}
