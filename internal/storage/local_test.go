package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalStorage_WriteAndOpen(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStorage(t.TempDir())

	n, err := local.Write(ctx, "deep/nested/file.txt", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("content")), n)

	body, err := local.Open(ctx, "deep/nested/file.txt")
	require.NoError(t, err)
	defer body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(body)
	require.NoError(t, err)
	assert.Equal(t, "content", buf.String())
}

func TestLocalStorage_OpenMissing(t *testing.T) {
	local := NewLocalStorage(t.TempDir())
	_, err := local.Open(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_ReadInto(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")

	local := NewLocalStorage(root)
	var buf bytes.Buffer
	require.NoError(t, local.ReadInto(context.Background(), "a.txt", &buf))
	assert.Equal(t, "hello", buf.String())

	err := local.ReadInto(context.Background(), "missing.txt", &buf)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_ListDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dir", "a.txt"), "aaa")
	writeFile(t, filepath.Join(root, "dir", "sub", "b.txt"), "bbb")

	local := NewLocalStorage(root)
	objects, err := local.List(context.Background(), "dir")
	require.NoError(t, err)
	require.Len(t, objects, 2)

	assert.Equal(t, "a.txt", objects[0].Key)
	assert.Equal(t, "sub/b.txt", objects[1].Key)

	expected, err := ComputeETag(bytes.NewReader([]byte("aaa")))
	require.NoError(t, err)
	assert.Equal(t, expected, objects[0].ETag)
}

func TestLocalStorage_ListSingleFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "only.txt"), "only")

	local := NewLocalStorage(root)
	objects, err := local.List(context.Background(), "only.txt")
	require.NoError(t, err)
	require.Len(t, objects, 1)

	// the relative path of an object to itself is empty
	assert.Equal(t, "", objects[0].Key)
}

func TestLocalStorage_ListMissing(t *testing.T) {
	local := NewLocalStorage(t.TempDir())
	objects, err := local.List(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalStorage_AbsoluteKeys(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	abs := filepath.Join(other, "x.txt")
	writeFile(t, abs, "abs")

	local := NewLocalStorage(root)
	var buf bytes.Buffer
	require.NoError(t, local.ReadInto(context.Background(), abs, &buf))
	assert.Equal(t, "abs", buf.String())
}
