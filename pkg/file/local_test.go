package file_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediakit/pkg/file"
)

func newLocal(t *testing.T) (*file.LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := file.NewLocalStorage(dir, "/files")
	require.NoError(t, err)
	return storage, dir
}

func TestNewLocalStorage(t *testing.T) {
	t.Parallel()

	t.Run("empty base dir", func(t *testing.T) {
		t.Parallel()
		storage, err := file.NewLocalStorage("", "/")
		assert.ErrorIs(t, err, file.ErrInvalidConfig)
		assert.Nil(t, storage)
	})

	t.Run("creates missing base dir", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "public", "nested")
		_, err := file.NewLocalStorage(dir, "")
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestLocalStorage_Write(t *testing.T) {
	t.Parallel()

	t.Run("writes into nested directory", func(t *testing.T) {
		t.Parallel()
		storage, dir := newLocal(t)
		content := []byte("hello world")

		n, err := storage.Write(context.Background(), "uploads/post/hello.txt", bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), n)

		data, err := os.ReadFile(filepath.Join(dir, "uploads", "post", "hello.txt"))
		require.NoError(t, err)
		assert.Equal(t, content, data)

		info, err := os.Stat(filepath.Join(dir, "uploads", "post", "hello.txt"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
	})

	t.Run("never overwrites", func(t *testing.T) {
		t.Parallel()
		storage, dir := newLocal(t)
		ctx := context.Background()

		_, err := storage.Write(ctx, "a.txt", strings.NewReader("first"))
		require.NoError(t, err)

		_, err = storage.Write(ctx, "a.txt", strings.NewReader("second"))
		assert.ErrorIs(t, err, file.ErrFileExists)

		data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
	})

	t.Run("path traversal", func(t *testing.T) {
		t.Parallel()
		storage, _ := newLocal(t)

		_, err := storage.Write(context.Background(), "../../../etc/passwd", strings.NewReader("x"))
		assert.ErrorIs(t, err, file.ErrInvalidPath)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		storage, dir := newLocal(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.Write(ctx, "c.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoFileExists(t, filepath.Join(dir, "c.txt"))
	})

	t.Run("read failure removes partial file", func(t *testing.T) {
		t.Parallel()
		storage, dir := newLocal(t)

		_, err := storage.Write(context.Background(), "broken.bin", failingReader{})
		assert.ErrorIs(t, err, file.ErrFailedToReadFile)
		assert.NoFileExists(t, filepath.Join(dir, "broken.bin"))
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestLocalStorage_Move(t *testing.T) {
	t.Parallel()

	t.Run("moves file", func(t *testing.T) {
		t.Parallel()
		storage, dir := newLocal(t)
		ctx := context.Background()
		_, err := storage.Write(ctx, "incoming/raw.bin", strings.NewReader("payload"))
		require.NoError(t, err)

		require.NoError(t, storage.Move(ctx, "incoming/raw.bin", "uploads/post/1/raw.bin"))

		assert.NoFileExists(t, filepath.Join(dir, "incoming", "raw.bin"))
		data, err := os.ReadFile(filepath.Join(dir, "uploads", "post", "1", "raw.bin"))
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("destination taken", func(t *testing.T) {
		t.Parallel()
		storage, dir := newLocal(t)
		ctx := context.Background()
		_, err := storage.Write(ctx, "src.txt", strings.NewReader("src"))
		require.NoError(t, err)
		_, err = storage.Write(ctx, "dst.txt", strings.NewReader("dst"))
		require.NoError(t, err)

		err = storage.Move(ctx, "src.txt", "dst.txt")
		assert.ErrorIs(t, err, file.ErrFileExists)

		data, err := os.ReadFile(filepath.Join(dir, "dst.txt"))
		require.NoError(t, err)
		assert.Equal(t, "dst", string(data))
		assert.FileExists(t, filepath.Join(dir, "src.txt"))
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		storage, _ := newLocal(t)
		err := storage.Move(context.Background(), "nope.txt", "dst.txt")
		assert.ErrorIs(t, err, file.ErrFileNotFound)
	})
}

func TestLocalStorage_Copy(t *testing.T) {
	t.Parallel()
	storage, dir := newLocal(t)
	ctx := context.Background()
	_, err := storage.Write(ctx, "a/photo.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	require.NoError(t, storage.Copy(ctx, "a/photo.jpg", "b/photo.jpg"))

	for _, p := range []string{"a/photo.jpg", "b/photo.jpg"} {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", string(data))
	}

	assert.ErrorIs(t, storage.Copy(ctx, "a/photo.jpg", "b/photo.jpg"), file.ErrFileExists)
	assert.ErrorIs(t, storage.Copy(ctx, "a/missing.jpg", "b/other.jpg"), file.ErrFileNotFound)
}

func TestLocalStorage_Delete(t *testing.T) {
	t.Parallel()
	storage, dir := newLocal(t)
	ctx := context.Background()
	_, err := storage.Write(ctx, "delete-me.txt", strings.NewReader("bye"))
	require.NoError(t, err)
	require.NoError(t, storage.MakeDir(ctx, "somedir"))

	require.NoError(t, storage.Delete(ctx, "delete-me.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "delete-me.txt"))

	assert.ErrorIs(t, storage.Delete(ctx, "delete-me.txt"), file.ErrFileNotFound)
	assert.ErrorIs(t, storage.Delete(ctx, "somedir"), file.ErrIsDirectory)
	assert.ErrorIs(t, storage.Delete(ctx, "../outside.txt"), file.ErrInvalidPath)
}

func TestLocalStorage_ExistsAndMakeDir(t *testing.T) {
	t.Parallel()
	storage, dir := newLocal(t)
	ctx := context.Background()

	assert.False(t, storage.Exists(ctx, "uploads/post"))
	require.NoError(t, storage.MakeDir(ctx, "uploads/post"))
	assert.True(t, storage.Exists(ctx, "uploads/post"))
	assert.DirExists(t, filepath.Join(dir, "uploads", "post"))

	assert.False(t, storage.Exists(ctx, "../../etc"))
}

func TestLocalStorage_URL(t *testing.T) {
	t.Parallel()
	storage, _ := newLocal(t)

	assert.Equal(t, "/files/uploads/photo.jpg", storage.URL("uploads/photo.jpg"))
	assert.Equal(t, "/files/uploads/photo.jpg", storage.URL("uploads/./photo.jpg"))
	assert.Equal(t, "/abs/photo.jpg", storage.URL("/abs/photo.jpg"))
}
