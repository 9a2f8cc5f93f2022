package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
)

func newStorage(t *testing.T) (*SnapshotStorage, string) {
	t.Helper()
	dir := t.TempDir()
	return NewSnapshotStorage(&config.Config{UploadDir: dir, MaxUploadBytes: 1024}), dir
}

func TestSnapshotUploadWritesFile(t *testing.T) {
	s, dir := newStorage(t)
	data := []byte{0xFF, 0xD8, 0xFF, 0xD9}

	url, err := s.Upload(bg, "proctoring-snapshots", "attempt-1/1700000000000.jpg", data, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/proctoring-snapshots/attempt-1/1700000000000.jpg", url)

	got, err := os.ReadFile(filepath.Join(dir, "proctoring-snapshots", "attempt-1", "1700000000000.jpg"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSnapshotUploadAppendsExtension(t *testing.T) {
	s, _ := newStorage(t)

	url, err := s.Upload(bg, "bucket", "a/b", []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/bucket/a/b.png", url)
}

func TestSnapshotUploadRejects(t *testing.T) {
	s, _ := newStorage(t)

	_, err := s.Upload(bg, "bucket", "a.gif", []byte("x"), "image/gif")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = s.Upload(bg, "bucket", "a.jpg", make([]byte, 2048), "image/jpeg")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	for _, p := range []string{"../escape.jpg", "a/../../b.jpg", ""} {
		_, err = s.Upload(bg, "bucket", p, []byte("x"), "image/jpeg")
		assert.ErrorIs(t, err, ErrInvalidObjectPath, p)
	}
	_, err = s.Upload(bg, "../etc", "a.jpg", []byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidObjectPath)
}
