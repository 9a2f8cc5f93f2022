package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
)

// Sentinel errors for snapshot uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrInvalidObjectPath   = errors.New("invalid object path")
)

// Allowed evidence MIME types.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// SnapshotStorage stores webcam evidence on local disk under UploadDir.
// Stored objects are served from /uploads.
type SnapshotStorage struct {
	cfg *config.Config
}

// NewSnapshotStorage creates a new SnapshotStorage.
func NewSnapshotStorage(cfg *config.Config) *SnapshotStorage {
	return &SnapshotStorage{cfg: cfg}
}

// Upload implements proctor.ObjectStorage and returns the public URL path.
func (s *SnapshotStorage) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, len(data), s.cfg.MaxUploadBytes)
	}

	key, err := cleanObjectKey(bucket, objectPath, ext)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(s.cfg.UploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return "/uploads/" + key, nil
}

// cleanObjectKey rejects keys that would escape the bucket directory.
func cleanObjectKey(bucket, objectPath, ext string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidObjectPath, bucket)
	}
	cleaned := path.Clean("/" + objectPath)
	if cleaned == "/" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectPath, objectPath)
	}
	if path.Ext(cleaned) != ext {
		cleaned += ext
	}
	return bucket + cleaned, nil
}
