package proctor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/metrics"
)

const (
	snapshotQuality        = 70
	fallbackSnapshotWidth  = 640
	fallbackSnapshotHeight = 480
)

var errNoFrameSource = errors.New("no video sink attached")

// SnapshotCapturer turns the current video frame into stored evidence.
type SnapshotCapturer struct {
	storage ObjectStorage
	bucket  string
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time
}

// NewSnapshotCapturer creates a SnapshotCapturer for one session.
func NewSnapshotCapturer(storage ObjectStorage, cfg Config, log zerolog.Logger) *SnapshotCapturer {
	return &SnapshotCapturer{
		storage: storage,
		bucket:  SnapshotBucket,
		cfg:     cfg,
		log:     log.With().Str("component", "snapshot_capturer").Logger(),
		now:     time.Now,
	}
}

// SnapshotPath builds {userId}/{studentId}/{attemptId}/{epochMillis}.jpg.
func SnapshotPath(cfg Config, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%d.jpg", cfg.UserID, cfg.StudentID, cfg.AttemptID, at.UnixMilli())
}

// Capture grabs one frame from src and uploads it. It reports ok=false on
// any failure and never returns an error.
func (c *SnapshotCapturer) Capture(ctx context.Context, src FrameSource) (path string, ok bool) {
	data, err := c.encode(src)
	if err != nil {
		metrics.SnapshotFailuresTotal.Inc()
		c.log.Warn().Err(err).Str("attempt_id", c.cfg.AttemptID.String()).Msg("Snapshot capture failed")
		return "", false
	}

	key := SnapshotPath(c.cfg, c.now())
	stored, err := c.storage.Upload(ctx, c.bucket, key, data, "image/jpeg")
	if err != nil {
		metrics.SnapshotFailuresTotal.Inc()
		c.log.Warn().Err(err).Str("path", key).Msg("Snapshot upload failed")
		return "", false
	}
	return stored, true
}

func (c *SnapshotCapturer) encode(src FrameSource) ([]byte, error) {
	if src == nil {
		return nil, errNoFrameSource
	}
	frame, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if frame == nil {
		return nil, errors.New("empty frame")
	}

	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		w, h = fallbackSnapshotWidth, fallbackSnapshotHeight
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), frame, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
