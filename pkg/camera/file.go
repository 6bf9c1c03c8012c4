package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// FileSource replays a still image as if it were a live stream.
type FileSource struct {
	live

	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewFileSource creates a source for cfg.Path.
func NewFileSource(cfg Config, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileSource{cfg: cfg, logger: logger}
	s.rearm()
	return s
}

// Start decodes the image; playback begins immediately.
func (s *FileSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode image %s: %w", s.cfg.Path, err)
	}

	s.rearm()
	s.running = true
	s.publish(img)

	b := img.Bounds()
	s.logger.Info("file camera started", "path", s.cfg.Path, "format", format, "width", b.Dx(), "height", b.Dy())
	return nil
}

// Stop pauses playback.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Close stops the source permanently.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	return nil
}

// Name returns "file".
func (s *FileSource) Name() string {
	return string(BackendFile)
}
