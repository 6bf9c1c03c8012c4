//go:build gocv

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// GoCVSource captures from a local camera through OpenCV.
type GoCVSource struct {
	live

	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	capture *gocv.VideoCapture
	running bool
	closed  bool
	stopCh  chan struct{}
	done    chan struct{}

	framesRead atomic.Int64
	readErrors atomic.Int64
}

// gocvBuilt reports whether the binary was built with -tags gocv.
const gocvBuilt = true

func newGoCVSource(cfg Config, logger *slog.Logger) (Source, error) {
	return NewGoCVSource(cfg, logger), nil
}

// NewGoCVSource creates a source for device cfg.Device.
func NewGoCVSource(cfg Config, logger *slog.Logger) *GoCVSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GoCVSource{cfg: cfg, logger: logger}
	s.rearm()
	return s
}

// Start opens the capture device and begins reading frames.
func (s *GoCVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(s.cfg.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", s.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: device not available", s.cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(s.cfg.Framerate))

	s.capture = vc
	s.running = true
	s.rearm()
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.readLoop(ctx, vc, s.stopCh, s.done)

	s.logger.Info("camera started", "device", s.cfg.Device)
	return nil
}

// readLoop keeps the current frame fresh. VideoCapture.Read blocks until
// the device delivers, so the device sets the pace.
func (s *GoCVSource) readLoop(ctx context.Context, vc *gocv.VideoCapture, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if ok := vc.Read(&mat); !ok || mat.Empty() {
			if s.readErrors.Add(1)%30 == 1 {
				s.logger.Warn("camera read failed", "device", s.cfg.Device, "errors", s.readErrors.Load())
			}
			select {
			case <-time.After(time.Second / time.Duration(s.cfg.Framerate)):
			case <-stop:
				return
			}
			continue
		}

		img, err := mat.ToImage()
		if err != nil {
			s.logger.Debug("frame conversion failed", "error", err)
			continue
		}

		s.framesRead.Add(1)
		s.publish(img)
	}
}

// Stop halts capture and releases the device.
func (s *GoCVSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done, vc := s.done, s.capture
	s.capture = nil
	s.mu.Unlock()

	<-done
	s.logger.Info("camera stopped", "device", s.cfg.Device, "frames", s.framesRead.Load())
	return vc.Close()
}

// Close stops the source permanently.
func (s *GoCVSource) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// Name returns "gocv".
func (s *GoCVSource) Name() string {
	return string(BackendGoCV)
}
