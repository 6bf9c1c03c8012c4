package camera

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock camera for testing.
// It renders a bar that sweeps across a gray background.
type MockSource struct {
	live

	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stopCh  chan struct{}
	done    chan struct{}

	startErr error
	delay    time.Duration

	framesGenerated atomic.Int64
	starts          atomic.Int64
	position        int
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithStartError makes Start fail, simulating a missing or denied device.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// WithPlaybackDelay postpones the first frame after Start.
func WithPlaybackDelay(d time.Duration) MockSourceOption {
	return func(m *MockSource) {
		m.delay = d
	}
}

// NewMockSource creates a new mock camera source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:    cfg,
		logger: logger,
	}

	m.rearm()
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating frames.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.rearm()
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.starts.Add(1)

	go m.generateLoop(ctx, m.stopCh, m.done)

	m.logger.Info("mock camera started",
		"width", m.cfg.Width,
		"height", m.cfg.Height,
		"framerate", m.cfg.Framerate,
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}

	m.publish(m.render())

	ticker := time.NewTicker(time.Second / time.Duration(m.cfg.Framerate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.publish(m.render())
		}
	}
}

func (m *MockSource) render() image.Image {
	w, h := m.cfg.Width, m.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bg := color.RGBA{R: 96, G: 96, B: 96, A: 255}
	bar := color.RGBA{R: 240, G: 200, B: 40, A: 255}
	barWidth := w / 10
	if barWidth < 1 {
		barWidth = 1
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= m.position && x < m.position+barWidth {
				img.SetRGBA(x, y, bar)
			} else {
				img.SetRGBA(x, y, bg)
			}
		}
	}

	m.position = (m.position + barWidth) % w
	m.framesGenerated.Add(1)
	return img
}

// Stop halts frame generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("mock camera stopped", "frames", m.framesGenerated.Load())
	return nil
}

// Close stops the source permanently.
func (m *MockSource) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Running reports whether frames are being generated.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts returns how many times playback has been started.
func (m *MockSource) Starts() int64 {
	return m.starts.Load()
}

// FramesGenerated returns the number of frames rendered so far.
func (m *MockSource) FramesGenerated() int64 {
	return m.framesGenerated.Load()
}
