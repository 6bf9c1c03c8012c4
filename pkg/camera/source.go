package camera

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
)

var (
	// ErrNoFrame is returned by Frame before playback has started.
	ErrNoFrame = errors.New("no frame available")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("camera source closed")
)

// Source is a live, video-only camera stream.
type Source interface {
	// Start acquires the device and begins playback.
	// An error here is an acquisition failure (device missing or denied).
	Start(ctx context.Context) error

	// Stop pauses playback and releases the device.
	// It is safe to call Stop multiple times; Start may be called again.
	Stop() error

	// Ready is closed once the first frame of the current playback is
	// available. A new channel is handed out after each Start.
	Ready() <-chan struct{}

	// Frame returns the current frame, or ErrNoFrame before Ready.
	Frame() (image.Image, error)

	// Size returns the intrinsic size of the stream, 0x0 before Ready.
	Size() (width, height int)

	// Name returns the backend name (e.g., "gocv", "file", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// live holds the current frame of a playing source. Backends embed it.
type live struct {
	mu        sync.RWMutex
	latest    image.Image
	ready     chan struct{}
	readyOnce *sync.Once
}

// rearm forgets the current frame and hands out a fresh Ready channel.
func (l *live) rearm() {
	l.mu.Lock()
	l.latest = nil
	l.ready = make(chan struct{})
	l.readyOnce = &sync.Once{}
	l.mu.Unlock()
}

func (l *live) publish(img image.Image) {
	l.mu.Lock()
	l.latest = img
	ready, once := l.ready, l.readyOnce
	l.mu.Unlock()

	once.Do(func() { close(ready) })
}

// Ready implements Source.
func (l *live) Ready() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Frame implements Source.
func (l *live) Frame() (image.Image, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latest == nil {
		return nil, ErrNoFrame
	}
	return l.latest, nil
}

// Size implements Source.
func (l *live) Size() (int, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latest == nil {
		return 0, 0
	}
	b := l.latest.Bounds()
	return b.Dx(), b.Dy()
}
