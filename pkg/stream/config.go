package stream

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/teslashibe/go-checkin/pkg/frame"
)

// Default session settings.
const (
	DefaultURL              = "ws://localhost:8000/ws"
	DefaultInterval         = 500 * time.Millisecond
	DefaultMaxInFlight      = 2
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPlaybackTimeout  = 10 * time.Second
)

// Config holds session configuration.
type Config struct {
	// URL is the WebSocket endpoint frames are streamed to.
	URL string

	// Interval is the sampling period. Kiosks use 500ms, desk
	// check-in stations 1s.
	Interval time.Duration

	// Quality is the JPEG quality (1-100).
	Quality int

	// MaxInFlight bounds concurrent encodes. A tick that finds the budget
	// used up is skipped.
	MaxInFlight int

	// Canvas size. Zero means the source's intrinsic size.
	Width  int
	Height int

	// Scale stretches frames over the canvas instead of drawing them at
	// the origin.
	Scale bool

	// ReloadDelay, when set, pauses the camera after a result and lets
	// Kiosk start a fresh session once it elapses.
	ReloadDelay time.Duration

	// NotifyErrors shows socket errors to the user, not just the log.
	NotifyErrors bool

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// PlaybackTimeout bounds the wait for the camera's first frame.
	PlaybackTimeout time.Duration
}

// DefaultConfig returns the kiosk defaults.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		Interval:         DefaultInterval,
		Quality:          frame.DefaultQuality,
		MaxInFlight:      DefaultMaxInFlight,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		PlaybackTimeout:  DefaultPlaybackTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme))
	}

	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, errors.New("quality must be between 1 and 100"))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, errors.New("max in-flight encodes must be at least 1"))
	}
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, errors.New("canvas size must not be negative"))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, errors.New("canvas width and height must be set together"))
	}
	if c.ReloadDelay < 0 {
		errs = append(errs, errors.New("reload delay must not be negative"))
	}
	if c.HandshakeTimeout <= 0 || c.WriteTimeout <= 0 || c.PlaybackTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}

	return errors.Join(errs...)
}
