// Package camera provides video-only frame sources for the check-in client.
//
// This package supports multiple backends:
//   - gocv - OpenCV VideoCapture on a local device (production)
//   - file - a still image replayed as a live stream (demos, kiosks without a camera)
//   - mock - synthetic moving test pattern (CI/testing without hardware)
package camera

import (
	"errors"
	"fmt"
)

// Backend represents the camera backend type.
type Backend string

const (
	// BackendAuto selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendGoCV captures from a local device through OpenCV.
	BackendGoCV Backend = "gocv"
	// BackendFile replays a still image.
	BackendFile Backend = "file"
	// BackendMock generates a synthetic test pattern.
	BackendMock Backend = "mock"
)

// Limits accepted by Validate.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// Config holds camera configuration.
type Config struct {
	// Backend specifies which camera backend to use.
	Backend Backend `json:"backend"`

	// Device is the capture device index (gocv only).
	Device int `json:"device"`

	// Requested capture resolution. The device may pick the nearest mode;
	// Source.Size reports what was actually delivered.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Framerate is how often the source refreshes its current frame.
	Framerate int `json:"framerate"`

	// Path is the image replayed by the file backend.
	Path string `json:"path,omitempty"`
}

// DefaultConfig returns a 640x480 capture at 30 fps.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendAuto,
		Device:    0,
		Width:     640,
		Height:    480,
		Framerate: 30,
	}
}

// Validate checks if the config values are within valid ranges.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendAuto, BackendGoCV, BackendMock:
	case BackendFile:
		if c.Path == "" {
			errs = append(errs, errors.New("path is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	if c.Device < 0 {
		errs = append(errs, errors.New("device must not be negative"))
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errs = append(errs, fmt.Errorf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errs = append(errs, fmt.Errorf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errs = append(errs, fmt.Errorf("framerate must be between 1 and %d", MaxFramerate))
	}

	return errors.Join(errs...)
}
