package camera

import (
	"fmt"
	"log/slog"
)

// NewSource creates a camera source with the given configuration.
// If cfg.Backend is BackendAuto, the gocv backend is used. It is only
// available in binaries built with -tags gocv.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = BackendGoCV
	}

	logger.Info("creating camera source",
		"backend", backend,
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"framerate", cfg.Framerate,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendFile:
		return NewFileSource(cfg, logger), nil
	case BackendGoCV:
		return newGoCVSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// AvailableBackends returns the backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendFile, BackendMock}
	if gocvBuilt {
		backends = append([]Backend{BackendGoCV}, backends...)
	}
	return backends
}
