package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-checkin/pkg/camera"
	"github.com/teslashibe/go-checkin/pkg/present"
)

// Kiosk runs sessions back to back on one camera. After a completed
// session it waits cfg.ReloadDelay, restarts the camera and opens a new
// session. Any other outcome ends the loop, so there is still no reconnect
// after a socket failure.
//
// With a zero ReloadDelay Kiosk runs exactly one session.
func Kiosk(ctx context.Context, cfg Config, source camera.Source, presenter present.Presenter, navigator present.Navigator, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for n := 1; ; n++ {
		s, err := New(cfg, source, presenter, navigator, logger.With("session", n))
		if err != nil {
			return err
		}

		err = s.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || cfg.ReloadDelay <= 0 {
			return err
		}

		logger.Info("session completed, reloading camera", "session", n, "delay", cfg.ReloadDelay)
		select {
		case <-time.After(cfg.ReloadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
