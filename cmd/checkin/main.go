// checkin: camera check-in client.
// Streams camera frames to the check-in server until it answers with a
// result, then shows it and navigates to the attendance page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-checkin/internal/config"
	"github.com/teslashibe/go-checkin/internal/log"
	"github.com/teslashibe/go-checkin/pkg/camera"
	"github.com/teslashibe/go-checkin/pkg/present"
	"github.com/teslashibe/go-checkin/pkg/stream"
	"github.com/teslashibe/go-checkin/pkg/upload"
)

var version = "1.0.0"

func main() {
	// Command line flags
	host := flag.String("host", config.Host(config.DefaultHost), "Check-in server host (or CHECKIN_HOST)")
	port := flag.String("port", config.Port(), "Check-in server port (or CHECKIN_PORT)")
	interval := flag.Duration("interval", config.Interval(), "Sampling period (or CHECKIN_INTERVAL)")
	backend := flag.String("backend", string(camera.BackendAuto), "Camera backend: auto, gocv, file, mock")
	device := flag.Int("device", config.Device(), "Camera device index (or CHECKIN_DEVICE)")
	preset := flag.String("preset", camera.PresetDefault, "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	path := flag.String("path", "", "Image replayed by the file backend")
	width := flag.Int("width", 0, "Canvas width (0 = camera size)")
	height := flag.Int("height", 0, "Canvas height (0 = camera size)")
	scale := flag.Bool("scale", false, "Scale frames to the canvas instead of drawing at the origin")
	quality := flag.Int("quality", stream.DefaultConfig().Quality, "JPEG quality (1-100)")
	navigate := flag.String("navigate", "browser", "What to do with the result URL: browser, fetch, none")
	yes := flag.Bool("yes", false, "Acknowledge results without waiting for Enter")
	reload := flag.Duration("reload", 0, "Start a new session this long after each check-in (0 = exit)")
	notifyErrors := flag.Bool("notify-errors", false, "Show socket errors to the user")
	once := flag.Bool("once", false, "Upload a single frame over HTTP instead of streaming")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	camCfg := camera.DefaultConfig()
	if p := camera.GetPreset(*preset); p != nil {
		camCfg = *p
	} else {
		logger.Error("unknown preset", "preset", *preset, "available", camera.PresetNames())
		os.Exit(2)
	}
	camCfg.Backend = camera.Backend(*backend)
	camCfg.Device = *device
	camCfg.Path = *path

	fmt.Println()
	fmt.Println("📷 Check-in client v" + version)
	fmt.Printf("   Server: %s:%s\n", *host, *port)
	fmt.Printf("   Camera: %s %dx%d\n", camCfg.Backend, camCfg.Width, camCfg.Height)
	fmt.Println()

	source, err := camera.NewSource(camCfg, logger)
	if err != nil {
		logger.Error("camera setup failed", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	base := config.BaseURL(*host, *port)

	presenter := present.NewConsole(os.Stdout, os.Stdin)
	presenter.AutoAck = *yes

	navigator, err := newNavigator(*navigate, base, logger)
	if err != nil {
		logger.Error("invalid navigator", "error", err)
		os.Exit(2)
	}

	if *once {
		os.Exit(runOnce(ctx, base, source, *quality, presenter, navigator, logger))
	}

	cfg := stream.DefaultConfig()
	cfg.URL = config.StreamURL(*host, *port)
	cfg.Interval = *interval
	cfg.Quality = *quality
	cfg.Width = *width
	cfg.Height = *height
	cfg.Scale = *scale
	cfg.ReloadDelay = *reload
	cfg.NotifyErrors = *notifyErrors

	err = stream.Kiosk(ctx, cfg, source, presenter, navigator, logger)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		fmt.Println("👋 Goodbye!")
	case errors.Is(err, stream.ErrCameraUnavailable):
		fmt.Fprintln(os.Stderr, "❌ Camera unavailable")
		os.Exit(1)
	default:
		logger.Error("check-in ended", "error", err)
		os.Exit(1)
	}
}

func newNavigator(kind, base string, logger *slog.Logger) (present.Navigator, error) {
	switch kind {
	case "browser":
		return present.NewBrowser(base, logger), nil
	case "fetch":
		return present.NewFetch(base, logger), nil
	case "none":
		return present.NewNop(logger), nil
	default:
		return nil, fmt.Errorf("unknown navigator %q (want browser, fetch or none)", kind)
	}
}

// runOnce uploads a single frame and returns the process exit code.
func runOnce(ctx context.Context, base string, source camera.Source, quality int, presenter present.Presenter, navigator present.Navigator, logger *slog.Logger) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := upload.New(base, logger).Capture(ctx, source, quality)
	if errors.Is(err, upload.ErrNoMatch) {
		fmt.Println("🙅 Not recognised, try again")
		return 3
	}
	if err != nil {
		logger.Error("upload failed", "error", err)
		presenter.Error(ctx, err)
		return 1
	}

	if err := presenter.Notify(ctx, res); err != nil {
		logger.Error("present result failed", "error", err)
		return 1
	}
	if err := navigator.Navigate(ctx, res.URL); err != nil {
		logger.Error("navigate failed", "url", res.URL, "error", err)
		return 1
	}
	return 0
}
