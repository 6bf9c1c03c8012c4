// checkin-server: check-in server.
// Accepts camera frames over WebSocket (/ws) or multipart upload (/image),
// verifies them and records attendance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-checkin/internal/config"
	"github.com/teslashibe/go-checkin/internal/log"
	"github.com/teslashibe/go-checkin/pkg/attendance"
	"github.com/teslashibe/go-checkin/pkg/server"
	"github.com/teslashibe/go-checkin/pkg/verify"
)

var version = "1.0.0"

func main() {
	listen := flag.String("listen", config.Listen(), "HTTP listen address (or CHECKIN_LISTEN)")
	dbURL := flag.String("db", config.DatabaseURL(), "PostgreSQL URL (or DATABASE_URL); empty keeps records in memory")
	verifier := flag.String("verifier", "face", "Frame verifier: face, count")
	model := flag.String("model", verify.DefaultDetectorConfig().ModelPath, "YuNet ONNX model for the face verifier")
	threshold := flag.Float64("threshold", 0.6, "Minimum face confidence")
	every := flag.Int("every", 3, "Count verifier accepts every Nth frame")
	employee := flag.Int("employee", 1, "Employee id credited for verified frames")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	lg := log.L()

	fmt.Println()
	fmt.Println("🕘 Check-in server v" + version)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Attendance store
	var store attendance.Store
	if *dbURL != "" {
		connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := attendance.NewPostgresStore(connCtx, *dbURL)
		connCancel()
		if err != nil {
			lg.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		store = pg
		lg.Info("using postgres attendance store")
	} else {
		store = attendance.NewMemoryStore()
		lg.Warn("DATABASE_URL not set, attendance is kept in memory")
	}
	defer store.Close()

	// Verifier
	var v verify.Verifier
	switch *verifier {
	case "face":
		cfg := verify.DefaultDetectorConfig()
		cfg.ModelPath = *model
		det, err := verify.NewYuNet(cfg)
		if err != nil {
			lg.Error("face detector unavailable", "model", *model, "error", err)
			os.Exit(1)
		}
		defer det.Close()
		fv := verify.NewFaceVerifier(det, *threshold)
		fv.EmployeeID = *employee
		v = fv
	case "count":
		cv := verify.NewCountVerifier(*every)
		cv.EmployeeID = *employee
		v = cv
	default:
		lg.Error("unknown verifier", "verifier", *verifier)
		os.Exit(2)
	}

	app := fiber.New(fiber.Config{
		AppName:               "checkin-server",
		DisableStartupMessage: true,
		BodyLimit:             server.MaxFrameSize,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if *debug {
		app.Use(logger.New())
	}

	srv := server.New(v, store, lg)
	srv.RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
		})
	})

	go func() {
		lg.Info("starting server", "listen", *listen, "verifier", *verifier)
		if err := app.Listen(*listen); err != nil {
			lg.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	fmt.Println("\n👋 Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Warn("shutdown error", "error", err)
	}

	st := srv.Stats()
	lg.Info("server stopped",
		"frames_received", st.FramesReceived,
		"frames_verified", st.FramesVerified,
		"frames_rejected", st.FramesRejected)
}
