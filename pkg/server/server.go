// Package server is the check-in server: it verifies frames streamed over
// a WebSocket or uploaded one at a time and records attendance.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-checkin/pkg/attendance"
	"github.com/teslashibe/go-checkin/pkg/protocol"
	"github.com/teslashibe/go-checkin/pkg/verify"
)

// MaxFrameSize bounds a single uploaded or streamed frame.
const MaxFrameSize = 8 << 20

// Server routes frames to a Verifier and stores the resulting check-ins.
type Server struct {
	verifier verify.Verifier
	store    attendance.Store
	logger   *slog.Logger

	// frameLimit caps one streamed message; defaults to MaxFrameSize.
	frameLimit int64

	connections    atomic.Int64
	framesReceived atomic.Uint64
	framesVerified atomic.Uint64
	framesRejected atomic.Uint64
	verifyErrors   atomic.Uint64
}

// New creates a server. A nil logger falls back to slog.Default().
func New(v verify.Verifier, store attendance.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		verifier:   v,
		store:      store,
		logger:     logger,
		frameLimit: MaxFrameSize,
	}
}

// RegisterRoutes registers the check-in routes on a Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleStream, websocket.Config{
		ReadBufferSize: 64 << 10,
	}))

	app.Post("/image", s.handleImage)
	app.Get("/main", s.handleMain)
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})
}

// handleStream verifies every binary frame until one matches or the
// client goes away. Frames that do not match are skipped silently.
func (s *Server) handleStream(c *websocket.Conn) {
	s.connections.Add(1)
	defer s.connections.Add(-1)

	c.SetReadLimit(s.frameLimit)

	remote := c.RemoteAddr().String()
	s.logger.Debug("stream connected", "remote", remote)
	defer s.logger.Debug("stream disconnected", "remote", remote)

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("stream read error", "remote", remote, "error", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		res, ok, err := s.check(context.Background(), data)
		if err != nil {
			s.logger.Error("check failed", "remote", remote, "error", err)
			continue
		}
		if !ok {
			continue
		}

		if err := c.WriteJSON(res); err != nil {
			s.logger.Warn("send result failed", "remote", remote, "error", err)
			return
		}
	}
}

// handleImage verifies a single multipart upload in field "file".
func (s *Server) handleImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(protocol.NewFailure(http.StatusBadRequest, ""))
	}

	data, err := readUpload(fh)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(protocol.NewFailure(http.StatusBadRequest, ""))
	}

	res, ok, err := s.check(c.UserContext(), data)
	if err != nil {
		s.logger.Error("check failed", "file", fh.Filename, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(protocol.NewFailure(http.StatusInternalServerError, "error"))
	}
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(protocol.NewFailure(http.StatusBadRequest, ""))
	}

	return c.JSON(res)
}

// handleMain returns the attendance record named by ?q=.
func (s *Server) handleMain(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Query("q"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(protocol.NewFailure(http.StatusBadRequest, "error"))
	}

	rec, err := s.store.Get(c.UserContext(), id)
	if err != nil {
		if !errors.Is(err, attendance.ErrNotFound) {
			s.logger.Error("lookup failed", "id", id, "error", err)
		}
		return c.Status(http.StatusBadRequest).JSON(protocol.NewFailure(http.StatusBadRequest, "error"))
	}

	return c.JSON(rec)
}

// check runs one frame through the verifier and records a check-in on
// a match.
func (s *Server) check(ctx context.Context, data []byte) (protocol.Result, bool, error) {
	s.framesReceived.Add(1)

	d, err := s.verifier.Verify(ctx, data)
	if err != nil {
		s.verifyErrors.Add(1)
		return protocol.Result{}, false, fmt.Errorf("verify: %w", err)
	}
	if !d.Match {
		s.framesRejected.Add(1)
		s.logger.Debug("frame rejected", "bytes", len(data), "reason", d.Reason)
		return protocol.Result{}, false, nil
	}
	s.framesVerified.Add(1)

	rec, err := s.store.Create(ctx, d.EmployeeID)
	if err != nil {
		return protocol.Result{}, false, fmt.Errorf("record attendance: %w", err)
	}

	s.logger.Info("check-in recorded", "id", rec.ID, "employee", rec.EmployeeID)

	return protocol.NewResult(
		fmt.Sprintf("employee %d checked in", rec.EmployeeID),
		"/main?q="+rec.ID.String(),
		rec.Start,
	), true, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > MaxFrameSize {
		return nil, fmt.Errorf("upload too large: %d bytes", fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxFrameSize))
}

// Stats contains server statistics
type Stats struct {
	Connections    int64  `json:"connections"`
	FramesReceived uint64 `json:"frames_received"`
	FramesVerified uint64 `json:"frames_verified"`
	FramesRejected uint64 `json:"frames_rejected"`
	VerifyErrors   uint64 `json:"verify_errors"`
}

// Stats returns server statistics
func (s *Server) Stats() Stats {
	return Stats{
		Connections:    s.connections.Load(),
		FramesReceived: s.framesReceived.Load(),
		FramesVerified: s.framesVerified.Load(),
		FramesRejected: s.framesRejected.Load(),
		VerifyErrors:   s.verifyErrors.Load(),
	}
}
