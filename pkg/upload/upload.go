// Package upload sends a single frame to the check-in server's
// multipart endpoint, for clients that cannot hold a WebSocket open.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/teslashibe/go-checkin/internal/httpc"
	"github.com/teslashibe/go-checkin/pkg/camera"
	"github.com/teslashibe/go-checkin/pkg/frame"
	"github.com/teslashibe/go-checkin/pkg/protocol"
)

// Path is the upload endpoint relative to the server base URL.
const Path = "/image"

// FieldName is the multipart field carrying the frame.
const FieldName = "file"

// ErrNoMatch is returned when the server rejects the frame.
var ErrNoMatch = errors.New("frame not verified")

// Client uploads frames to one server.
type Client struct {
	// BaseURL is the server root, e.g. "http://localhost:8000".
	BaseURL string

	logger *slog.Logger
}

// New creates an upload client.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Send uploads f and returns the server's result.
func (c *Client) Send(ctx context.Context, f frame.Frame) (protocol.Result, error) {
	body, contentType, err := encodeForm(f)
	if err != nil {
		return protocol.Result{}, err
	}

	start := time.Now()
	resp, err := httpc.Post(ctx, c.BaseURL+Path, contentType, body)
	if err != nil {
		return protocol.Result{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.Result{}, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("frame uploaded",
		"frame", f.Name,
		"bytes", f.Size(),
		"status", resp.StatusCode,
		"latency", time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		return protocol.ParseResult(data)
	case http.StatusBadRequest:
		return protocol.Result{}, ErrNoMatch
	default:
		return protocol.Result{}, fmt.Errorf("upload %s: unexpected status %d", f.Name, resp.StatusCode)
	}
}

// Capture grabs one frame from src and uploads it. The source is started
// and stopped around the capture.
func (c *Client) Capture(ctx context.Context, src camera.Source, quality int) (protocol.Result, error) {
	if err := src.Start(ctx); err != nil {
		return protocol.Result{}, fmt.Errorf("start camera: %w", err)
	}
	defer src.Stop()

	select {
	case <-src.Ready():
	case <-ctx.Done():
		return protocol.Result{}, ctx.Err()
	}

	img, err := src.Frame()
	if err != nil {
		return protocol.Result{}, fmt.Errorf("read frame: %w", err)
	}

	f, err := frame.Encode(img, quality)
	if err != nil {
		return protocol.Result{}, err
	}

	return c.Send(ctx, f)
}

func encodeForm(f frame.Frame) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName, f.Name))
	h.Set("Content-Type", f.ContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
