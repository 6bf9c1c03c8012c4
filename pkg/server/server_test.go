package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-checkin/pkg/attendance"
	"github.com/teslashibe/go-checkin/pkg/camera"
	"github.com/teslashibe/go-checkin/pkg/present"
	"github.com/teslashibe/go-checkin/pkg/protocol"
	"github.com/teslashibe/go-checkin/pkg/stream"
	"github.com/teslashibe/go-checkin/pkg/verify"
)

type errVerifier struct{}

func (errVerifier) Verify(context.Context, []byte) (verify.Decision, error) {
	return verify.Decision{}, errors.New("model unavailable")
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestApp(v verify.Verifier) (*Server, *attendance.MemoryStore, *fiber.App) {
	store := attendance.NewMemoryStore()
	srv := New(v, store, nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	srv.RegisterRoutes(app)
	return srv, store, app
}

// listen serves app on a random local port and returns its host:port.
func listen(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return ln.Addr().String()
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "frame.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/image", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestImageVerified(t *testing.T) {
	srv, store, app := newTestApp(verify.NewCountVerifier(1))

	resp, err := app.Test(uploadRequest(t, "file", testJPEG(t)))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	res := decode[protocol.Result](t, resp.Body)
	if res.Result != protocol.ResultSuccess || res.StatusCode != 200 {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.URL, "/main?q=") {
		t.Errorf("URL = %q, want /main?q=<id>", res.URL)
	}
	if _, err := time.Parse(protocol.StartLayout, res.Start); err != nil {
		t.Errorf("Start %q: %v", res.Start, err)
	}
	if store.Len() != 1 {
		t.Errorf("records = %d, want 1", store.Len())
	}
	if st := srv.Stats(); st.FramesReceived != 1 || st.FramesVerified != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestImageRejected(t *testing.T) {
	tests := []struct {
		name string
		v    verify.Verifier
		req  func(t *testing.T) *http.Request
		want int
	}{
		{"not verified", verify.NewCountVerifier(100), func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", testJPEG(t))
		}, 400},
		{"missing file field", verify.NewCountVerifier(1), func(t *testing.T) *http.Request {
			return uploadRequest(t, "image", testJPEG(t))
		}, 400},
		{"not multipart", verify.NewCountVerifier(1), func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/image", strings.NewReader("x"))
		}, 400},
		{"verifier failure", errVerifier{}, func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", testJPEG(t))
		}, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store, app := newTestApp(tt.v)

			resp, err := app.Test(tt.req(t))
			if err != nil {
				t.Fatalf("Request error: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("Status = %d, want %d", resp.StatusCode, tt.want)
			}

			f := decode[protocol.Failure](t, resp.Body)
			if f.StatusCode != tt.want {
				t.Errorf("statusCode = %d, want %d", f.StatusCode, tt.want)
			}
			if store.Len() != 0 {
				t.Error("no record should be created")
			}
		})
	}
}

func TestMainRoute(t *testing.T) {
	_, store, app := newTestApp(verify.NewCountVerifier(1))
	rec, err := store.Create(context.Background(), 5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"known id", "?q=" + rec.ID.String(), 200},
		{"unknown id", "?q=" + uuid.NewString(), 400},
		{"bad id", "?q=nope", 400},
		{"missing q", "", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/main"+tt.query, nil))
			if err != nil {
				t.Fatalf("Request error: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("Status = %d, want %d", resp.StatusCode, tt.status)
			}

			if tt.status == 200 {
				got := decode[attendance.Record](t, resp.Body)
				if got.ID != rec.ID || got.EmployeeID != 5 {
					t.Errorf("record = %+v, want %+v", got, rec)
				}
				return
			}

			f := decode[protocol.Failure](t, resp.Body)
			if f.Error != "error" || f.StatusCode != 400 {
				t.Errorf("failure = %+v", f)
			}
		})
	}
}

func TestWSRequiresUpgrade(t *testing.T) {
	_, _, app := newTestApp(verify.NewCountVerifier(1))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("Status = %d, want %d", resp.StatusCode, fiber.StatusUpgradeRequired)
	}
}

func TestWSStream(t *testing.T) {
	srv, store, app := newTestApp(verify.NewCountVerifier(3))
	addr := listen(t, app)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	img := testJPEG(t)

	// Text messages are not frames.
	ws.WriteMessage(websocket.TextMessage, []byte("hello"))
	for i := 0; i < 3; i++ {
		if err := ws.WriteMessage(websocket.BinaryMessage, img); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Errorf("message type = %d, want text", mt)
	}

	res, err := protocol.ParseResult(data)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if res.Result != protocol.ResultSuccess {
		t.Errorf("result = %+v", res)
	}

	st := srv.Stats()
	if st.FramesReceived != 3 || st.FramesVerified != 1 || st.FramesRejected != 2 {
		t.Errorf("stats = %+v", st)
	}
	if store.Len() != 1 {
		t.Errorf("records = %d, want 1", store.Len())
	}
}

func TestWSRejectsOversizedFrame(t *testing.T) {
	srv, store, app := newTestApp(verify.NewCountVerifier(1))
	srv.frameLimit = 1024
	addr := listen(t, app)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)); err != nil {
		t.Fatalf("write: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the server to drop the connection")
	}

	time.Sleep(50 * time.Millisecond)
	if st := srv.Stats(); st.FramesReceived != 0 || st.Connections != 0 {
		t.Errorf("stats = %+v, want no frames and no connections", st)
	}
	if store.Len() != 0 {
		t.Error("no record should be created")
	}
}

func TestWSConnectionCount(t *testing.T) {
	srv, _, app := newTestApp(verify.NewCountVerifier(1))
	addr := listen(t, app)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if n := srv.Stats().Connections; n != 1 {
		t.Errorf("Connections = %d, want 1", n)
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if n := srv.Stats().Connections; n != 0 {
		t.Errorf("Connections = %d, want 0 after disconnect", n)
	}
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	n.targets = append(n.targets, target)
	n.mu.Unlock()
	return nil
}

// TestSessionCheckIn drives a full client session against the server.
func TestSessionCheckIn(t *testing.T) {
	_, store, app := newTestApp(verify.NewCountVerifier(2))
	addr := listen(t, app)

	cfg := stream.DefaultConfig()
	cfg.URL = "ws://" + addr + "/ws"
	cfg.Interval = 20 * time.Millisecond

	camCfg := camera.DefaultConfig()
	camCfg.Backend = camera.BackendMock
	camCfg.Width, camCfg.Height = 160, 120
	src := camera.NewMockSource(camCfg, nil)
	defer src.Close()

	nav := &recordingNavigator{}
	s, err := stream.New(cfg, src, present.NewConsole(io.Discard, nil), nav, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	nav.mu.Lock()
	targets := append([]string(nil), nav.targets...)
	nav.mu.Unlock()
	if len(targets) != 1 {
		t.Fatalf("navigations = %v, want exactly one", targets)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, targets[0], nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("GET %s status = %d, want 200", targets[0], resp.StatusCode)
	}
	if store.Len() == 0 {
		t.Error("no attendance recorded")
	}
}

func TestStatsRoute(t *testing.T) {
	_, _, app := newTestApp(verify.NewCountVerifier(1))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stats", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "frames_received") {
		t.Error("Response should contain 'frames_received' field")
	}
}
