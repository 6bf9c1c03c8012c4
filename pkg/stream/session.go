// Package stream samples a camera on a fixed timer and streams the frames
// as JPEG over a single WebSocket until the server answers with a result.
//
// A Session is one connection's lifetime:
//
//	Idle → Acquiring → Streaming → {Completed | Closed | Errored}
//
// All state transitions and all socket writes happen on the goroutine that
// called Run. Socket reads and JPEG encodes run on helper goroutines and
// report back as events, so handlers never run concurrently.
//
// Frames are delivered best-effort and unordered: encodes may overlap and
// are sent in completion order. A frame whose encode finishes after the
// session ended is dropped.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-checkin/pkg/camera"
	"github.com/teslashibe/go-checkin/pkg/frame"
	"github.com/teslashibe/go-checkin/pkg/present"
	"github.com/teslashibe/go-checkin/pkg/protocol"
)

var (
	// ErrCameraUnavailable means the camera could not be acquired or never
	// started playing. No socket is opened.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrSocket means the connection failed. There is no reconnect.
	ErrSocket = errors.New("websocket error")
	// ErrClosed means the server closed the connection before a result.
	ErrClosed = errors.New("websocket closed")
	// ErrStopped means Stop was called.
	ErrStopped = errors.New("session stopped")
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("session already started")
)

// Stats counts sampling activity.
type Stats struct {
	Ticks         uint64 `json:"ticks"`
	FramesSent    uint64 `json:"frames_sent"`
	FramesSkipped uint64 `json:"frames_skipped"`
	EncodeErrors  uint64 `json:"encode_errors"`
	Ignored       uint64 `json:"ignored_messages"`
}

// Session streams one camera to one WebSocket connection.
type Session struct {
	cfg       Config
	source    camera.Source
	presenter present.Presenter
	navigator present.Navigator
	logger    *slog.Logger
	dialer    *websocket.Dialer

	// Event hooks. Set before Run; they are called from Run's goroutine.
	//
	// OnClose fires once for every socket that was opened, whichever side
	// ended it: the server's code on a server close, CloseNormalClosure
	// after a result or Stop, CloseGoingAway on context cancellation and
	// CloseAbnormalClosure after a socket error (following OnError).
	OnOpen    func()
	OnFrame   func(f frame.Frame)
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code int, text string)

	mu      sync.Mutex
	state   State
	started bool
	result  *protocol.Result

	stopCh   chan struct{}
	stopOnce sync.Once

	ticks         atomic.Uint64
	framesSent    atomic.Uint64
	framesSkipped atomic.Uint64
	encodeErrors  atomic.Uint64
	ignored       atomic.Uint64
}

// New creates a session. A nil presenter prints to stdout without waiting;
// a nil navigator only logs.
func New(cfg Config, source camera.Source, presenter present.Presenter, navigator present.Navigator, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if source == nil {
		return nil, errors.New("camera source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if presenter == nil {
		presenter = present.NewConsole(os.Stdout, nil)
	}
	if navigator == nil {
		navigator = present.NewNop(logger)
	}

	return &Session{
		cfg:       cfg,
		source:    source,
		presenter: presenter,
		navigator: navigator,
		logger:    logger.With("component", "stream"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		stopCh: make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	if prev != st {
		s.logger.Debug("session state", "from", prev, "to", st)
	}
}

// Result returns the server's result once the session completed.
func (s *Session) Result() (protocol.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return protocol.Result{}, false
	}
	return *s.result, true
}

// Stats returns a snapshot of the sampling counters.
func (s *Session) Stats() Stats {
	return Stats{
		Ticks:         s.ticks.Load(),
		FramesSent:    s.framesSent.Load(),
		FramesSkipped: s.framesSkipped.Load(),
		EncodeErrors:  s.encodeErrors.Load(),
		Ignored:       s.ignored.Load(),
	}
}

// Stop ends the session as Closed. Safe to call at any time, any number
// of times.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run acquires the camera, waits for playback, opens the socket and
// streams until a terminal event. It returns nil only when a result was
// received, presented and navigated to.
//
// The camera is left running when Run returns, except when ReloadDelay is
// set and a result arrived; the caller owns the source.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.setState(StateAcquiring)
	if err := s.source.Start(ctx); err != nil {
		s.logger.Error("camera acquisition failed", "backend", s.source.Name(), "error", err)
		s.setState(StateIdle)
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	// "play": the first frame is available.
	select {
	case <-s.source.Ready():
	case <-time.After(s.cfg.PlaybackTimeout):
		s.logger.Error("camera never started playing", "backend", s.source.Name(), "timeout", s.cfg.PlaybackTimeout)
		s.setState(StateIdle)
		return fmt.Errorf("%w: no frame within %s", ErrCameraUnavailable, s.cfg.PlaybackTimeout)
	case <-ctx.Done():
		s.setState(StateClosed)
		return ctx.Err()
	case <-s.stopCh:
		s.setState(StateClosed)
		return ErrStopped
	}

	canvas, err := s.newCanvas()
	if err != nil {
		s.setState(StateIdle)
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return ctx.Err()
		}
		s.socketError(ctx, err)
		return fmt.Errorf("%w: dial %s: %v", ErrSocket, s.cfg.URL, err)
	}

	return s.stream(ctx, conn, canvas)
}

// newCanvas sizes the offscreen surface to the configured display size,
// or to the stream's intrinsic size.
func (s *Session) newCanvas() (*frame.Canvas, error) {
	w, h := s.cfg.Width, s.cfg.Height
	if w == 0 || h == 0 {
		w, h = s.source.Size()
	}

	mode := frame.Origin
	if s.cfg.Scale {
		mode = frame.ScaleToFit
	}

	c, err := frame.NewCanvas(w, h, mode)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("canvas allocated", "width", w, "height", h, "scale", s.cfg.Scale)
	return c, nil
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventClose
	eventError
)

type event struct {
	kind eventKind
	data []byte
	code int
	text string
	err  error
}

type encoded struct {
	frame frame.Frame
	err   error
}

// stream is the event loop of an open connection.
func (s *Session) stream(ctx context.Context, conn *websocket.Conn, canvas *frame.Canvas) error {
	events := make(chan event)
	done := make(chan struct{})
	defer close(done)

	go s.readLoop(conn, events, done)

	s.setState(StateStreaming)
	s.logger.Info("websocket connected", "url", s.cfg.URL, "interval", s.cfg.Interval)
	if s.OnOpen != nil {
		s.OnOpen()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Buffered to the in-flight budget so a finished encode never blocks,
	// even after the loop is gone.
	results := make(chan encoded, s.cfg.MaxInFlight)
	inFlight := 0
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			s.closeConn(conn, websocket.CloseGoingAway)
			s.setState(StateClosed)
			return ctx.Err()

		case <-s.stopCh:
			ticker.Stop()
			s.closeConn(conn, websocket.CloseNormalClosure)
			s.setState(StateClosed)
			s.logger.Info("session stopped")
			return ErrStopped

		case <-ticker.C:
			s.ticks.Add(1)
			seq++
			if inFlight >= s.cfg.MaxInFlight {
				s.framesSkipped.Add(1)
				s.logger.Debug("encode budget exhausted, skipping tick", "seq", seq, "in_flight", inFlight)
				continue
			}

			img, err := s.source.Frame()
			if err != nil {
				s.framesSkipped.Add(1)
				s.logger.Debug("no frame to sample", "seq", seq, "error", err)
				continue
			}

			canvas.Draw(img)
			inFlight++
			go encode(canvas.Snapshot(), s.cfg.Quality, seq, results)

		case r := <-results:
			inFlight--
			if r.err != nil {
				s.encodeErrors.Add(1)
				s.logger.Warn("frame encode failed", "seq", r.frame.Seq, "error", r.err)
				continue
			}

			if err := s.send(conn, r.frame); err != nil {
				ticker.Stop()
				conn.Close()
				s.socketError(ctx, err)
				s.closed(websocket.CloseAbnormalClosure, "")
				return fmt.Errorf("%w: send: %v", ErrSocket, err)
			}

		case ev := <-events:
			switch ev.kind {
			case eventMessage:
				if s.OnMessage != nil {
					s.OnMessage(ev.data)
				}

				res, err := protocol.ParseResult(ev.data)
				if err != nil {
					s.ignored.Add(1)
					s.logger.Warn("ignoring unexpected message", "error", err, "bytes", len(ev.data))
					continue
				}

				ticker.Stop()
				s.closeConn(conn, websocket.CloseNormalClosure)
				return s.complete(ctx, res)

			case eventClose:
				ticker.Stop()
				conn.Close()
				s.setState(StateClosed)
				s.logger.Info("websocket closed", "code", ev.code, "reason", ev.text)
				s.closed(ev.code, ev.text)
				return fmt.Errorf("%w: code %d", ErrClosed, ev.code)

			case eventError:
				ticker.Stop()
				conn.Close()
				s.socketError(ctx, ev.err)
				s.closed(websocket.CloseAbnormalClosure, "")
				return fmt.Errorf("%w: %v", ErrSocket, ev.err)
			}
		}
	}
}

// readLoop turns socket reads into events until the connection fails or
// the session loop is gone.
func (s *Session) readLoop(conn *websocket.Conn, events chan<- event, done <-chan struct{}) {
	for {
		mt, data, err := conn.ReadMessage()

		var ev event
		switch {
		case err != nil:
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				ev = event{kind: eventClose, code: ce.Code, text: ce.Text}
			} else {
				ev = event{kind: eventError, err: err}
			}
		case mt == websocket.TextMessage || mt == websocket.BinaryMessage:
			ev = event{kind: eventMessage, data: data}
		default:
			continue
		}

		select {
		case events <- ev:
		case <-done:
			return
		}

		if err != nil {
			return
		}
	}
}

func encode(img image.Image, quality int, seq uint64, out chan<- encoded) {
	f, err := frame.Encode(img, quality)
	f.Seq = seq
	out <- encoded{frame: f, err: err}
}

func (s *Session) send(conn *websocket.Conn, f frame.Frame) error {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, f.Data); err != nil {
		return err
	}

	s.framesSent.Add(1)
	s.logger.Debug("frame sent", "seq", f.Seq, "name", f.Name, "bytes", f.Size())
	if s.OnFrame != nil {
		s.OnFrame(f)
	}
	return nil
}

// closeConn sends a close frame and drops the connection.
func (s *Session) closeConn(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		s.logger.Debug("close frame not sent", "error", err)
	}
	conn.Close()
	s.closed(code, "")
}

func (s *Session) closed(code int, text string) {
	if s.OnClose != nil {
		s.OnClose(code, text)
	}
}

func (s *Session) socketError(ctx context.Context, err error) {
	s.setState(StateErrored)
	s.logger.Error("websocket error", "url", s.cfg.URL, "error", err)
	if s.OnError != nil {
		s.OnError(err)
	}
	if s.cfg.NotifyErrors {
		s.presenter.Error(ctx, err)
	}
}

// complete handles the terminal result: present it, then navigate.
func (s *Session) complete(ctx context.Context, res protocol.Result) error {
	s.mu.Lock()
	s.result = &res
	s.mu.Unlock()
	s.setState(StateCompleted)

	s.logger.Info("result received", "data", res.Data, "url", res.URL, "frames_sent", s.framesSent.Load())

	if err := s.presenter.Notify(ctx, res); err != nil {
		return fmt.Errorf("present result: %w", err)
	}

	if s.cfg.ReloadDelay > 0 {
		if err := s.source.Stop(); err != nil {
			s.logger.Warn("camera pause failed", "error", err)
		}
	}

	if err := s.navigator.Navigate(ctx, res.URL); err != nil {
		return fmt.Errorf("navigate to %s: %w", res.URL, err)
	}
	return nil
}
