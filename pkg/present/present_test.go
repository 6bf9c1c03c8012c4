package present

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-checkin/pkg/protocol"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, target, want string
	}{
		{"http://localhost:8000", "/main?q=abc", "http://localhost:8000/main?q=abc"},
		{"http://localhost:8000/ws", "done", "http://localhost:8000/done"},
		{"http://localhost:8000", "https://example.com/next", "https://example.com/next"},
		{"", "/done", "/done"},
	}

	for _, tt := range tests {
		got, err := ResolveURL(tt.base, tt.target)
		if err != nil {
			t.Errorf("ResolveURL(%q, %q) error = %v", tt.base, tt.target, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.target, got, tt.want)
		}
	}
}

func TestConsoleNotifyWaitsForEnter(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	c := NewConsole(&out, pr)

	done := make(chan error, 1)
	go func() {
		done <- c.Notify(context.Background(), protocol.Result{Data: "welcome", URL: "/done"})
	}()

	select {
	case <-done:
		t.Fatal("Notify returned before acknowledgment")
	case <-time.After(30 * time.Millisecond):
	}

	pw.Write([]byte("\n"))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Notify did not return after Enter")
	}
}

func TestConsoleAutoAck(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, nil)

	if err := c.Notify(context.Background(), protocol.Result{Data: "checked in", URL: "/x"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "checked in") {
		t.Errorf("output = %q, want result text", out.String())
	}
}

func TestConsoleNotifyCancelled(t *testing.T) {
	pr, _ := io.Pipe()
	c := NewConsole(io.Discard, pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Notify(ctx, protocol.Result{Data: "x", URL: "/x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() error = %v, want context.Canceled", err)
	}
}

func TestConsoleError(t *testing.T) {
	var out bytes.Buffer
	NewConsole(&out, nil).Error(context.Background(), errors.New("connection refused"))
	if !strings.Contains(out.String(), "connection refused") {
		t.Errorf("output = %q", out.String())
	}
}

func TestFetchNavigate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetch(srv.URL, nil)
	if err := f.Navigate(context.Background(), "/main?q=123"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if gotPath != "/main?q=123" {
		t.Errorf("server saw %q, want /main?q=123", gotPath)
	}
}

func TestFetchNavigateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewFetch(srv.URL, nil).Navigate(context.Background(), "/main"); err == nil {
		t.Error("Navigate() should fail on 400")
	}
}

func TestNop(t *testing.T) {
	if err := NewNop(nil).Navigate(context.Background(), "/done"); err != nil {
		t.Error(err)
	}
}

func TestBrowserOpenerOutlivesContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "opened")

	b := NewBrowser("http://kiosk.local:8000", nil)
	b.opener = func(u string) (string, []string) {
		return "sh", []string{"-c", `sleep 0.05; printf %s "$1" > "$2"`, "sh", u, out}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Navigate(ctx, "/main?q=42"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(out)
		if err == nil && string(data) == "http://kiosk.local:8000/main?q=42" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("opener did not finish after cancel: %q, %v", data, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBrowserOpenerMissing(t *testing.T) {
	b := NewBrowser("http://localhost:8000", nil)
	b.opener = func(u string) (string, []string) {
		return "/nonexistent/opener", []string{u}
	}

	if err := b.Navigate(context.Background(), "/main"); err == nil {
		t.Error("expected error when the opener cannot start")
	}
}
