// Package present shows check-in results to the user and navigates to the
// page the server points at.
package present

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/teslashibe/go-checkin/pkg/protocol"
)

// Presenter gives the user feedback about a session.
type Presenter interface {
	// Notify shows the result and blocks until the user acknowledges it.
	Notify(ctx context.Context, r protocol.Result) error

	// Error shows a generic error notification. It does not block.
	Error(ctx context.Context, err error)
}

// Navigator replaces the current location with a URL.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Console presents results on a terminal.
type Console struct {
	out io.Writer
	in  *bufio.Reader

	// AutoAck skips waiting for Enter.
	AutoAck bool

	mu sync.Mutex
}

// NewConsole writes to out and reads acknowledgments from in.
// A nil in means every notification is acknowledged immediately.
func NewConsole(out io.Writer, in io.Reader) *Console {
	c := &Console{out: out, AutoAck: in == nil}
	if in != nil {
		c.in = bufio.NewReader(in)
	}
	return c
}

// Notify prints the result text and waits for Enter.
func (c *Console) Notify(ctx context.Context, r protocol.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "✅ %s\n", r.Data)
	if c.AutoAck || c.in == nil {
		return nil
	}

	fmt.Fprint(c.out, "   Press Enter to continue...")

	done := make(chan error, 1)
	go func() {
		_, err := c.in.ReadString('\n')
		done <- err
	}()

	select {
	case err := <-done:
		fmt.Fprintln(c.out)
		if err != nil && err != io.EOF {
			return fmt.Errorf("read acknowledgment: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Error prints a generic error notification.
func (c *Console) Error(ctx context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "❌ Connection error: %v\n", err)
}

// ResolveURL resolves target against base. Absolute targets are returned as-is.
func ResolveURL(base, target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target %q: %w", target, err)
	}
	if ref.IsAbs() || base == "" {
		return ref.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}
