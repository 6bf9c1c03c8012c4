package present

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/teslashibe/go-checkin/internal/httpc"
)

// Browser opens the target in the system browser.
type Browser struct {
	// Base resolves relative targets such as "/main?q=...".
	Base string

	logger *slog.Logger
	opener func(u string) (string, []string)
}

// NewBrowser creates a browser navigator.
func NewBrowser(base string, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{Base: base, logger: logger, opener: openCommand}
}

// Navigate opens target with the platform opener.
func (b *Browser) Navigate(ctx context.Context, target string) error {
	u, err := ResolveURL(b.Base, target)
	if err != nil {
		return err
	}

	name, args := b.opener(u)
	b.logger.Info("opening browser", "url", u)

	// The opener outlives the session; it is reaped in the background.
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", u, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			b.logger.Warn("browser opener failed", "url", u, "error", err)
		}
	}()
	return nil
}

func openCommand(u string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{u}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", u}
	default:
		return "xdg-open", []string{u}
	}
}

// Fetch follows the target with an HTTP GET and logs the answer.
// Useful on headless kiosks where there is no browser to hand off to.
type Fetch struct {
	Base string

	logger *slog.Logger
}

// NewFetch creates a fetching navigator.
func NewFetch(base string, logger *slog.Logger) *Fetch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetch{Base: base, logger: logger}
}

// Navigate fetches target. Non-2xx answers are errors.
func (f *Fetch) Navigate(ctx context.Context, target string) error {
	u, err := ResolveURL(f.Base, target)
	if err != nil {
		return err
	}

	resp, err := httpc.Get(ctx, u)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	f.logger.Info("navigated", "url", u, "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	return nil
}

// Nop only logs the target.
type Nop struct {
	logger *slog.Logger
}

// NewNop creates a logging-only navigator.
func NewNop(logger *slog.Logger) *Nop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Nop{logger: logger}
}

// Navigate logs target.
func (n *Nop) Navigate(ctx context.Context, target string) error {
	n.logger.Info("navigation skipped", "url", target)
	return nil
}
