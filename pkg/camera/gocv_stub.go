//go:build !gocv

package camera

import (
	"errors"
	"log/slog"
)

// ErrGoCVNotBuilt is returned for the gocv backend in binaries built
// without -tags gocv.
var ErrGoCVNotBuilt = errors.New("gocv backend not built (rebuild with -tags gocv)")

const gocvBuilt = false

// newGoCVSource returns an error when OpenCV support is not compiled in.
func newGoCVSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, ErrGoCVNotBuilt
}
