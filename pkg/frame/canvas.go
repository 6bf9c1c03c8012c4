// Package frame rasterizes camera images onto an offscreen canvas and
// encodes them as labelled JPEG frames.
package frame

import (
	"errors"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// ErrInvalidSize is returned for a canvas without positive dimensions.
var ErrInvalidSize = errors.New("canvas size must be positive")

// Mode controls how a source image is placed on the canvas.
type Mode int

const (
	// Origin copies the source at (0,0) without scaling; anything outside
	// the canvas is clipped.
	Origin Mode = iota
	// ScaleToFit stretches the source over the whole canvas.
	ScaleToFit
)

// Canvas is a fixed-size offscreen raster surface.
type Canvas struct {
	mu   sync.Mutex
	img  *image.RGBA
	mode Mode
}

// NewCanvas allocates a width×height canvas.
func NewCanvas(width, height int, mode Mode) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	return &Canvas{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		mode: mode,
	}, nil
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Draw renders src onto the canvas.
func (c *Canvas) Draw(src image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ScaleToFit:
		draw.ApproxBiLinear.Scale(c.img, c.img.Bounds(), src, src.Bounds(), draw.Src, nil)
	default:
		draw.Draw(c.img, c.img.Bounds(), src, src.Bounds().Min, draw.Src)
	}
}

// Snapshot returns a copy of the current canvas contents.
// The copy is safe to encode while the canvas keeps being drawn on.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}
