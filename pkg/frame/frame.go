package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-checkin/pkg/protocol"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 92

// Frame is one encoded snapshot ready to send.
type Frame struct {
	// Name is a random "<uuid>.jpg" label. It has no meaning beyond
	// identifying the upload.
	Name        string
	ContentType string
	Data        []byte

	Width  int
	Height int

	// Seq is the sampling tick that produced the frame.
	Seq        uint64
	CapturedAt time.Time
}

// Size returns the encoded size in bytes.
func (f Frame) Size() int {
	return len(f.Data)
}

// NewName returns a random frame filename.
func NewName() string {
	return uuid.NewString() + protocol.FrameExt
}

// Encode compresses img as JPEG and labels it with a random name.
func Encode(img image.Image, quality int) (Frame, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, fmt.Errorf("encode jpeg: %w", err)
	}

	b := img.Bounds()
	return Frame{
		Name:        NewName(),
		ContentType: protocol.ContentTypeJPEG,
		Data:        buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		CapturedAt:  time.Now(),
	}, nil
}
