// Package encoder turns a live frame source into the compressed payload sent
// over the stream connection.
//
// Encode is stateless. The caller borrows the source for the duration of one
// call and the encoder never retains it.
package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Defaults for the capture surface.
const (
	DefaultWidth   = 640
	DefaultHeight  = 360
	DefaultQuality = 0.8
)

// ErrUnavailable reports that no payload could be produced this cycle.
// It is expected early in a session and is not a failure.
var ErrUnavailable = errors.New("frame unavailable")

// FrameSource hands the encoder a ready-to-read video frame.
type FrameSource interface {
	// Ready reports whether the source can currently produce pixel data.
	Ready() bool
	// Frame returns the current frame. Only called after Ready returns true.
	Frame() (image.Image, error)
}

// Options configures the encoded output.
type Options struct {
	Width  int
	Height int
	// Quality is the lossy compression factor in [0, 1].
	Quality float64
}

// DefaultOptions returns 640x360 at quality 0.8.
func DefaultOptions() Options {
	return Options{Width: DefaultWidth, Height: DefaultHeight, Quality: DefaultQuality}
}

// Validate checks the target dimensions and quality range.
func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", o.Width, o.Height)
	}
	if o.Quality < 0 || o.Quality > 1 || math.IsNaN(o.Quality) {
		return fmt.Errorf("quality must be in [0, 1], got %v", o.Quality)
	}
	return nil
}

// JPEGQuality maps a [0, 1] quality factor onto the JPEG 1-100 scale.
func (o Options) JPEGQuality() int {
	q := int(math.Round(o.Quality * 100))
	return min(max(q, 1), 100)
}

// Encode captures one frame from src, rescales it to exactly
// opts.Width x opts.Height and encodes it as JPEG.
//
// Returns ErrUnavailable (possibly wrapped) when the source is not ready,
// the frame cannot be read, or encoding yields no bytes.
func Encode(src FrameSource, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if src == nil || !src.Ready() {
		return nil, ErrUnavailable
	}

	frame, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrUnavailable)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scale(frame, opts.Width, opts.Height), &jpeg.Options{Quality: opts.JPEGQuality()}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder produced no bytes", ErrUnavailable)
	}
	return buf.Bytes(), nil
}

// scale returns src resized to width x height. Aspect ratio is not
// preserved; the server expects the exact capture surface.
func scale(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height && b.Min == (image.Point{}) {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
