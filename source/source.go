// Package source provides frame sources for the CLI: a directory of still
// images played back as a sequence, and a synthetic test pattern.
//
// Both implement encoder.FrameSource.
package source

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/pithecene-io/ripestream/encoder"
	"github.com/pithecene-io/ripestream/iox"
)

// ErrNoFrames is returned when a sequence directory contains no images.
var ErrNoFrames = errors.New("no image frames found")

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ImageSequence plays the images of a directory in lexical order.
type ImageSequence struct {
	mu    sync.Mutex
	paths []string
	next  int
	loop  bool
}

var _ encoder.FrameSource = (*ImageSequence)(nil)

// NewImageSequence lists the images in dir. With loop set the sequence
// restarts after the last image; otherwise it stops being ready.
func NewImageSequence(dir string, loop bool) (*ImageSequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	slices.Sort(paths)

	return &ImageSequence{paths: paths, loop: loop}, nil
}

// Len returns the number of images in the sequence.
func (s *ImageSequence) Len() int {
	return len(s.paths)
}

// Ready reports whether another frame is available.
func (s *ImageSequence) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop || s.next < len(s.paths)
}

// Done reports whether a non-looping sequence has been played out.
func (s *ImageSequence) Done() bool {
	return !s.Ready()
}

// Frame decodes the next image and advances the sequence.
func (s *ImageSequence) Frame() (image.Image, error) {
	s.mu.Lock()
	if !s.loop && s.next >= len(s.paths) {
		s.mu.Unlock()
		return nil, ErrNoFrames
	}
	path := s.paths[s.next%len(s.paths)]
	s.next++
	if s.loop && s.next == len(s.paths) {
		s.next = 0
	}
	s.mu.Unlock()

	return decodeFile(path)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Pattern is a synthetic source drawing moving color bars. It reports not
// ready for the first warmup calls to Ready, like a camera that has not
// delivered its first frame yet.
type Pattern struct {
	mu     sync.Mutex
	width  int
	height int
	warmup int
	tick   int
}

var _ encoder.FrameSource = (*Pattern)(nil)

// NewPattern creates a width x height test pattern.
func NewPattern(width, height, warmup int) *Pattern {
	return &Pattern{width: width, height: height, warmup: warmup}
}

// Ready implements encoder.FrameSource.
func (p *Pattern) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.warmup > 0 {
		p.warmup--
		return false
	}
	return true
}

var bars = []color.RGBA{
	{R: 76, G: 153, B: 0, A: 255},
	{R: 204, G: 153, B: 51, A: 255},
	{R: 204, G: 34, B: 51, A: 255},
	{R: 170, G: 204, B: 119, A: 255},
}

// Frame implements encoder.FrameSource.
func (p *Pattern) Frame() (image.Image, error) {
	p.mu.Lock()
	offset := p.tick
	p.tick++
	p.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	barWidth := max(p.width/len(bars), 1)
	for y := range p.height {
		for x := range p.width {
			img.SetRGBA(x, y, bars[((x+offset*4)/barWidth)%len(bars)])
		}
	}
	return img, nil
}
