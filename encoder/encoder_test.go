package encoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

type fakeSource struct {
	ready bool
	img   image.Image
	err   error
	reads int
}

func (f *fakeSource) Ready() bool { return f.ready }

func (f *fakeSource) Frame() (image.Image, error) {
	f.reads++
	return f.img, f.err
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEncode_ResizesToTarget(t *testing.T) {
	src := &fakeSource{ready: true, img: solid(1280, 720, color.RGBA{R: 200, G: 40, B: 40, A: 255})}

	data, err := Encode(src, DefaultOptions())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != DefaultWidth || cfg.Height != DefaultHeight {
		t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, DefaultWidth, DefaultHeight)
	}
}

func TestEncode_ExactSizeWithOffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 74, 58))
	src := &fakeSource{ready: true, img: img}

	data, err := Encode(src, Options{Width: 64, Height: 48, Quality: 0.5})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", cfg.Width, cfg.Height)
	}
}

func TestEncode_NotReady(t *testing.T) {
	src := &fakeSource{ready: false, img: solid(4, 4, color.White)}

	_, err := Encode(src, DefaultOptions())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if src.reads != 0 {
		t.Errorf("Frame() called %d times on a source that is not ready", src.reads)
	}
}

func TestEncode_NilSource(t *testing.T) {
	if _, err := Encode(nil, DefaultOptions()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEncode_FrameError(t *testing.T) {
	src := &fakeSource{ready: true, err: errors.New("device busy")}

	_, err := Encode(src, DefaultOptions())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEncode_EmptyFrame(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil image", nil},
		{"zero bounds", image.NewRGBA(image.Rect(0, 0, 0, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(&fakeSource{ready: true, img: tt.img}, DefaultOptions())
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestEncode_InvalidOptions(t *testing.T) {
	src := &fakeSource{ready: true, img: solid(4, 4, color.Black)}

	tests := []struct {
		name string
		opts Options
	}{
		{"zero width", Options{Width: 0, Height: 10, Quality: 0.8}},
		{"negative height", Options{Width: 10, Height: -1, Quality: 0.8}},
		{"quality above one", Options{Width: 10, Height: 10, Quality: 1.5}},
		{"negative quality", Options{Width: 10, Height: 10, Quality: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(src, tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrUnavailable) {
				t.Error("invalid options must not be reported as unavailable")
			}
		})
	}
}

func TestOptions_JPEGQuality(t *testing.T) {
	tests := []struct {
		q    float64
		want int
	}{
		{0, 1},
		{0.004, 1},
		{0.8, 80},
		{1, 100},
	}

	for _, tt := range tests {
		if got := (Options{Quality: tt.q}).JPEGQuality(); got != tt.want {
			t.Errorf("JPEGQuality(%v) = %d, want %d", tt.q, got, tt.want)
		}
	}
}

func TestEncode_QualityAffectsSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x ^ y) * 4), A: 255})
		}
	}
	src := &fakeSource{ready: true, img: img}

	low, err := Encode(src, Options{Width: 64, Height: 64, Quality: 0.1})
	if err != nil {
		t.Fatalf("Encode low failed: %v", err)
	}
	high, err := Encode(src, Options{Width: 64, Height: 64, Quality: 1})
	if err != nil {
		t.Fatalf("Encode high failed: %v", err)
	}
	if len(low) >= len(high) {
		t.Errorf("low quality (%d bytes) should be smaller than high quality (%d bytes)", len(low), len(high))
	}
}
