package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// NopSink is the sink for headless deployments with no preview surface.
type NopSink struct{}

func (NopSink) Ready() bool         { return true }
func (NopSink) Attach(Stream) error { return nil }
func (NopSink) Detach()             {}

// SyntheticDriver produces generated frames so the capture flow can run on
// machines without a camera, the same way the face service client has a
// skip mode for local development.
type SyntheticDriver struct{}

func (SyntheticDriver) Name() string    { return "synthetic" }
func (SyntheticDriver) Available() bool { return true }

// Open returns a stream whose first frame is ready immediately.
func (SyntheticDriver) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	s := &syntheticStream{width: w, height: h, first: make(chan struct{})}
	close(s.first)
	return s, nil
}

type syntheticStream struct {
	width  int
	height int
	first  chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *syntheticStream) FirstFrame() <-chan struct{} { return s.first }

func (s *syntheticStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNoActiveStream
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img, nil
}

func (s *syntheticStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
