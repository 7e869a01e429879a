package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Photo is one captured frame encoded as JPEG.
type Photo struct {
	Data     []byte
	MIMEType string
	Size     int
}

// Sink is the presentation surface the stream renders into. Attaching can
// race the UI mounting it, so the controller polls Ready before attaching.
type Sink interface {
	Ready() bool
	Attach(Stream) error
	Detach()
}

const (
	mountAttempts = 30
	mountInterval = 100 * time.Millisecond
	jpegQuality   = 80
)

// Controller owns the camera stream lifecycle for one capture session. The
// raw stream handle is never exposed; callers only get Start, Capture and
// Stop.
type Controller struct {
	drivers []Driver
	sink    Sink
	origin  string
	timeout time.Duration

	mu     sync.Mutex
	stream Stream
}

// NewController creates a controller. origin is the serving origin used for
// the secure-context check; timeout bounds Start from stream grant to first
// frame and defaults to 10s.
func NewController(drivers []Driver, sink Sink, origin string, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Controller{drivers: drivers, sink: sink, origin: origin, timeout: timeout}
}

// Active reports whether a stream is currently live.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Start acquires a stream, mounts it on the sink and waits for the first
// frame. Any partially-acquired stream is released on every failure path.
func (c *Controller) Start(ctx context.Context) error {
	if !secureOrigin(c.origin) {
		return &Error{Kind: KindUnsupported, Reason: "camera requires a secure context (HTTPS or localhost)"}
	}
	if c.Active() {
		return nil
	}

	driver := c.pickDriver()
	if driver == nil {
		return &Error{Kind: KindUnsupported, Reason: "no camera backend available on this device"}
	}

	openCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := driver.Open(openCtx, DefaultConstraints)
	if err != nil {
		return classifyOpen(driver.Name(), err)
	}
	// The first-frame window is measured from stream grant, not from Start.
	deadline := time.Now().Add(c.timeout)

	if err := c.mount(stream); err != nil {
		_ = stream.Close()
		return err
	}

	select {
	case <-stream.FirstFrame():
	case <-time.After(time.Until(deadline)):
		c.sink.Detach()
		_ = stream.Close()
		return &Error{Kind: KindTimeout, Reason: fmt.Sprintf("no frame within %s", c.timeout)}
	case <-ctx.Done():
		c.sink.Detach()
		_ = stream.Close()
		return ctx.Err()
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	return nil
}

// Capture encodes the current frame as JPEG at fixed quality.
func (c *Controller) Capture() (Photo, error) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return Photo{}, ErrNoActiveStream
	}

	frame, err := stream.Frame()
	if err != nil {
		return Photo{}, fmt.Errorf("camera: read frame: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Photo{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	return Photo{Data: buf.Bytes(), MIMEType: "image/jpeg", Size: buf.Len()}, nil
}

// Stop releases the stream and detaches the sink. Safe to call from any
// state, including before Start and repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
	if c.sink != nil {
		c.sink.Detach()
	}
}

// mount waits for the sink with bounded polling to tolerate UI mount races.
func (c *Controller) mount(stream Stream) error {
	for i := 0; i < mountAttempts; i++ {
		if c.sink.Ready() {
			if err := c.sink.Attach(stream); err != nil {
				return &Error{Kind: KindUnknown, Reason: "attach stream to sink", Err: err}
			}
			return nil
		}
		time.Sleep(mountInterval)
	}
	return &Error{Kind: KindUnknown, Reason: "video sink never mounted"}
}

func (c *Controller) pickDriver() Driver {
	for _, d := range c.drivers {
		if d.Available() {
			return d
		}
	}
	return nil
}

func classifyOpen(driver string, err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &Error{Kind: KindDenied, Reason: "camera access denied", Err: err}
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: KindNotFound, Reason: "no camera device found", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Reason: "stream grant timed out", Err: err}
	default:
		return &Error{Kind: KindUnknown, Reason: fmt.Sprintf("driver %s failed", driver), Err: err}
	}
}

// secureOrigin reports whether the origin may touch the device media APIs:
// HTTPS anywhere, or plain HTTP on localhost.
func secureOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1" || host == "::1"
	}
	return false
}
