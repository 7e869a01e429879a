package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Constraints describe the stream the controller requests from a driver.
type Constraints struct {
	Width       int
	Height      int
	FrontFacing bool
	Audio       bool
}

// DefaultConstraints is the modest forward-facing stream the capture flow
// asks for. Capture itself reads frames at the stream's native resolution.
var DefaultConstraints = Constraints{Width: 640, Height: 480, FrontFacing: true}

// Stream is an open camera stream. Close stops every underlying track and
// must be safe to call more than once.
type Stream interface {
	// FirstFrame is closed once the stream has produced a decodable frame.
	FirstFrame() <-chan struct{}
	// Frame returns the current frame at the stream's native resolution.
	Frame() (image.Image, error)
	Close() error
}

// Driver is one platform media backend. Drivers are probed in order so a
// modern backend can fall back to legacy ones before the controller
// declares the device unsupported.
type Driver interface {
	Name() string
	Available() bool
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Errors drivers report from Open. The controller maps them onto the
// user-facing error kinds.
var (
	ErrPermissionDenied = errors.New("camera: permission denied")
	ErrNotFound         = errors.New("camera: no device found")
)

// ErrorKind classifies a start failure.
type ErrorKind string

const (
	KindDenied      ErrorKind = "denied"
	KindNotFound    ErrorKind = "not_found"
	KindUnsupported ErrorKind = "unsupported"
	KindTimeout     ErrorKind = "timeout"
	KindUnknown     ErrorKind = "unknown"
)

// Error is a classified camera failure.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("camera: %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind, defaulting to unknown.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// ErrNoActiveStream reports a capture attempt with no live stream. This is
// a logical error in the caller, not a device failure.
var ErrNoActiveStream = errors.New("camera: capture without an active stream")
