// Package capture composes the camera controller with captured-photo state
// and the confirm-or-retake loop.
package capture

import (
	"context"
	"sync"

	"presence/internal/camera"
)

// View is what the capture UI should be showing.
type View string

const (
	// ViewIdle: no stream yet.
	ViewIdle View = "idle"
	// ViewLive: stream active, awaiting capture.
	ViewLive View = "live"
	// ViewCaptured: photo taken, awaiting confirm or retake.
	ViewCaptured View = "captured"
)

// Session owns at most one captured photo and the camera it came from.
// Entering starts the camera exactly once; leaving always stops it.
type Session struct {
	camera *camera.Controller

	mu       sync.Mutex
	starting bool
	photo    *camera.Photo
}

// NewSession wraps a camera controller.
func NewSession(ctrl *camera.Controller) *Session {
	return &Session{camera: ctrl}
}

// View derives the three-way UI state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo != nil {
		return ViewCaptured
	}
	if s.camera.Active() || s.starting {
		return ViewLive
	}
	return ViewIdle
}

// Photo returns the captured photo, or nil before capture.
func (s *Session) Photo() *camera.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo
}

// Enter starts the camera. A stream that is already active or already
// starting is left alone; two concurrent Enter calls cannot race a double
// start.
func (s *Session) Enter(ctx context.Context) error {
	s.mu.Lock()
	if s.starting || s.camera.Active() {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.mu.Unlock()

	err := s.camera.Start(ctx)

	s.mu.Lock()
	s.starting = false
	s.mu.Unlock()
	return err
}

// Capture takes the photo and releases the stream; the session moves to
// the confirm-or-retake view.
func (s *Session) Capture() error {
	photo, err := s.camera.Capture()
	if err != nil {
		return err
	}
	s.camera.Stop()
	s.mu.Lock()
	s.photo = &photo
	s.mu.Unlock()
	return nil
}

// Retake discards the current photo wholesale and restarts the camera.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	s.photo = nil
	s.mu.Unlock()
	return s.Enter(ctx)
}

// Leave stops the camera and discards any photo. Called on cancel,
// success, and navigation away; safe in every state.
func (s *Session) Leave() {
	s.camera.Stop()
	s.mu.Lock()
	s.photo = nil
	s.mu.Unlock()
}

// ClearPhoto drops the photo without touching the camera.
func (s *Session) ClearPhoto() {
	s.mu.Lock()
	s.photo = nil
	s.mu.Unlock()
}
