package workflow

import (
	"strings"
	"sync"

	"presence/internal/api"
)

// shadow is the advisory local copy of check-in/check-out availability. It
// only narrows requests; the server's answer is authoritative and corrects
// the shadow after every call.
type shadow struct {
	mu       sync.Mutex
	checkIn  bool
	checkOut bool
	// last server-supplied reasons, surfaced when the shadow short-circuits
	checkInReason  string
	checkOutReason string
}

func newShadow() shadow {
	return shadow{checkIn: true, checkOut: true}
}

// disallows reports whether the shadow already knows the action is blocked
// and with what message. Only check-in short-circuits are worth saving a
// round trip for; check-out is always asked of the server.
func (s *shadow) disallows(action api.Action) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action == api.ActionCheckIn && !s.checkIn && s.checkInReason != "" {
		return s.checkInReason, true
	}
	return "", false
}

// observeVerification corrects the shadow from a server response. A
// rejected check-in whose message says the user already checked in flips
// check-out availability on as well.
func (s *shadow) observeVerification(action api.Action, vr api.VerificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := strings.ToLower(vr.Message)
	switch action {
	case api.ActionCheckIn:
		s.checkIn = vr.Allowed
		if !vr.Allowed {
			s.checkInReason = vr.Message
			if strings.Contains(msg, "already checked in") {
				s.checkOut = true
			}
		}
	case api.ActionCheckOut:
		s.checkOut = vr.Allowed
		if !vr.Allowed {
			s.checkOutReason = vr.Message
			if strings.Contains(msg, "check in first") || strings.Contains(msg, "must check in") {
				s.checkIn = true
			}
		}
	}
}

// observeSuccess records a completed action.
func (s *shadow) observeSuccess(action api.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case api.ActionCheckIn:
		s.checkIn = false
		s.checkInReason = "you have already checked in today"
		s.checkOut = true
	case api.ActionCheckOut:
		s.checkOut = false
		s.checkOutReason = "you have already checked out today"
	}
}
