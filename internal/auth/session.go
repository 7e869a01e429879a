package auth

import (
	"errors"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when an operation needs a session token and
// none is stored. It is a local precondition failure, not a network error.
var ErrNoCredential = errors.New("auth: no session credential")

// Session holds the user's bearer credential for the current page session.
// A 401 from any endpoint clears it and triggers the expiry callback, which
// the presentation layer uses to redirect to authentication.
type Session struct {
	mu      sync.Mutex
	token   string
	phone   string
	expired func()
}

// NewSession creates a session store. onExpired may be nil.
func NewSession(onExpired func()) *Session {
	return &Session{expired: onExpired}
}

// SetToken stores the bearer token and derives the employee phone from its
// claims when possible. The signature is not verified here; the server is
// the authority and rejects bad tokens with a 401.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.phone = ""
	claims := Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		s.phone = claims.Phone
		if s.phone == "" {
			s.phone = claims.Subject
		}
	}
}

// Token returns the stored bearer token or ErrNoCredential.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// Phone returns the employee phone derived from the token claims.
func (s *Session) Phone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone
}

// Expire clears the credential and fires the expiry callback once.
func (s *Session) Expire() {
	s.mu.Lock()
	cb := s.expired
	had := s.token != ""
	s.token = ""
	s.phone = ""
	s.mu.Unlock()
	if had && cb != nil {
		cb()
	}
}
