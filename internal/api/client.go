// Package api holds the HTTP clients for the attendance backend: the
// eligibility/verification endpoint, the record-creation endpoint, and the
// object-storage upload endpoint.
package api

import (
	"errors"
	"net/http"
	"time"

	"presence/internal/auth"
)

// Action selects the attendance direction.
type Action string

const (
	ActionCheckIn  Action = "CheckIn"
	ActionCheckOut Action = "CheckOut"
)

// ErrSessionExpired is returned on a 401-class response. The stored
// credential is already cleared by the time callers see it.
var ErrSessionExpired = errors.New("api: session expired")

// Client calls the attendance backend with the user's session credential.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session *auth.Session
}

// New creates a client around the session credential store.
func New(baseURL string, session *auth.Session) *Client {
	return &Client{
		BaseURL: baseURL,
		Session: session,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// bearer returns the session token or auth.ErrNoCredential, which is a
// local precondition failure and never reaches the network.
func (c *Client) bearer() (string, error) {
	return c.Session.Token()
}

// expired handles a 401 response: the credential is cleared so the
// presentation layer can redirect to authentication.
func (c *Client) expired() error {
	c.Session.Expire()
	return ErrSessionExpired
}
