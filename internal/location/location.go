package location

import (
	"context"
	"errors"
	"time"
)

// AccuracyTier classifies where a fix came from.
type AccuracyTier string

const (
	TierHigh    AccuracyTier = "high"
	TierLow     AccuracyTier = "low"
	TierDefault AccuracyTier = "default"
)

// Fix is a resolved device location.
type Fix struct {
	Latitude   float64
	Longitude  float64
	AcquiredAt time.Time
	Tier       AccuracyTier
}

// Options mirrors the device geolocation request parameters.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// Provider is the platform geolocation source.
type Provider interface {
	Fix(ctx context.Context, opts Options) (Fix, error)
}

// Errors a Provider may return. The acquirer treats any provider error as
// a failed stage and moves on to the next one.
var (
	ErrPermissionDenied = errors.New("location: permission denied")
	ErrTimeout          = errors.New("location: timed out")
	ErrUnavailable      = errors.New("location: position unavailable")
)

// ErrDeclined reports that the user turned down the default-location offer.
// It is a cancellation, not a failure.
var ErrDeclined = errors.New("location: declined by user")
