package location

import (
	"context"
	"log"
	"sync"
	"time"

	"presence/internal/notify"
)

// Prompter asks the user whether to fall back to the default office
// coordinate after every device attempt has failed.
type Prompter interface {
	ConfirmDefaultLocation() bool
}

// stages is the fallback ladder: long high-accuracy attempt first, then
// shorter low-accuracy ones, the last tolerating a 10-minute-old fix.
var stages = []Options{
	{HighAccuracy: true, Timeout: 20 * time.Second},
	{HighAccuracy: false, Timeout: 10 * time.Second},
	{HighAccuracy: false, Timeout: 5 * time.Second, MaxAge: 10 * time.Minute},
}

// Acquirer resolves a location fix with staged fallback and keeps a
// session-scoped cache so repeated actions do not re-prompt the device.
type Acquirer struct {
	provider Provider
	prompt   Prompter
	sink     notify.Sink

	defaultLat float64
	defaultLng float64

	mu     sync.Mutex
	cached *Fix
}

// NewAcquirer creates an acquirer. defaultLat/defaultLng is the office
// coordinate offered when every device attempt fails.
func NewAcquirer(provider Provider, prompt Prompter, sink notify.Sink, defaultLat, defaultLng float64) *Acquirer {
	return &Acquirer{
		provider:   provider,
		prompt:     prompt,
		sink:       sink,
		defaultLat: defaultLat,
		defaultLng: defaultLng,
	}
}

// Cached returns the session-cached fix, if any.
func (a *Acquirer) Cached() *Fix {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached == nil {
		return nil
	}
	f := *a.cached
	return &f
}

// Acquire returns a location fix, trying high accuracy first and degrading
// through shorter, cache-tolerant attempts. When all device attempts fail
// the user is offered the default office coordinate; declining returns
// ErrDeclined, which callers treat as cancellation rather than failure.
func (a *Acquirer) Acquire(ctx context.Context) (Fix, error) {
	if cached := a.Cached(); cached != nil {
		return *cached, nil
	}

	for _, opts := range stages {
		fix, err := a.attempt(ctx, opts)
		if err == nil {
			a.store(fix)
			return fix, nil
		}
		if ctx.Err() != nil {
			return Fix{}, ctx.Err()
		}
		log.Printf("location: attempt failed (highAccuracy=%v timeout=%s): %v", opts.HighAccuracy, opts.Timeout, err)
	}

	if a.prompt == nil || !a.prompt.ConfirmDefaultLocation() {
		return Fix{}, ErrDeclined
	}
	fix := Fix{
		Latitude:   a.defaultLat,
		Longitude:  a.defaultLng,
		AcquiredAt: time.Now(),
		Tier:       TierDefault,
	}
	a.store(fix)
	if a.sink != nil {
		a.sink.Notify("could not determine your location; using the default office location", notify.Warning)
	}
	return fix, nil
}

// Prewarm runs one silent, cache-tolerant fix attempt to populate the
// session cache. Failures are swallowed; no user-facing flow waits on it.
func (a *Acquirer) Prewarm(ctx context.Context) {
	if a.Cached() != nil {
		return
	}
	fix, err := a.attempt(ctx, Options{Timeout: 5 * time.Second, MaxAge: 10 * time.Minute})
	if err != nil {
		return
	}
	a.store(fix)
}

func (a *Acquirer) attempt(ctx context.Context, opts Options) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	fix, err := a.provider.Fix(ctx, opts)
	if err != nil {
		return Fix{}, err
	}
	if fix.AcquiredAt.IsZero() {
		fix.AcquiredAt = time.Now()
	}
	if fix.Tier == "" {
		if opts.HighAccuracy {
			fix.Tier = TierHigh
		} else {
			fix.Tier = TierLow
		}
	}
	return fix, nil
}

func (a *Acquirer) store(fix Fix) {
	a.mu.Lock()
	a.cached = &fix
	a.mu.Unlock()
}
