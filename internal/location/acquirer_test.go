package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"presence/internal/notify"
)

type scriptedProvider struct {
	results []error
	calls   int
	fix     Fix
}

func (p *scriptedProvider) Fix(ctx context.Context, opts Options) (Fix, error) {
	i := p.calls
	p.calls++
	if i >= len(p.results) {
		return Fix{}, ErrUnavailable
	}
	if p.results[i] != nil {
		return Fix{}, p.results[i]
	}
	return p.fix, nil
}

type staticPrompter struct {
	answer bool
	asked  int
}

func (p *staticPrompter) ConfirmDefaultLocation() bool {
	p.asked++
	return p.answer
}

type recordingSink struct {
	messages   []string
	severities []notify.Severity
}

func (s *recordingSink) Notify(message string, severity notify.Severity) {
	s.messages = append(s.messages, message)
	s.severities = append(s.severities, severity)
}

func TestAcquireUsesFirstSuccessfulStage(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{
		results: []error{ErrTimeout, nil},
		fix:     Fix{Latitude: 1.5, Longitude: 2.5},
	}
	prompt := &staticPrompter{answer: true}
	a := NewAcquirer(provider, prompt, nil, 0, 0)

	fix, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if fix.Latitude != 1.5 || fix.Longitude != 2.5 {
		t.Fatalf("fix = %+v, want scripted coordinates", fix)
	}
	if fix.Tier != TierLow {
		t.Fatalf("fix.Tier = %q, want %q", fix.Tier, TierLow)
	}
	if prompt.asked != 0 {
		t.Fatalf("default-location prompt shown %d times, want 0", prompt.asked)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
}

func TestAcquireDeclinedFallbackIsCancellation(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{results: []error{ErrTimeout, ErrTimeout, ErrTimeout}}
	prompt := &staticPrompter{answer: false}
	sink := &recordingSink{}
	a := NewAcquirer(provider, prompt, sink, 10, 20)

	_, err := a.Acquire(context.Background())
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("Acquire() error = %v, want ErrDeclined", err)
	}
	if prompt.asked != 1 {
		t.Fatalf("prompt asked %d times, want 1", prompt.asked)
	}
	if len(sink.messages) != 0 {
		t.Fatalf("notifications = %v, want none on decline", sink.messages)
	}
}

func TestAcquireAcceptedFallbackWarnsAndTagsDefault(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{results: []error{ErrPermissionDenied, ErrTimeout, ErrUnavailable}}
	prompt := &staticPrompter{answer: true}
	sink := &recordingSink{}
	a := NewAcquirer(provider, prompt, sink, 24.7, 46.6)

	fix, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if fix.Tier != TierDefault {
		t.Fatalf("fix.Tier = %q, want %q", fix.Tier, TierDefault)
	}
	if fix.Latitude != 24.7 || fix.Longitude != 46.6 {
		t.Fatalf("fix = %+v, want default office coordinate", fix)
	}
	if len(sink.messages) != 1 || sink.severities[0] != notify.Warning {
		t.Fatalf("notifications = %v (%v), want exactly one warning", sink.messages, sink.severities)
	}
}

func TestAcquireShortCircuitsOnCachedFix(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{results: []error{nil}, fix: Fix{Latitude: 3}}
	a := NewAcquirer(provider, &staticPrompter{}, nil, 0, 0)

	if _, err := a.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if _, err := a.Acquire(context.Background()); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1 (cache hit)", provider.calls)
	}
}

func TestPrewarmPopulatesCacheSilently(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{results: []error{nil}, fix: Fix{Latitude: 7, Tier: TierLow}}
	sink := &recordingSink{}
	a := NewAcquirer(provider, &staticPrompter{}, sink, 0, 0)

	a.Prewarm(context.Background())
	cached := a.Cached()
	if cached == nil || cached.Latitude != 7 {
		t.Fatalf("Cached() = %+v, want prewarmed fix", cached)
	}
	if len(sink.messages) != 0 {
		t.Fatalf("prewarm emitted notifications: %v", sink.messages)
	}
	// Acquire must not touch the device again.
	if _, err := a.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() after prewarm error = %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}
}

func TestPrewarmSwallowsFailures(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{results: []error{ErrUnavailable}}
	sink := &recordingSink{}
	a := NewAcquirer(provider, &staticPrompter{answer: true}, sink, 0, 0)

	a.Prewarm(context.Background())
	if a.Cached() != nil {
		t.Fatalf("Cached() = %+v, want nil after failed prewarm", a.Cached())
	}
	if len(sink.messages) != 0 {
		t.Fatalf("failed prewarm emitted notifications: %v", sink.messages)
	}
}

func TestStaticProviderTiers(t *testing.T) {
	t.Parallel()

	p := StaticProvider{Latitude: 1, Longitude: 2}
	fix, err := p.Fix(context.Background(), Options{HighAccuracy: true, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Fix() error = %v", err)
	}
	if fix.Tier != TierHigh {
		t.Fatalf("fix.Tier = %q, want %q", fix.Tier, TierHigh)
	}
}
