// Package workflow sequences the attendance capture flow: eligibility
// check, location fix, photo capture, then the two-phase submission.
package workflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"presence/internal/api"
	"presence/internal/auth"
	"presence/internal/camera"
	"presence/internal/capture"
	"presence/internal/location"
	"presence/internal/notify"
	"presence/internal/submit"
)

// State is the workflow's explicit state. Idle is the only state a new
// action may be started from.
type State string

const (
	StateIdle              State = "idle"
	StateVerifying         State = "verifying"
	StateAcquiringLocation State = "acquiring_location"
	StateCapturing         State = "capturing"
	StateSubmitting        State = "submitting"
)

// Verifier is the eligibility gate.
type Verifier interface {
	Verify(ctx context.Context, action api.Action) (api.VerificationResult, error)
}

// Locator resolves a location fix with fallback.
type Locator interface {
	Acquire(ctx context.Context) (location.Fix, error)
}

// Submitter performs the two-phase submission.
type Submitter interface {
	Submit(ctx context.Context, req submit.Request) (submit.Result, error)
}

// Session is the capture session surface the workflow drives.
type Session interface {
	Enter(ctx context.Context) error
	Capture() error
	Retake(ctx context.Context) error
	Leave()
	Photo() *camera.Photo
	View() capture.View
}

// Config wires a workflow instance.
type Config struct {
	Verifier      Verifier
	Locations     Locator
	Session       Session
	Submitter     Submitter
	Sink          notify.Sink
	Phone         func() string
	OnRefresh     func()
	SubmitTimeout time.Duration
}

// Workflow is the single active attendance flow. All methods are serialized
// by one mutex; the camera stream and location cache are owned exclusively
// by this instance.
type Workflow struct {
	cfg    Config
	shadow shadow

	mu           sync.Mutex
	state        State
	attempt      uint64
	action       api.Action
	verification *api.VerificationResult
	fix          *location.Fix
}

// New creates an idle workflow.
func New(cfg Config) *Workflow {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	return &Workflow{cfg: cfg, state: StateIdle, shadow: newShadow()}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// View returns the capture session view for the presentation layer.
func (w *Workflow) View() capture.View {
	return w.cfg.Session.View()
}

// Start runs eligibility, location and camera start for one action,
// leaving the workflow in Capturing on success. Calls while the workflow
// is not idle are ignored; there are no nested instances. A Cancel issued
// while a blocking step runs abandons this attempt: whatever the step
// returns is discarded and the workflow stays wherever Cancel left it.
func (w *Workflow) Start(ctx context.Context, action api.Action) error {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		log.Printf("workflow: start ignored in state %s", w.state)
		return nil
	}
	w.attempt++
	attempt := w.attempt
	w.state = StateVerifying
	w.action = action
	w.mu.Unlock()

	if reason, ok := w.shadow.disallows(action); ok {
		w.notify(reason, notify.Error)
		w.reset(outcomeDenied)
		return nil
	}

	vr, err := w.cfg.Verifier.Verify(ctx, action)
	if w.stale(attempt) {
		return nil
	}
	if err != nil {
		w.reset(outcomeError)
		switch {
		case errors.Is(err, auth.ErrNoCredential):
			w.notify("you are not signed in", notify.Error)
		case errors.Is(err, api.ErrSessionExpired):
			w.notify("your session has expired, please sign in again", notify.Error)
		default:
			w.notify("could not verify eligibility, please try again", notify.Error)
			log.Printf("workflow: verification failed: %v", err)
		}
		return err
	}
	w.shadow.observeVerification(action, vr)
	if !vr.Allowed {
		w.notify(vr.Message, notify.Error)
		w.reset(outcomeDenied)
		return nil
	}

	w.mu.Lock()
	if w.attempt != attempt {
		w.mu.Unlock()
		return nil
	}
	w.verification = &vr
	w.state = StateAcquiringLocation
	w.mu.Unlock()

	fix, err := w.cfg.Locations.Acquire(ctx)
	if w.stale(attempt) {
		return nil
	}
	if err != nil {
		// Declining the default-location offer is a cancellation, not a
		// failure: back to idle with no notification.
		if !errors.Is(err, location.ErrDeclined) && ctx.Err() == nil {
			log.Printf("workflow: location acquisition failed: %v", err)
		}
		w.reset(outcomeCancelled)
		return nil
	}

	w.mu.Lock()
	if w.attempt != attempt {
		w.mu.Unlock()
		return nil
	}
	w.fix = &fix
	w.state = StateCapturing
	w.mu.Unlock()

	if err := w.cfg.Session.Enter(ctx); err != nil {
		if w.stale(attempt) {
			return nil
		}
		// Stay in Capturing: the user can retry the camera or cancel.
		w.notify(cameraMessage(err), notify.Error)
		return err
	}
	if w.stale(attempt) {
		// Cancelled while the camera was starting; release it again.
		w.cfg.Session.Leave()
	}
	return nil
}

// stale reports whether this attempt was cancelled or superseded while a
// blocking step ran. A stale attempt must not touch workflow state.
func (w *Workflow) stale(attempt uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempt != attempt
}

// Capture takes the photo. Valid only while capturing with a live stream.
func (w *Workflow) Capture() error {
	if w.State() != StateCapturing {
		return errors.New("workflow: capture outside capturing state")
	}
	if err := w.cfg.Session.Capture(); err != nil {
		w.notify(cameraMessage(err), notify.Error)
		return err
	}
	return nil
}

// Retake discards the photo and restarts the camera.
func (w *Workflow) Retake(ctx context.Context) error {
	if w.State() != StateCapturing {
		return errors.New("workflow: retake outside capturing state")
	}
	if err := w.cfg.Session.Retake(ctx); err != nil {
		w.notify(cameraMessage(err), notify.Error)
		return err
	}
	return nil
}

// RetryCamera restarts the camera after a device failure.
func (w *Workflow) RetryCamera(ctx context.Context) error {
	if w.State() != StateCapturing {
		return errors.New("workflow: camera retry outside capturing state")
	}
	if err := w.cfg.Session.Enter(ctx); err != nil {
		w.notify(cameraMessage(err), notify.Error)
		return err
	}
	return nil
}

// Confirm submits the captured photo. Once invoked the submission runs to
// completion on a detached context; there is no cancelling it mid-flight.
func (w *Workflow) Confirm() error {
	w.mu.Lock()
	if w.state != StateCapturing {
		w.mu.Unlock()
		return errors.New("workflow: confirm outside capturing state")
	}
	photo := w.cfg.Session.Photo()
	if w.verification == nil || !w.verification.Allowed || w.fix == nil || photo == nil {
		w.mu.Unlock()
		return errors.New("workflow: confirm without verification, fix and photo")
	}
	req := submit.Request{
		Action:        w.action,
		Verification:  *w.verification,
		Fix:           *w.fix,
		Photo:         *photo,
		EmployeePhone: w.phone(),
	}
	w.state = StateSubmitting
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SubmitTimeout)
	defer cancel()

	res, err := w.cfg.Submitter.Submit(ctx, req)
	if err != nil {
		w.mu.Lock()
		w.state = StateCapturing
		w.mu.Unlock()
		if errors.Is(err, api.ErrSessionExpired) {
			w.notify("your session has expired, please sign in again", notify.Error)
		} else {
			w.notify("could not record attendance, please try again", notify.Error)
			log.Printf("workflow: submission failed: %v", err)
		}
		return err
	}
	if !res.Accepted {
		// Photo stays captured so the user can retry without recapturing.
		w.mu.Lock()
		w.state = StateCapturing
		w.mu.Unlock()
		w.notify(res.Message, notify.Error)
		transitions.WithLabelValues(string(req.Action), outcomeRejected).Inc()
		return nil
	}

	w.shadow.observeSuccess(req.Action)
	w.cfg.Session.Leave()
	w.mu.Lock()
	w.verification = nil
	w.fix = nil
	w.state = StateIdle
	w.mu.Unlock()
	transitions.WithLabelValues(string(req.Action), outcomeSuccess).Inc()
	w.notify(successMessage(req.Action), notify.Success)
	if w.cfg.OnRefresh != nil {
		w.cfg.OnRefresh()
	}
	return nil
}

// Cancel abandons the flow before submission: the camera stream is stopped
// synchronously and per-attempt state is discarded. Not an error; no
// notification is emitted.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	if w.state == StateIdle || w.state == StateSubmitting {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.reset(outcomeCancelled)
}

func (w *Workflow) reset(outcome string) {
	w.cfg.Session.Leave()
	w.mu.Lock()
	w.attempt++
	action := w.action
	w.verification = nil
	w.fix = nil
	w.state = StateIdle
	w.mu.Unlock()
	transitions.WithLabelValues(string(action), outcome).Inc()
}

func (w *Workflow) notify(message string, severity notify.Severity) {
	if w.cfg.Sink != nil && message != "" {
		w.cfg.Sink.Notify(message, severity)
	}
}

func (w *Workflow) phone() string {
	if w.cfg.Phone == nil {
		return ""
	}
	return w.cfg.Phone()
}

func successMessage(action api.Action) string {
	if action == api.ActionCheckOut {
		return "checked out successfully"
	}
	return "checked in successfully"
}

func cameraMessage(err error) string {
	switch camera.KindOf(err) {
	case camera.KindDenied:
		return "camera access was denied; allow camera access and retry"
	case camera.KindNotFound:
		return "no camera was found on this device"
	case camera.KindUnsupported:
		return "the camera is not supported in this environment"
	case camera.KindTimeout:
		return "the camera took too long to start, please retry"
	default:
		return "the camera failed to start, please retry"
	}
}
