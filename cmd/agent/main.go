// The agent is the kiosk-side binary: it owns the attendance workflow and
// exposes a small control API the device UI drives. One workflow instance
// owns the camera stream and the session location cache.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/api"
	"presence/internal/auth"
	"presence/internal/camera"
	"presence/internal/capture"
	"presence/internal/config"
	"presence/internal/location"
	"presence/internal/notify"
	"presence/internal/submit"
	"presence/internal/workflow"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("agent failed: %v", err)
	}
}

func run(cfg config.App) error {
	recorder := notify.NewRecorder(32)
	sink := notify.Tee{notify.LogSink{}, recorder}

	var authRequired atomic.Bool
	session := auth.NewSession(func() {
		authRequired.Store(true)
		log.Printf("agent: session expired, redirecting to %s", cfg.AuthRedirectURL)
	})
	if err := bootstrapSession(cfg, session); err != nil {
		log.Printf("agent: no session credential yet: %v", err)
	}

	client := api.New(cfg.APIBaseURL, session)
	uploader := api.NewUploader(cfg.StorageEndpoint)

	acquirer := location.NewAcquirer(
		buildProvider(cfg),
		optInPrompter{allow: cfg.FallbackOptIn},
		sink,
		cfg.DefaultOfficeLat, cfg.DefaultOfficeLng,
	)

	origin := "http://localhost:" + cfg.HTTPPort
	ctrl := camera.NewController(
		[]camera.Driver{camera.SyntheticDriver{}},
		camera.NopSink{},
		origin,
		cfg.CameraTimeout,
	)
	capSession := capture.NewSession(ctrl)
	coordinator := submit.NewCoordinator(client, uploader, sink)

	var recordsStale atomic.Bool
	wf := workflow.New(workflow.Config{
		Verifier:      client,
		Locations:     acquirer,
		Session:       capSession,
		Submitter:     coordinator,
		Sink:          sink,
		Phone:         session.Phone,
		OnRefresh:     func() { recordsStale.Store(true) },
		SubmitTimeout: cfg.SubmitTimeout,
	})

	// Ambient cache warm-up; failures are invisible to the user.
	prewarmCtx, prewarmCancel := context.WithCancel(context.Background())
	defer prewarmCancel()
	go acquirer.Prewarm(prewarmCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics", "/state"},
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":         wf.State(),
			"view":          wf.View(),
			"auth_required": authRequired.Load(),
			"auth_redirect": cfg.AuthRedirectURL,
			"records_stale": recordsStale.Swap(false),
		})
	})

	r.GET("/notifications", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notifications": recorder.Drain()})
	})

	startAction := func(action api.Action) gin.HandlerFunc {
		return func(c *gin.Context) {
			// The pipeline blocks on device and network steps; the UI polls
			// /state while it runs.
			go func() {
				if err := wf.Start(context.Background(), action); err != nil {
					log.Printf("agent: %s flow: %v", action, err)
				}
			}()
			c.JSON(http.StatusAccepted, gin.H{"state": wf.State()})
		}
	}
	r.POST("/actions/checkin", startAction(api.ActionCheckIn))
	r.POST("/actions/checkout", startAction(api.ActionCheckOut))

	r.POST("/capture", func(c *gin.Context) {
		respond(c, wf.Capture(), wf)
	})
	r.POST("/retake", func(c *gin.Context) {
		respond(c, wf.Retake(c.Request.Context()), wf)
	})
	r.POST("/camera/retry", func(c *gin.Context) {
		respond(c, wf.RetryCamera(c.Request.Context()), wf)
	})
	r.POST("/confirm", func(c *gin.Context) {
		respond(c, wf.Confirm(), wf)
	})
	r.POST("/cancel", func(c *gin.Context) {
		wf.Cancel()
		c.JSON(http.StatusOK, gin.H{"state": wf.State()})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("agent listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down agent...")

	// Release camera tracks before the process exits, then let any
	// in-flight photo upload finish.
	wf.Cancel()
	coordinator.WaitUploads()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	return nil
}

func respond(c *gin.Context, err error, wf *workflow.Workflow) {
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": wf.State()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": wf.State(), "view": wf.View()})
}

// bootstrapSession stores the configured token, or trades the employee
// phone for one at the devserver's login endpoint.
func bootstrapSession(cfg config.App, session *auth.Session) error {
	if cfg.SessionToken != "" {
		session.SetToken(cfg.SessionToken)
		return nil
	}
	if cfg.EmployeePhone == "" {
		return errors.New("SESSION_TOKEN or EMPLOYEE_PHONE required")
	}
	body, _ := json.Marshal(map[string]string{"phone": cfg.EmployeePhone})
	resp, err := http.Post(cfg.APIBaseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	session.SetToken(out.AccessToken)
	return nil
}

// buildProvider picks the positioning source. "none" always fails, which
// exercises the default-office fallback ladder.
func buildProvider(cfg config.App) location.Provider {
	if cfg.LocationProvider == "none" {
		return failingProvider{}
	}
	return location.StaticProvider{Latitude: cfg.DefaultOfficeLat, Longitude: cfg.DefaultOfficeLng}
}

type failingProvider struct{}

func (failingProvider) Fix(ctx context.Context, opts location.Options) (location.Fix, error) {
	return location.Fix{}, location.ErrUnavailable
}

// optInPrompter answers the default-location offer from configuration; a
// kiosk has no one to ask interactively.
type optInPrompter struct{ allow bool }

func (p optInPrompter) ConfirmDefaultLocation() bool { return p.allow }
