// Package submit packages a verified capture into an attendance record and
// performs the two-phase submission: durable record first, then a
// best-effort asynchronous photo upload.
package submit

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"presence/internal/api"
	"presence/internal/camera"
	"presence/internal/location"
	"presence/internal/notify"
)

// Request carries everything a submission needs. The workflow only builds
// one when verification passed and both a fix and a photo exist.
type Request struct {
	Action        api.Action
	Verification  api.VerificationResult
	Fix           location.Fix
	Photo         camera.Photo
	EmployeePhone string
}

// Result is the record endpoint's decision.
type Result struct {
	Accepted bool
	Message  string
}

// Coordinator submits records and fires off photo uploads. Upload failure
// is downgraded to a warning and never rolls back the record.
type Coordinator struct {
	client   *api.Client
	uploader *api.Uploader
	sink     notify.Sink

	uploads sync.WaitGroup
}

// NewCoordinator wires the coordinator.
func NewCoordinator(client *api.Client, uploader *api.Uploader, sink notify.Sink) *Coordinator {
	return &Coordinator{client: client, uploader: uploader, sink: sink}
}

// Submit creates the attendance record and, only on acceptance, starts the
// asynchronous blob upload. A transport error or rejection leaves the
// caller's photo intact so retry does not require recapture.
func (c *Coordinator) Submit(ctx context.Context, req Request) (Result, error) {
	now := time.Now().UTC()
	name := assetName(req, now)

	rec := api.Record{
		EmployeePhone: req.EmployeePhone,
		Type:          req.Action,
		DateDay:       now.Format("06-01-02"),
		CapturedAtUtc: now.Format(time.RFC3339),
		File: api.RecordFile{
			Name: name,
			Location: api.Coordinates{
				Latitude:  req.Fix.Latitude,
				Longitude: req.Fix.Longitude,
			},
		},
	}

	outcome, err := c.client.CreateRecord(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !outcome.Accepted {
		return Result{Accepted: false, Message: outcome.Message}, nil
	}

	c.uploads.Add(1)
	go func(token string, data []byte) {
		defer c.uploads.Done()
		// Detached from the workflow: the record is already durable and a
		// failed upload only warrants a warning.
		uploadCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := c.uploader.Upload(uploadCtx, token, name, data); err != nil {
			log.Printf("submit: photo upload failed for %s: %v", name, err)
			uploadFailures.Inc()
			if c.sink != nil {
				c.sink.Notify("attendance was recorded, but the photo upload failed", notify.Warning)
			}
		}
	}(req.Verification.UploadToken, req.Photo.Data)

	return Result{Accepted: true, Message: outcome.Message}, nil
}

// WaitUploads blocks until in-flight uploads finish. Used on shutdown and
// in tests.
func (c *Coordinator) WaitUploads() {
	c.uploads.Wait()
}

// assetName prefers the server-issued hint and otherwise derives a name
// from the employee identifier and the current time, always ending .jpg.
func assetName(req Request, now time.Time) string {
	name := strings.TrimSpace(req.Verification.AssetNameHint)
	if name == "" {
		id := req.EmployeePhone
		if id == "" {
			id = uuid.NewString()
		}
		name = fmt.Sprintf("%s_%s_%d", id, strings.ToLower(string(req.Action)), now.Unix())
	}
	if !strings.HasSuffix(strings.ToLower(name), ".jpg") {
		name += ".jpg"
	}
	return name
}
