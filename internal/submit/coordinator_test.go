package submit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"presence/internal/api"
	"presence/internal/auth"
	"presence/internal/camera"
	"presence/internal/location"
	"presence/internal/notify"
)

type recordingSink struct {
	mu         sync.Mutex
	messages   []string
	severities []notify.Severity
}

func (s *recordingSink) Notify(message string, severity notify.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	s.severities = append(s.severities, severity)
}

func (s *recordingSink) snapshot() ([]string, []notify.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...), append([]notify.Severity(nil), s.severities...)
}

type backend struct {
	t *testing.T

	mu          sync.Mutex
	record      api.Record
	records     int
	uploads     int
	uploadName  string
	rejectWith  string
	uploadFails bool
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/attendance", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.records++
		if err := json.NewDecoder(r.Body).Decode(&b.record); err != nil {
			b.t.Errorf("decode record: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if b.rejectWith != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": b.rejectWith})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": "تمت العملية بنجاح", "message": "recorded"})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.uploads++
		b.uploadName = r.URL.Query().Get("name")
		fails := b.uploadFails
		b.mu.Unlock()
		if fails {
			http.Error(w, "storage down", http.StatusInternalServerError)
		}
	})
	return mux
}

func newFixture(t *testing.T, b *backend) (*Coordinator, *recordingSink) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	session := auth.NewSession(nil)
	session.SetToken("session-tok")
	client := &api.Client{BaseURL: srv.URL, HTTP: srv.Client(), Session: session}
	uploader := &api.Uploader{Endpoint: srv.URL + "/upload", HTTP: srv.Client()}
	sink := &recordingSink{}
	return NewCoordinator(client, uploader, sink), sink
}

func request(hint string) Request {
	return Request{
		Action: api.ActionCheckIn,
		Verification: api.VerificationResult{
			Allowed:       true,
			UploadToken:   "upload-tok",
			AssetNameHint: hint,
		},
		Fix:           location.Fix{Latitude: 24.7, Longitude: 46.6, Tier: location.TierHigh},
		Photo:         camera.Photo{Data: []byte{0xFF, 0xD8, 0x00}, MIMEType: "image/jpeg", Size: 3},
		EmployeePhone: "0555123456",
	}
}

func TestSubmitUsesHintedAssetName(t *testing.T) {
	t.Parallel()

	b := &backend{t: t}
	c, _ := newFixture(t, b)

	res, err := c.Submit(context.Background(), request("morning-shift"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Accepted {
		t.Fatalf("Submit() not accepted: %+v", res)
	}
	c.WaitUploads()

	if b.record.File.Name != "morning-shift.jpg" {
		t.Fatalf("record file name = %q, want hint with .jpg suffix", b.record.File.Name)
	}
	if b.uploadName != "morning-shift.jpg" {
		t.Fatalf("upload name = %q, want the record's asset name", b.uploadName)
	}
	if b.record.File.Location.Latitude != 24.7 {
		t.Fatalf("record location = %+v", b.record.File.Location)
	}
}

func TestSubmitFallbackAssetNameFromEmployeeAndTime(t *testing.T) {
	t.Parallel()

	b := &backend{t: t}
	c, _ := newFixture(t, b)

	if _, err := c.Submit(context.Background(), request("")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	c.WaitUploads()

	name := b.record.File.Name
	if !strings.HasPrefix(name, "0555123456_") {
		t.Fatalf("fallback name = %q, want employee identifier prefix", name)
	}
	if !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("fallback name = %q, want .jpg suffix", name)
	}
}

func TestSubmitRecordBodyShape(t *testing.T) {
	t.Parallel()

	b := &backend{t: t}
	c, _ := newFixture(t, b)

	if _, err := c.Submit(context.Background(), request("x")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	c.WaitUploads()

	if b.record.Type != api.ActionCheckIn {
		t.Fatalf("record type = %q", b.record.Type)
	}
	// Vendor day format: yy-MM-dd.
	if len(b.record.DateDay) != 8 || b.record.DateDay[2] != '-' || b.record.DateDay[5] != '-' {
		t.Fatalf("dateDay = %q, want yy-MM-dd", b.record.DateDay)
	}
	if b.record.CapturedAtUtc == "" {
		t.Fatalf("capturedAtUtc missing")
	}
}

func TestSubmitUploadFailureDowngradesToWarning(t *testing.T) {
	t.Parallel()

	b := &backend{t: t, uploadFails: true}
	c, sink := newFixture(t, b)

	res, err := c.Submit(context.Background(), request("a"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Accepted {
		t.Fatalf("upload failure rolled back the record acceptance")
	}
	c.WaitUploads()

	messages, severities := sink.snapshot()
	if len(messages) != 1 {
		t.Fatalf("notifications = %v, want exactly one warning", messages)
	}
	if severities[0] != notify.Warning {
		t.Fatalf("severity = %q, want warning, not failure", severities[0])
	}
}

func TestSubmitRejectionSkipsUpload(t *testing.T) {
	t.Parallel()

	b := &backend{t: t, rejectWith: "outside working hours"}
	c, _ := newFixture(t, b)

	res, err := c.Submit(context.Background(), request("a"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Accepted {
		t.Fatalf("rejection decoded as acceptance")
	}
	if res.Message != "outside working hours" {
		t.Fatalf("Message = %q, want server message verbatim", res.Message)
	}
	c.WaitUploads()
	if b.uploads != 0 {
		t.Fatalf("upload attempted after rejection")
	}
}
