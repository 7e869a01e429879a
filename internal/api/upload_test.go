package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUploadSendsMediaRequest(t *testing.T) {
	t.Parallel()

	payload := []byte{0xFF, 0xD8, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("uploadType"); got != "media" {
			t.Errorf("uploadType = %q, want media", got)
		}
		if got := r.URL.Query().Get("name"); got != "0555 photo.jpg" {
			t.Errorf("name = %q, want decoded file name", got)
		}
		if got := r.Header.Get("Content-Type"); got != "image/jpeg" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer upload-tok" {
			t.Errorf("Authorization = %q, want the upload token, not the session token", got)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != len(payload) {
			t.Errorf("body = %d bytes, want %d", len(body), len(payload))
		}
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, HTTP: srv.Client()}
	if err := u.Upload(context.Background(), "upload-tok", "0555 photo.jpg", payload); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestUploadNon2xxIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, HTTP: srv.Client()}
	if err := u.Upload(context.Background(), "tok", "a.jpg", []byte{1}); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}
