package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Uploader pushes photo blobs to object storage. It authenticates with the
// verification-issued upload token, never the user's session credential.
type Uploader struct {
	Endpoint string
	HTTP     *http.Client
}

// NewUploader creates an uploader for the given object-storage endpoint.
func NewUploader(endpoint string) *Uploader {
	return &Uploader{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload sends raw JPEG bytes as a media upload. Callers treat failure as
// a warning: the record is already durable by the time this runs.
func (u *Uploader) Upload(ctx context.Context, uploadToken, name string, jpeg []byte) error {
	endpoint := fmt.Sprintf("%s?uploadType=media&name=%s", u.Endpoint, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jpeg))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Authorization", "Bearer "+uploadToken)

	resp, err := u.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api: upload failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}
