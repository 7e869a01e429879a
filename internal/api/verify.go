package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// VerificationResult is the server's answer to "may this user perform the
// action right now". UploadToken is a short-lived credential for the blob
// upload only; AssetNameHint, when present, names the photo asset.
type VerificationResult struct {
	Allowed       bool
	Message       string
	UploadToken   string
	AssetNameHint string
}

// Verify asks the server whether the action is currently allowed. The
// server is the sole authority; a rejection here is not retryable until
// the underlying condition changes.
func (c *Client) Verify(ctx context.Context, action Action) (VerificationResult, error) {
	token, err := c.bearer()
	if err != nil {
		return VerificationResult{}, err
	}

	u := fmt.Sprintf("%s/verification?type=%s", c.BaseURL, url.QueryEscape(string(action)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return VerificationResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("api: verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return VerificationResult{}, c.expired()
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return VerificationResult{}, fmt.Errorf("api: verification error %s: %s", resp.Status, string(body))
	}

	var out struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Token    string `json:"token"`
		NameFile string `json:"nameFile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return VerificationResult{}, fmt.Errorf("api: decode verification response: %w", err)
	}
	return VerificationResult{
		Allowed:       out.Success,
		Message:       out.Message,
		UploadToken:   out.Token,
		AssetNameHint: out.NameFile,
	}, nil
}
