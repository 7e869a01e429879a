package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// legacySuccessSentinel is the string some deployments of the record
// endpoint return instead of a boolean true. Both must be honored.
const legacySuccessSentinel = "تمت العملية بنجاح"

// Record is the attendance record body. It carries the asset file name and
// location, never the raw pixel data.
type Record struct {
	EmployeePhone string     `json:"employeePhone"`
	Type          Action     `json:"type"`
	DateDay       string     `json:"dateDay"`
	CapturedAtUtc string     `json:"capturedAtUtc"`
	File          RecordFile `json:"file"`
}

// RecordFile names the photo asset and pins where it was taken.
type RecordFile struct {
	Name     string      `json:"name"`
	Location Coordinates `json:"location"`
}

// Coordinates is a bare latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Outcome is the decoded result of a record submission.
type Outcome struct {
	Accepted bool
	Message  string
}

// CreateRecord posts the attendance record. The server is the system of
// record; the client never mutates a record after submission.
func (c *Client) CreateRecord(ctx context.Context, rec Record) (Outcome, error) {
	token, err := c.bearer()
	if err != nil {
		return Outcome{}, err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("api: marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/attendance", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("api: record request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Outcome{}, c.expired()
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("api: read record response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if outcome, perr := ParseSubmissionOutcome(raw); perr == nil && outcome.Message != "" {
			return outcome, nil
		}
		return Outcome{}, fmt.Errorf("api: record error %s: %s", resp.Status, string(raw))
	}
	return ParseSubmissionOutcome(raw)
}

// ParseSubmissionOutcome decodes the record endpoint's inconsistent success
// signal: acceptance is success === true or the legacy string sentinel.
// The compatibility quirk lives here and nowhere else.
func ParseSubmissionOutcome(raw []byte) (Outcome, error) {
	var out struct {
		Success json.RawMessage `json:"success"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Outcome{}, fmt.Errorf("api: decode record response: %w", err)
	}

	accepted := false
	if len(out.Success) > 0 {
		var b bool
		if err := json.Unmarshal(out.Success, &b); err == nil {
			accepted = b
		} else {
			var s string
			if err := json.Unmarshal(out.Success, &s); err == nil {
				accepted = s == legacySuccessSentinel
			}
		}
	}
	return Outcome{Accepted: accepted, Message: out.Message}, nil
}
