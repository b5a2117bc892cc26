// Package scrape wraps the Bright Data dataset API used to extract LinkedIn
// profiles. It is a typed transport only: all retry and polling policy lives
// in the importer.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

// SnapshotStatus classifies a snapshot fetch response.
type SnapshotStatus string

const (
	// SnapshotRunning means the scrape has not finished yet; keep polling.
	SnapshotRunning SnapshotStatus = "running"
	// SnapshotReady means the response carried a usable profile record.
	SnapshotReady SnapshotStatus = "ready"
	// SnapshotMalformed means the response parsed but matched no known
	// variant. The upstream shape is not perfectly stable, so this is a
	// keep-polling signal rather than an error.
	SnapshotMalformed SnapshotStatus = "malformed"
)

// SnapshotResult is the outcome of one snapshot fetch.
type SnapshotResult struct {
	Status SnapshotStatus
	// Profile is the first record of the result array when Status is
	// SnapshotReady.
	Profile json.RawMessage
}

// TriggerError reports a rejected trigger call (bad URL, bad credential,
// quota). Never retried automatically.
type TriggerError struct {
	StatusCode int
	Body       string
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("trigger failed: status %d: %s", e.StatusCode, e.Body)
}

// FetchError reports a failed snapshot fetch attempt.
type FetchError struct {
	StatusCode int
	Body       string
	Err        error // underlying transport error, if any
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("snapshot fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("snapshot fetch failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fatal reports whether the failure is unrecoverable for the current job:
// auth rejections, a snapshot that does not exist, or a connection-level
// refusal. Timeouts and 5xx responses stay transient.
func (e *FetchError) Fatal() bool {
	switch e.StatusCode {
	case 401, 403, 404:
		return true
	}
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}
	return false
}

// Config holds client configuration. The API token is injected, never
// embedded in client-reachable code.
type Config struct {
	BaseURL   string
	APIToken  string
	DatasetID string
	Timeout   time.Duration
}

// Client is a typed Bright Data dataset API client.
type Client struct {
	http      *resty.Client
	datasetID string
}

// NewClient creates a new Bright Data client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{
		http:      http,
		datasetID: cfg.DatasetID,
	}
}

type triggerRequest struct {
	URL string `json:"url"`
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// Trigger starts a dataset collection for the given profile URL and returns
// the snapshot id identifying the job.
func (c *Client) Trigger(ctx context.Context, profileURL string) (string, error) {
	var out triggerResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"dataset_id":     c.datasetID,
			"include_errors": "true",
		}).
		SetBody([]triggerRequest{{URL: profileURL}}).
		SetResult(&out).
		Post("/datasets/v3/trigger")
	if err != nil {
		return "", &TriggerError{Body: err.Error()}
	}
	if resp.IsError() {
		return "", &TriggerError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if out.SnapshotID == "" {
		return "", &TriggerError{StatusCode: resp.StatusCode(), Body: "no snapshot id in response"}
	}
	return out.SnapshotID, nil
}

// Snapshot fetches the result of a collection job. A "still running"
// response is a valid result variant, not an error.
func (c *Client) Snapshot(ctx context.Context, snapshotID string) (SnapshotResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("format", "json").
		Get("/datasets/v3/snapshot/" + snapshotID)
	if err != nil {
		return SnapshotResult{}, &FetchError{Err: err}
	}
	if resp.IsError() {
		return SnapshotResult{}, &FetchError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	return ParseSnapshot(resp.Body()), nil
}

// ParseSnapshot classifies a snapshot response body. A JSON object with
// status "running" means keep waiting; a non-empty array whose first element
// carries an identity field is a finished profile; anything else is
// malformed but tolerated.
func ParseSnapshot(body []byte) SnapshotResult {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return SnapshotResult{Status: SnapshotMalformed}
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &obj); err == nil && obj.Status == "running" {
			return SnapshotResult{Status: SnapshotRunning}
		}
		return SnapshotResult{Status: SnapshotMalformed}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil || len(records) == 0 {
		return SnapshotResult{Status: SnapshotMalformed}
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(records[0], &first); err != nil {
		return SnapshotResult{Status: SnapshotMalformed}
	}
	for _, key := range []string{"name", "id", "linkedin_id"} {
		if _, ok := first[key]; ok {
			return SnapshotResult{Status: SnapshotReady, Profile: records[0]}
		}
	}
	return SnapshotResult{Status: SnapshotMalformed}
}
