package lottery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Submitter delivers a contact record to the remote endpoint.
type Submitter interface {
	Submit(ctx context.Context, rec ContactRecord) error
}

// SheetsPath is where the site exposes its spreadsheet sink.
const SheetsPath = "/api/sheets"

// maxDiagnosticBody bounds how much of a failed response is kept for the error.
const maxDiagnosticBody = 4 << 10

// SheetsClient posts contact records to the site's sheet endpoint.
type SheetsClient struct {
	endpoint string
	client   *http.Client
}

// NewSheetsClient targets siteURL + SheetsPath with a per-request timeout.
func NewSheetsClient(siteURL string, timeout time.Duration) *SheetsClient {
	return &SheetsClient{
		endpoint: strings.TrimRight(siteURL, "/") + SheetsPath,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *SheetsClient) Endpoint() string { return c.endpoint }

// Submit sends [[name, phone, address, email, submittedAt]]. Any non-2xx
// status is a failure carrying the response body.
func (c *SheetsClient) Submit(ctx context.Context, rec ContactRecord) error {
	body, err := json.Marshal([][]string{rec.Row()})
	if err != nil {
		return &SubmissionError{Err: fmt.Errorf("marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &SubmissionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &SubmissionError{Err: fmt.Errorf("post: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBody))
		return &SubmissionError{
			Status: resp.StatusCode,
			Body:   string(diag),
			Err:    fmt.Errorf("sheet endpoint returned status %d", resp.StatusCode),
		}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
