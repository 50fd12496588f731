package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/strayaid/rescuedispatch/core/model"
)

// HTTPReports talks to the report collaborator's REST API.
type HTTPReports struct {
	baseURL string
	client  *http.Client
}

// NewHTTPReports returns a client for the given base URL.
func NewHTTPReports(baseURL string) *HTTPReports {
	return &HTTPReports{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetReport fetches one report.
func (r *HTTPReports) GetReport(ctx context.Context, reportID string) (model.RescueReport, error) {
	var report model.RescueReport
	url := fmt.Sprintf("%s/reports/%s", r.baseURL, reportID)
	if err := r.getJSON(ctx, url, &report); err != nil {
		return model.RescueReport{}, err
	}
	return report, nil
}

// ListPending fetches reports still waiting for a responder.
func (r *HTTPReports) ListPending(ctx context.Context) ([]model.RescueReport, error) {
	var out []model.RescueReport
	url := fmt.Sprintf("%s/reports/pending", r.baseURL)
	if err := r.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus updates the report's coarse status.
func (r *HTTPReports) SetStatus(ctx context.Context, reportID string, status model.ReportStatus) error {
	body, err := json.Marshal(map[string]any{"status": status})
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	url := fmt.Sprintf("%s/reports/%s/status", r.baseURL, reportID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (r *HTTPReports) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ErrNotFound
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	return nil
}
