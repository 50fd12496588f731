package registry

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

// HTTPRegistry talks to the identity collaborator's REST API.
type HTTPRegistry struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRegistry returns a client for the given base URL.
func NewHTTPRegistry(baseURL string) *HTTPRegistry {
	return &HTTPRegistry{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetCapability fetches one capability record.
func (r *HTTPRegistry) GetCapability(ctx context.Context, volunteerID string) (model.VolunteerCapability, error) {
	var c model.VolunteerCapability
	url := fmt.Sprintf("%s/volunteers/%s/capability", r.baseURL, volunteerID)
	if err := r.getJSON(ctx, url, &c); err != nil {
		return model.VolunteerCapability{}, err
	}
	return c, nil
}

// ListAvailable fetches all active capabilities.
func (r *HTTPRegistry) ListAvailable(ctx context.Context) ([]model.VolunteerCapability, error) {
	var caps []model.VolunteerCapability
	url := fmt.Sprintf("%s/volunteers/available", r.baseURL)
	if err := r.getJSON(ctx, url, &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// RecordRescueCompletion posts a completion record.
func (r *HTTPRegistry) RecordRescueCompletion(ctx context.Context, volunteerID string, responseMinutes float64) error {
	body, err := json.Marshal(map[string]any{"response_minutes": responseMinutes})
	if err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}
	url := fmt.Sprintf("%s/volunteers/%s/completions", r.baseURL, volunteerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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

func (r *HTTPRegistry) getJSON(ctx context.Context, url string, out any) error {
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
