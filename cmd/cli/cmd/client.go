package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"warehousesim/pkg/api"
)

// SimClient handles API calls to the warehousesim controller.
type SimClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSimClient creates a new client with the given base URL.
// A zero timeout means 30 seconds.
func NewSimClient(baseURL string, timeout time.Duration) *SimClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SimClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("API error (%d): %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// RunSimulation sends POST /simulations.
func (c *SimClient) RunSimulation(ctx context.Context, req api.RunSimulationRequest) (*api.SimulationResponse, error) {
	var result api.SimulationResponse
	if err := c.do(ctx, http.MethodPost, "/simulations", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunMonteCarlo sends POST /simulations/montecarlo.
func (c *SimClient) RunMonteCarlo(ctx context.Context, req api.MonteCarloRequest) (*api.MonteCarloResponse, error) {
	var result api.MonteCarloResponse
	if err := c.do(ctx, http.MethodPost, "/simulations/montecarlo", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSimulation sends GET /simulations/{id}.
func (c *SimClient) GetSimulation(ctx context.Context, id string) (*api.SimulationRunResponse, error) {
	var result api.SimulationRunResponse
	if err := c.do(ctx, http.MethodGet, "/simulations/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *SimClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
		var e api.ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Details = e.Details
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
