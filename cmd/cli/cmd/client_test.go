package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warehousesim/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimClient_RunSimulation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/simulations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.RunSimulationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{1, 2}, req.ZoneIDs)
		assert.True(t, req.UseTestData)

		json.NewEncoder(w).Encode(api.SimulationResponse{RunID: "run-1", Seed: 9})
	}))
	defer server.Close()

	client := NewSimClient(server.URL, 0)
	res, err := client.RunSimulation(context.Background(), api.RunSimulationRequest{ZoneIDs: []int64{1, 2}, UseTestData: true})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, uint64(9), res.Seed)
}

func TestSimClient_APIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantDetails string
	}{
		{
			name:        "json error body",
			status:      http.StatusBadRequest,
			body:        `{"error":"Invalid simulation request","code":"400","details":"invalid zone: zone 9 not found"}`,
			wantMessage: "Invalid simulation request",
			wantDetails: "invalid zone: zone 9 not found",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream down\n",
			wantMessage: "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewSimClient(server.URL, time.Second).GetSimulation(context.Background(), "abc")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantDetails, apiErr.Details)
		})
	}
}

func TestSimClient_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewSimClient(url, time.Second).RunMonteCarlo(context.Background(), api.MonteCarloRequest{ZoneIDs: []int64{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestSimClient_InvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewSimClient(server.URL, time.Second).GetSimulation(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
