package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/config"
)

func testConfig(baseURL string) *config.ProviderConfig {
	return &config.ProviderConfig{
		APIKey:         "test-key",
		EndpointID:     "endpoint-1",
		BaseURL:        baseURL,
		WebhookURL:     "https://app.example.com/webhooks/provider",
		RequestTimeout: "5s",
		ModelParameters: map[string]string{
			"num_inference_steps": "30",
			"guidance_scale":      "7.5",
			"scheduler":           "DDIM",
		},
	}
}

func TestSubmitJobSuccess(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-123", "status": "IN_QUEUE"})
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL), zap.NewNop())

	jobID, err := client.SubmitJob(context.Background(), "a prompt", "https://blobs.example.com/base.jpg")
	require.NoError(t, err)
	assert.Equal(t, "job-123", jobID)

	assert.Equal(t, "/endpoint-1/run", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "https://app.example.com/webhooks/provider", gotBody["webhook"])

	input, ok := gotBody["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a prompt", input["prompt"])
	assert.Equal(t, "https://blobs.example.com/base.jpg", input["image"])
	// Numeric-looking parameters cross the wire as numbers.
	assert.Equal(t, float64(30), input["num_inference_steps"])
	assert.Equal(t, 7.5, input["guidance_scale"])
	assert.Equal(t, "DDIM", input["scheduler"])
}

func TestSubmitJobOmitsImageWhenAbsent(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-123"})
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL), zap.NewNop())

	_, err := client.SubmitJob(context.Background(), "a prompt", "")
	require.NoError(t, err)

	input := gotBody["input"].(map[string]any)
	_, present := input["image"]
	assert.False(t, present)
}

func TestSubmitJobMissingConfigIsNotRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*config.ProviderConfig)
	}{
		{"missing api key", func(c *config.ProviderConfig) { c.APIKey = "" }},
		{"missing endpoint id", func(c *config.ProviderConfig) { c.EndpointID = "" }},
		{"missing webhook url", func(c *config.ProviderConfig) { c.WebhookURL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig("http://unused.invalid")
			tc.mutate(cfg)
			client := NewClient(cfg, zap.NewNop())

			_, err := client.SubmitJob(context.Background(), "a prompt", "")
			require.Error(t, err)

			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.False(t, subErr.Retryable(), "configuration errors never resolve by retrying")
		})
	}
}

func TestSubmitJobStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			client := NewClient(testConfig(ts.URL), zap.NewNop())

			_, err := client.SubmitJob(context.Background(), "a prompt", "")
			require.Error(t, err)

			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.Equal(t, tc.status, subErr.StatusCode)
			assert.Equal(t, tc.retryable, subErr.Retryable())
		})
	}
}

func TestSubmitJobNetworkErrorIsRetryable(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from here on

	client := NewClient(testConfig(ts.URL), zap.NewNop())

	_, err := client.SubmitJob(context.Background(), "a prompt", "")
	require.Error(t, err)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.Retryable())
}

func TestSubmitJobMissingJobIDIsRetryable(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "IN_QUEUE"})
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL), zap.NewNop())

	_, err := client.SubmitJob(context.Background(), "a prompt", "")
	require.Error(t, err)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.Retryable())
	assert.Contains(t, err.Error(), "no job ID")
}

func TestSubmitJobRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SubmitJob(ctx, "a prompt", "")
	require.Error(t, err)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.Retryable(), "a cancelled request looks like any other transport failure")
}

func TestCoerceParameter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30, coerceParameter("30"))
	assert.Equal(t, 7.5, coerceParameter("7.5"))
	assert.Equal(t, "DDIM", coerceParameter("DDIM"))
	assert.Equal(t, "", coerceParameter(""))
}
