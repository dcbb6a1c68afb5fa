package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/config"
)

// SubmissionError describes a failed job submission. Retryable
// distinguishes transient provider conditions (rate limit,
// unavailable, network) from configuration and terminal errors.
type SubmissionError struct {
	StatusCode int
	Message    string
	retryable  bool
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider request failed: %d - %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *SubmissionError) Retryable() bool {
	return e.retryable
}

// Client submits generation jobs to the asynchronous inference
// provider. Submission only obtains a job id; completion arrives later
// through the webhook endpoint.
type Client struct {
	config *config.ProviderConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.ProviderConfig, logger *zap.Logger) *Client {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.RequestTimeout); err == nil && d > 0 {
		timeout = d
	}

	return &Client{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type submissionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SubmitJob hands one prompt to the provider and returns the assigned
// job id. The provider delivers the result out-of-band to the
// configured callback URL.
func (c *Client) SubmitJob(ctx context.Context, prompt, baseImageURL string) (string, error) {
	if c.config.APIKey == "" {
		return "", &SubmissionError{Message: "provider API key not configured"}
	}
	if c.config.EndpointID == "" {
		return "", &SubmissionError{Message: "provider endpoint ID not configured"}
	}
	if c.config.WebhookURL == "" {
		return "", &SubmissionError{Message: "provider webhook URL not configured"}
	}

	input := map[string]any{
		"prompt": prompt,
	}
	if baseImageURL != "" {
		input["image"] = baseImageURL
	}
	for key, value := range c.config.ModelParameters {
		input[key] = coerceParameter(value)
	}

	body := map[string]any{
		"input":   input,
		"webhook": c.config.WebhookURL,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/run", c.config.BaseURL, c.config.EndpointID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &SubmissionError{Message: err.Error(), retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			retryable: resp.StatusCode == http.StatusTooManyRequests ||
				resp.StatusCode == http.StatusServiceUnavailable,
		}
	}

	var result submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &SubmissionError{Message: fmt.Sprintf("failed to decode provider response: %v", err), retryable: true}
	}
	if result.ID == "" {
		return "", &SubmissionError{Message: "no job ID in provider response", retryable: true}
	}

	c.logger.Debug("Submitted provider job", zap.String("job_id", result.ID))
	return result.ID, nil
}

// coerceParameter mirrors how configuration values reach the provider:
// numeric strings become numbers, everything else stays a string.
func coerceParameter(value string) any {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
