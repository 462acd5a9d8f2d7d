// Package completion wraps the external text-completion service used
// as a best-effort fallback classifier and extractor.
//
// The service returns free-form text that is expected to contain a
// JSON array but frequently wraps it in commentary or code fences;
// ParseArray recovers what it can and tags the result accordingly.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

// DefaultEndpoint is the foundation-models completion endpoint.
const DefaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

// Config holds completion-service credentials and call behavior. It is
// constructed once at startup and passed by reference; no component
// reads environment state directly.
type Config struct {
	APIKey   string
	FolderID string
	Model    string
	Endpoint string
	// Timeout bounds one synchronous call. Calls that exceed it fail
	// and are not retried.
	Timeout time.Duration
	// PacingDelay is inserted between sequential chunks when the
	// model is locally hosted, to avoid resource contention. Zero for
	// remote services.
	PacingDelay time.Duration
	// MaxTokens caps the completion length requested from the service.
	MaxTokens int
}

// DefaultConfig returns call behavior defaults without credentials.
func DefaultConfig() *Config {
	return &Config{
		Model:     "yandexgpt-lite/latest",
		Endpoint:  DefaultEndpoint,
		Timeout:   2 * time.Minute,
		MaxTokens: 800,
	}
}

// Validate fails fast when required credentials are absent, before any
// network call is attempted.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingCredentials, "completion.api_key", nil)
	}
	if c.FolderID == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingCredentials, "completion.folder_id", nil)
	}
	return nil
}

// ModelURI renders the fully qualified model identifier.
func (c *Config) ModelURI() string {
	return fmt.Sprintf("gpt://%s/%s", c.FolderID, c.Model)
}

// Client is the completion-service contract. Implementations must
// tolerate concurrent calls.
type Client interface {
	// Complete sends a system instruction and user payload and returns
	// the raw completion text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// HTTPClient calls the completion service over HTTP with a fixed
// timeout and no automatic retry.
type HTTPClient struct {
	config *Config
	http   *http.Client
	log    logger.Logger
}

// NewHTTPClient validates the configuration and builds a client.
func NewHTTPClient(config *Config) (*HTTPClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &HTTPClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		log:    logger.GetGlobalLogger().WithComponent("completion"),
	}, nil
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionOptions struct {
	Stream      bool   `json:"stream"`
	Temperature int    `json:"temperature"`
	MaxTokens   string `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, system, user string) (string, error) {
	payload := completionRequest{
		ModelURI: c.config.ModelURI(),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: 0,
			MaxTokens:   fmt.Sprintf("%d", c.config.MaxTokens),
		},
		Messages: []message{
			{Role: "system", Text: system},
			{Role: "user", Text: user},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.InternalError("completion request encoding", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.InternalError("completion request construction", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.config.APIKey)
	req.Header.Set("x-folder-id", c.config.FolderID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.ExternalError(apperrors.CodeServiceTimeout, c.config.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.ExternalError(apperrors.CodeServiceStatus, c.config.Endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.ExternalError(apperrors.CodeServiceStatus, c.config.Endpoint,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.ExternalError(apperrors.CodeUnparseableResponse, c.config.Endpoint, err)
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", apperrors.ExternalError(apperrors.CodeUnparseableResponse, c.config.Endpoint,
			fmt.Errorf("no alternatives in response"))
	}

	c.log.WithFields(logger.Fields{
		"elapsed": time.Since(started).Round(time.Millisecond).String(),
		"chars":   len(user),
	}).Debug("completion call finished")

	return parsed.Result.Alternatives[0].Message.Text, nil
}

// Pace sleeps the configured pacing delay, honoring context
// cancellation. Called between sequential chunks.
func (c *Config) Pace(ctx context.Context) {
	if c.PacingDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.PacingDelay):
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
