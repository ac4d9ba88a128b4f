// internal/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/common/metrics"

	apperrors "restaurant-insights/internal/common/errors"
)

const (
	authHeader = "header"
	authParam  = "param"

	// Rate-limit waits are capped so a saturated quota cannot stall a
	// session for more than five minutes per attempt.
	maxRateLimitWait = 300 * time.Second
)

// endpointConfig is one model/auth combination tried in priority order.
type endpointConfig struct {
	Model      string
	AuthMethod string
}

// ModelResponse is the raw generative endpoint response body.
type ModelResponse struct {
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Content Content `json:"content"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// Text returns the first candidate's text, or empty when the model
// returned no usable candidate.
func (r *ModelResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type requestBody struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

// Client is a stateless request executor against a generative text
// endpoint. It walks an ordered list of model/auth configurations,
// retrying each with classified backoff before advancing.
type Client struct {
	apiKey     string
	baseURL    string
	configs    []endpointConfig
	maxRetries int

	firstAttemptTimeout time.Duration
	retryTimeout        time.Duration
	generation          generationConfig

	httpClient *http.Client
	logger     logger.Logger
	sleep      func(time.Duration)
}

func NewClient(cfg config.GenAIConfig, log logger.Logger) *Client {
	configs := make([]endpointConfig, 0, len(cfg.Models)+1)
	for _, model := range cfg.Models {
		configs = append(configs, endpointConfig{Model: model, AuthMethod: authHeader})
	}
	// Query-parameter auth for the primary model is the last resort: some
	// key restrictions reject header auth but accept the key parameter.
	if len(cfg.Models) > 0 {
		configs = append(configs, endpointConfig{Model: cfg.Models[0], AuthMethod: authParam})
	}

	return &Client{
		apiKey:              cfg.APIKey,
		baseURL:             cfg.BaseURL,
		configs:             configs,
		maxRetries:          cfg.MaxRetries,
		firstAttemptTimeout: cfg.FirstAttemptTimeout,
		retryTimeout:        cfg.RetryTimeout,
		generation: generationConfig{
			Temperature:     cfg.Temperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
		// No client-level timeout: each attempt carries its own context
		// deadline (60s first attempt, 30s after).
		httpClient: &http.Client{},
		logger:     log.With(map[string]interface{}{"component": "genai"}),
		sleep:      time.Sleep,
	}
}

var defaultSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// Generate sends the prompt through the configuration ladder and returns
// the first successful raw response.
//
// Classification per attempt:
//   - 200: done, no further configs tried
//   - 429: wait min(60*(attempt+1), 300)s, retry same config; no wait
//     when the budget is spent, the config is simply abandoned
//   - 404: model unknown at this endpoint, advance to next config
//   - 403: credentials problem, abort everything
//   - other HTTP: 5s delay, bounded retries, then advance
//   - timeout: 10s delay, bounded retries, then advance
//   - other transport errors: 2^attempt backoff, bounded retries, then advance
func (c *Client) Generate(ctx context.Context, prompt string) (*ModelResponse, error) {
	payload, err := c.buildPayload(prompt)
	if err != nil {
		return nil, apperrors.NewUnexpectedError(err)
	}

	for _, cfg := range c.configs {
		log := c.logger.With(map[string]interface{}{
			"model": cfg.Model,
			"auth":  cfg.AuthMethod,
		})
		log.Info("trying model configuration", nil)

		for attempt := 0; attempt < c.maxRetries; attempt++ {
			resp, retry, err := c.attempt(ctx, cfg, payload, attempt, log)
			if resp != nil {
				return resp, nil
			}
			if err != nil {
				return nil, err
			}
			if !retry {
				break
			}
		}
	}

	return nil, apperrors.NewGenAIUnavailableError(
		fmt.Sprintf("%d configurations exhausted after %d attempts each", len(c.configs), c.maxRetries))
}

// attempt runs one request. It returns the response on success, an error
// only for non-recoverable aborts (403), and retry=false when the current
// config should be abandoned.
func (c *Client) attempt(ctx context.Context, cfg endpointConfig, payload []byte, attempt int, log logger.Logger) (*ModelResponse, bool, error) {
	timeout := c.retryTimeout
	if attempt == 0 {
		timeout = c.firstAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpointURL(cfg), bytes.NewReader(payload))
	if err != nil {
		return nil, false, apperrors.NewUnexpectedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.AuthMethod == authHeader {
		req.Header.Set("x-goog-api-key", c.apiKey)
	} else {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ExternalRequestDuration.WithLabelValues("genai").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalRequests.WithLabelValues("genai", "network_error").Inc()
		return nil, c.classifyTransportError(err, attempt, log), nil
	}
	defer resp.Body.Close()

	metrics.ExternalRequests.WithLabelValues("genai", strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusOK:
		var modelResp ModelResponse
		if err := json.NewDecoder(resp.Body).Decode(&modelResp); err != nil {
			log.Warn("failed to decode model response", map[string]interface{}{"error": err.Error()})
			return nil, false, nil
		}
		return &modelResp, false, nil

	case http.StatusTooManyRequests:
		if attempt >= c.maxRetries-1 {
			log.Warn("rate limited on final attempt, advancing", nil)
			return nil, false, nil
		}
		wait := time.Duration(60*(attempt+1)) * time.Second
		if wait > maxRateLimitWait {
			wait = maxRateLimitWait
		}
		log.Warn("rate limited, backing off", map[string]interface{}{"waitSeconds": wait.Seconds()})
		c.sleep(wait)
		return nil, true, nil

	case http.StatusNotFound:
		log.Warn("model not found, trying next configuration", nil)
		return nil, false, nil

	case http.StatusForbidden:
		log.Error("forbidden response, aborting", nil)
		return nil, false, apperrors.NewGenAIUnavailableError("403 forbidden: check API key permissions")

	default:
		log.Warn("unexpected status", map[string]interface{}{"status": resp.StatusCode})
		if attempt < c.maxRetries-1 {
			c.sleep(5 * time.Second)
			return nil, true, nil
		}
		return nil, false, nil
	}
}

// classifyTransportError decides whether to retry the current config after
// a transport-level failure and applies the matching delay.
func (c *Client) classifyTransportError(err error, attempt int, log logger.Logger) bool {
	if attempt >= c.maxRetries-1 {
		return false
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		log.Warn("request timeout", map[string]interface{}{"attempt": attempt + 1})
		c.sleep(10 * time.Second)
		return true
	}

	log.Warn("request failed", map[string]interface{}{
		"attempt": attempt + 1,
		"error":   err.Error(),
	})
	c.sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
	return true
}

func (c *Client) endpointURL(cfg endpointConfig) string {
	return fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, cfg.Model)
}

func (c *Client) buildPayload(prompt string) ([]byte, error) {
	return json.Marshal(requestBody{
		Contents:         []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: c.generation,
		SafetySettings:   defaultSafetySettings,
	})
}

// SelfTest issues a minimal prompt to verify connectivity and credentials.
func (c *Client) SelfTest(ctx context.Context) error {
	resp, err := c.Generate(ctx, `Say 'Hello, this is a test' in JSON format: {"message": "your response"}`)
	if err != nil {
		return err
	}
	if resp.Text() == "" {
		return apperrors.NewResponseParseError("self test returned no candidate text")
	}
	return nil
}
