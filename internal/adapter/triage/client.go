// Package triage adapts the external classification oracle. The oracle is an
// OpenAI-compatible chat-completions endpoint asked for a structured triage
// verdict; this package owns retry, output repair, the fixed fallback, and
// the classification cache.
package triage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/observability"
)

const systemInstruction = "You are the master triage unit for a disaster " +
	"response grid. Filter out spam. Prioritize life threats (RED). Respond " +
	"with a single JSON object with fields is_relevant (boolean), urgency " +
	"(RED, YELLOW or GREEN), risk_score (integer 0-100), reasoning (string), " +
	"recommended_action (string) and location_detected (string or null). " +
	"Ensure all location and text fields are simple strings."

// Client calls the triage oracle. Classify never returns an error for oracle
// failures; retries are exhausted and then the fixed fallback verdict is
// substituted so ingestion keeps moving.
type Client struct {
	api     *openai.Client
	model   string
	logger  *slog.Logger
	metrics *observability.Metrics

	// Retry policy: maxAttempts total, baseDelay doubling each retry.
	// Only rate-limit responses are retried.
	maxAttempts int
	baseDelay   time.Duration
}

// NewClient builds an oracle client. An empty baseURL targets the default
// deployment; timeout bounds every request.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

// Classify judges raw text, optionally with a JPEG image payload.
// The returned error is non-nil only when ctx is cancelled.
func (c *Client) Classify(ctx context.Context, text string, image []byte) (domain.Result, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	prompt := fmt.Sprintf("ANALYZE DISASTER SIGNAL: %q", text)
	if len(image) > 0 {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
			}},
		}
	} else {
		user.Content = prompt
	}

	raw, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
		user,
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.Result{}, ctx.Err()
		}
		c.logger.Warn("triage oracle unavailable, using fallback", "error", err)
		res := domain.FallbackResult(fmt.Sprintf("oracle call failed: %v", err))
		c.metrics.TriageRequests.WithLabelValues(string(res.Verdict)).Inc()
		return res, nil
	}

	res, err := ExtractAnalysis(raw)
	if err != nil {
		c.logger.Warn("triage output unsalvageable, using fallback", "error", err)
		res = domain.FallbackResult(fmt.Sprintf("unparseable oracle output: %v", err))
	}
	c.metrics.TriageRequests.WithLabelValues(string(res.Verdict)).Inc()
	return res, nil
}

// complete runs one chat completion with the retry policy applied.
func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	delay := c.baseDelay
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		c.metrics.TriageDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("oracle returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !isRateLimited(err) || attempt == c.maxAttempts-1 {
			return "", err
		}
		c.logger.Debug("oracle rate limited, backing off", "attempt", attempt+1, "delay", delay)
		if !sleepWithContext(ctx, delay) {
			return "", ctx.Err()
		}
		delay *= 2
	}
	return "", lastErr
}

// isRateLimited reports whether the oracle signalled HTTP 429.
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
