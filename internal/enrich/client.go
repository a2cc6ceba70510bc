// Package enrich adds LLM deep-analysis text to finished analysis
// results. It talks to any OpenAI-compatible chat completions API with
// an ordered fallback chain; with no endpoints configured the package is
// inert and analyses complete without it.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const systemPrompt = `You are an Android platform engineer reviewing findings extracted from a bugreport. For each finding you receive (id, severity, title, evidence), explain the most likely root cause and the next debugging step in 2-4 sentences. Be specific to the evidence given; do not speculate beyond it.

Respond with JSON only:
{"overview": "1-3 sentence whole-device assessment", "findings": [{"id": <finding id>, "analysis": "root cause and next step"}]}`

// ErrUnavailable indicates all endpoints in the fallback chain failed.
var ErrUnavailable = errors.New("all enrichment endpoints unavailable")

// Endpoint is a single OpenAI-compatible provider.
type Endpoint struct {
	URL    string
	Model  string
	APIKey string
}

// Client calls chat-completions APIs with ordered fallback.
type Client struct {
	endpoints []Endpoint
	client    *http.Client
	log       *logrus.Logger
}

// NewClient builds a client over the given fallback chain.
func NewClient(endpoints []Endpoint, timeout time.Duration, log *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		endpoints: endpoints,
		log:       log,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// response is the JSON contract the model is prompted to produce.
type response struct {
	Overview string `json:"overview"`
	Findings []struct {
		ID       int    `json:"id"`
		Analysis string `json:"analysis"`
	} `json:"findings"`
}

// complete sends the evidence prompt through the fallback chain.
// Availability failures advance to the next endpoint; anything else
// (auth errors, malformed model output) aborts immediately.
func (c *Client) complete(ctx context.Context, userPrompt string) (*response, error) {
	if len(c.endpoints) == 0 {
		return nil, errors.New("no enrichment endpoints configured")
	}

	var lastErr error
	for i, ep := range c.endpoints {
		res, err := c.tryEndpoint(ctx, ep, userPrompt)
		if err == nil {
			if i > 0 {
				c.log.WithFields(logrus.Fields{"endpoint": i + 1, "model": ep.Model}).
					Info("enrichment fallback endpoint succeeded")
			}
			return res, nil
		}

		lastErr = err
		if isUnavailableErr(err) {
			c.log.WithFields(logrus.Fields{"endpoint": i + 1, "model": ep.Model}).
				WithError(err).Warn("enrichment endpoint unavailable, trying next")
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) tryEndpoint(ctx context.Context, ep Endpoint, userPrompt string) (*response, error) {
	reqBody := map[string]interface{}{
		"model": ep.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"max_tokens": 2048,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(ep.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("connection failed: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	var res response
	content := stripCodeFence(apiResp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	return &res, nil
}

// stripCodeFence unwraps ```json fences some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isUnavailableErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "connection") ||
		strings.Contains(s, "HTTP 502") ||
		strings.Contains(s, "HTTP 503") ||
		strings.Contains(s, "HTTP 504")
}
