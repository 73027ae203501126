package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const planAndRunPath = "/v1/agent/plan_and_run"

// Slot is one user-data fact forwarded to the agent.
type Slot struct {
	Metric string `json:"metric"`
	Grade  int    `json:"grade,omitempty"`
	Owner  string `json:"owner"`
}

// ToolSuggestion asks the agent to prefer a specific tool.
type ToolSuggestion struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// RAGHint steers document retrieval toward one collection.
type RAGHint struct {
	GroupHint string `json:"group_hint"`
	TopK      int    `json:"top_k,omitempty"`
}

// Payload is the request body for a plan-and-run call.
type Payload struct {
	Query            string           `json:"query"`
	UserID           string           `json:"user_id,omitempty"`
	ConvID           int64            `json:"conv_id,omitempty"`
	Locale           string           `json:"locale,omitempty"`
	Hints            []string         `json:"hints,omitempty"`
	RAG              *RAGHint         `json:"rag,omitempty"`
	WantsCalculation bool             `json:"wants_calculation,omitempty"`
	Slots            []Slot           `json:"slots,omitempty"`
	ExternalEntities []string         `json:"external_entities,omitempty"`
	ToolSuggestions  []ToolSuggestion `json:"tool_suggestions,omitempty"`
}

// Client calls the external agent endpoint. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retries    int
	limiter    *rate.Limiter
}

// Config represents agent client configuration.
type Config struct {
	URL           string
	Timeout       int // seconds, default 8
	Retries       int // network-error retries, default 2
	RatePerSecond float64
}

// NewClient creates an agent client from config.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 2
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		baseURL:    cfg.URL,
		retries:    retries,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// PlanAndRun posts the payload to the agent and parses its response.
// Network failures are retried; HTTP error statuses are not, since the agent
// already ran the plan once by the time it answers.
func (c *Client) PlanAndRun(ctx context.Context, payload *Payload) (*Result, error) {
	if c.baseURL == "" {
		return nil, errors.New("agent URL is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode agent payload")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "agent rate limit wait failed")
	}

	url := c.baseURL + planAndRunPath

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("Agent: retrying after network error",
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build agent request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Errorf("agent returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
		}

		result := ParseResult(raw)
		slog.Debug("Agent: plan_and_run completed",
			"kind", result.Kind.String(),
			"matches", len(result.Matches),
		)
		return result, nil
	}

	return nil, errors.Wrap(lastErr, fmt.Sprintf("agent request failed after %d attempts", c.retries+1))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
