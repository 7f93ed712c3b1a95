package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
)

const (
	defaultBaseURL = "http://localhost:8080"
	maxBodyBytes   = 8 << 20
)

// ErrFetch covers transport failures, non-2xx answers and undecodable bodies.
var ErrFetch = errors.New("analytics fetch failed")

// Client talks to the analytics API. The zero value is usable and points
// at a local backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger.WithComponent(log.ComponentAnalytics),
	}
}

// IncomeVsExpenses fetches the daily income/expense series for period.
func (c *Client) IncomeVsExpenses(ctx context.Context, period core.Period) (IncomeVsExpenses, error) {
	var out IncomeVsExpenses
	if err := period.Validate(); err != nil {
		return out, err
	}
	q := url.Values{"period": {period.String()}}
	if err := c.getJSON(ctx, "/api/analytics/income-vs-expenses", q, &out); err != nil {
		return IncomeVsExpenses{}, err
	}
	if out.Data == nil {
		return IncomeVsExpenses{}, fmt.Errorf("%w: income-vs-expenses response has no data", core.ErrMalformedPayload)
	}
	return out, nil
}

// ExpenseSummary fetches the category, weekday and description breakdowns.
func (c *Client) ExpenseSummary(ctx context.Context, period core.Period) (ExpenseSummary, error) {
	var out ExpenseSummary
	if err := period.Validate(); err != nil {
		return out, err
	}
	q := url.Values{"period": {period.String()}}
	if err := c.getJSON(ctx, "/api/analytics/expense-summary", q, &out); err != nil {
		return ExpenseSummary{}, err
	}
	if out.ByCategory == nil {
		return ExpenseSummary{}, fmt.Errorf("%w: expense-summary response has no by_category", core.ErrMalformedPayload)
	}
	return out, nil
}

// GoalForecast fetches the projection for one goal.
func (c *Client) GoalForecast(ctx context.Context, goalID string) (GoalForecast, error) {
	var out GoalForecast
	goalID = strings.TrimSpace(goalID)
	if goalID == "" {
		return out, core.ErrEmptyGoal
	}
	q := url.Values{"goal_id": {goalID}}
	if err := c.getJSON(ctx, "/api/analytics/goal-forecast", q, &out); err != nil {
		return GoalForecast{}, err
	}
	if out.Data == nil {
		return GoalForecast{}, fmt.Errorf("%w: goal-forecast response has no data", core.ErrMalformedPayload)
	}
	return out, nil
}

// Goals lists the savings goals available for the goal selector.
func (c *Client) Goals(ctx context.Context) ([]core.Goal, error) {
	var out []core.Goal
	if err := c.getJSON(ctx, "/api/goals", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Goal{}
	}
	return out, nil
}

// Generate posts one insight payload and returns the narrative text.
// It satisfies insight.Generator.
func (c *Client) Generate(ctx context.Context, req core.InsightRequest) (string, error) {
	if req.IsEmpty() {
		return "", fmt.Errorf("%w: empty insight payload", core.ErrMalformedPayload)
	}
	body, err := c.do(ctx, http.MethodPost, "/api/insights", nil, []byte(req))
	if err != nil {
		return "", err
	}
	var parsed insightResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode insight response: %v", ErrFetch, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", core.ErrMalformedPayload, parsed.Error)
	}
	if parsed.Insight == nil {
		return "", fmt.Errorf("%w: insight response has no insight", core.ErrMalformedPayload)
	}
	return *parsed.Insight, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		return fmt.Errorf("%w: %s", core.ErrMalformedPayload, eb.Error)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrFetch, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := log.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().WarnContext(ctx, "Analytics request failed",
			log.NewFields().WithOperation(log.OpFetch).WithError(err).ToSlice()...)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrFetch, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, path, err)
	}

	c.logger().DebugContext(ctx, "Analytics request completed",
		log.FieldURL, path,
		log.FieldMethod, method,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrFetch, method, path, resp.StatusCode, eb.Error)
		}
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrFetch, method, path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) baseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return defaultBaseURL
	}
	return base
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return &http.Client{Timeout: 10 * time.Second}
	}
	return c.HTTPClient
}

func (c *Client) logger() *log.Logger {
	if c.Logger == nil {
		return log.Discard()
	}
	return c.Logger
}
