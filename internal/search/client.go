package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"patterndraw/internal/capture"
	"patterndraw/internal/ratelimit"
	"patterndraw/pkg/model"
)

// Default analysis API endpoints, relative to the base URL
const (
	PatternSearchPath = "/stocks/search-by-pattern"
	FindSimilarPath   = "/stocks/find-similar"
	SymbolsPath       = "/stocks/symbols"
)

// ErrTokenExpired is returned before any call when the bearer token has expired
var ErrTokenExpired = errors.New("api token expired")

// APIError is a non-2xx answer from the analysis API
type APIError struct {
	Endpoint  string
	Status    int
	Detail    string
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

// PatternPoint is a waypoint as the search endpoint expects it
type PatternPoint struct {
	Time  int64        `json:"time"`
	Price float64      `json:"price"`
	Type  capture.Kind `json:"type"`
}

// PatternRequest is the primary search body
type PatternRequest struct {
	Symbol        string             `json:"symbol"`
	Points        []PatternPoint     `json:"points"`
	Criteria      map[string]float64 `json:"criteria"`
	MinSimilarity float64            `json:"min_similarity"`
	Limit         int                `json:"limit"`
}

// SimilarRequest is the fallback (date range) search body
type SimilarRequest struct {
	Symbol        string  `json:"symbol"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	MinSimilarity float64 `json:"min_similarity"`
	Limit         int     `json:"limit"`
}

// Endpoints names the paths the client posts to
type Endpoints struct {
	PatternSearch string
	FindSimilar   string
}

// Client talks to the remote analysis API
type Client struct {
	baseURL   string
	token     string
	endpoints Endpoints
	client    *http.Client
	limiter   *ratelimit.Limiter
	now       func() time.Time
}

// NewClient creates an analysis API client. token may be empty; limiter may be nil.
func NewClient(baseURL, token string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		endpoints: Endpoints{
			PatternSearch: PatternSearchPath,
			FindSimilar:   FindSimilarPath,
		},
		client:  &http.Client{Timeout: 120 * time.Second},
		limiter: limiter,
		now:     time.Now,
	}
}

// SetEndpoints overrides the search paths; empty fields keep their defaults
func (c *Client) SetEndpoints(e Endpoints) {
	if e.PatternSearch != "" {
		c.endpoints.PatternSearch = e.PatternSearch
	}
	if e.FindSimilar != "" {
		c.endpoints.FindSimilar = e.FindSimilar
	}
}

// SetTimeout bounds each HTTP exchange; d <= 0 keeps the default
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client = &http.Client{Timeout: d}
	}
}

// Name identifies the client in logs and provider chains
func (c *Client) Name() string {
	return "analysis-api"
}

// SearchByPattern posts derived criteria to the primary endpoint
func (c *Client) SearchByPattern(ctx context.Context, req PatternRequest) ([]model.SimilarResult, error) {
	var out []model.SimilarResult
	if err := c.do(ctx, http.MethodPost, c.endpoints.PatternSearch, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindSimilar posts a date range to the coarser fallback endpoint
func (c *Client) FindSimilar(ctx context.Context, req SimilarRequest) ([]model.SimilarResult, error) {
	var out []model.SimilarResult
	if err := c.do(ctx, http.MethodPost, c.endpoints.FindSimilar, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Symbols lists the symbols the analysis API knows
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var out struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.do(ctx, http.MethodGet, SymbolsPath, nil, &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// Candles fetches chart candles for symbol
func (c *Client) Candles(ctx context.Context, symbol, interval, period string) (*model.CandleSeries, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("period", period)
	path := "/stocks/" + url.PathEscape(symbol) + "/candlestick?" + q.Encode()

	var out model.CandleSeries
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// checkToken rejects a token whose exp claim is in the past. The token is only
// decoded; verifying it is the server's job.
func (c *Client) checkToken() error {
	if c.token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		// opaque token, let the server decide
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !c.now().Before(exp.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.checkToken(); err != nil {
		return err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		if err := c.limiter.Pause(ctx); err != nil {
			return fmt.Errorf("rate limit backoff: %w", err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	endpoint := strings.SplitN(path, "?", 2)[0]
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", endpoint, err)
	}
	log.Printf("[API] %s %s -> %d in %s (request %s)", method, endpoint, resp.StatusCode,
		time.Since(start).Round(time.Millisecond), reqID)

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.limiter != nil {
			c.limiter.SignalRateLimited()
		}
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Detail: "rate limited", Retryable: true}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Endpoint:  endpoint,
			Status:    resp.StatusCode,
			Detail:    errorDetail(respBody),
			Retryable: resp.StatusCode >= 500,
		}
	}
	if c.limiter != nil {
		c.limiter.ResetBackoff()
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response %s: %w", endpoint, err)
	}
	return nil
}

// errorDetail pulls the message out of an error body ({"detail": ...}) or returns it trimmed
func errorDetail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
