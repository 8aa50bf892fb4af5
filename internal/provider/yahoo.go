package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"patterndraw/internal/ratelimit"
	"patterndraw/internal/symbols"
	"patterndraw/pkg/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider implements the Provider interface for Yahoo Finance (unofficial API)
type YahooProvider struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	baseURL   string
}

// NewYahooProvider creates a new Yahoo Finance provider. limiter may be nil.
func NewYahooProvider(limiter *ratelimit.Limiter, perMinute int) *YahooProvider {
	if perMinute <= 0 {
		perMinute = 30 // Conservative rate limit
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter("yahoo", perMinute)
	}
	return &YahooProvider{
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   limiter,
		rateLimit: perMinute,
		baseURL:   yahooBaseURL,
	}
}

// SetBaseURL points the provider at another chart endpoint
func (p *YahooProvider) SetBaseURL(u string) {
	p.baseURL = u
}

// Name returns the provider name
func (p *YahooProvider) Name() string {
	return "yahoo"
}

// IsAvailable always returns true (no API key needed)
func (p *YahooProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *YahooProvider) RateLimit() int {
	return p.rateLimit
}

// yahooResponse represents the Yahoo Finance API response. Quote arrays carry
// nulls for halted sessions.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetCandles fetches candles for a BIST symbol. 4h bars are built from 1h bars.
func (p *YahooProvider) GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error) {
	interval, period = NormalizeRequest(interval, period)
	fetchInterval := interval
	if interval == "4h" {
		fetchInterval = "1h"
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := p.limiter.Pause(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("range", period)
	q.Set("interval", fetchInterval)
	q.Set("includePrePost", "false")
	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(symbols.Ticker(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}
	}

	p.limiter.ResetBackoff()

	var data yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if data.Chart.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.Chart.Error.Description), Retryable: false}
	}

	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Timestamp) == 0 ||
		len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w for %s", ErrNoData, symbol), Retryable: false}
	}

	result := data.Chart.Result[0]
	quotes := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		// Skip if any price is missing
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}

		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}

		candles = append(candles, model.Candle{
			Time:   ts,
			Open:   round2(*o),
			High:   round2(*h),
			Low:    round2(*l),
			Close:  round2(*c),
			Volume: volume,
		})
	}
	if len(candles) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w for %s", ErrNoData, symbol), Retryable: false}
	}

	if interval == "4h" {
		candles = Resample(candles, 4*time.Hour)
	}
	return candles, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Resample merges consecutive candles into buckets of width d, aligned to UTC.
// Input must be oldest first.
func Resample(candles []model.Candle, d time.Duration) []model.Candle {
	step := int64(d / time.Second)
	if step <= 0 || len(candles) == 0 {
		return candles
	}
	out := make([]model.Candle, 0, len(candles)/4+1)
	for _, c := range candles {
		bucket := c.Time - c.Time%step
		n := len(out)
		if n > 0 && out[n-1].Time == bucket {
			last := &out[n-1]
			if c.High > last.High {
				last.High = c.High
			}
			if c.Low < last.Low {
				last.Low = c.Low
			}
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Time = bucket
		out = append(out, c)
	}
	return out
}
