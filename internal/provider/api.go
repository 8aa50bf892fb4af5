package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"patterndraw/internal/search"
	"patterndraw/pkg/model"
)

// CandleSource is the analysis API's chart endpoint
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval, period string) (*model.CandleSeries, error)
}

// APIProvider serves candles from the analysis API, the same source the
// search results are computed from
type APIProvider struct {
	source    CandleSource
	rateLimit int
}

// NewAPIProvider creates a provider over the analysis API
func NewAPIProvider(src CandleSource, perMinute int) *APIProvider {
	return &APIProvider{source: src, rateLimit: perMinute}
}

// Name returns the provider name
func (p *APIProvider) Name() string {
	return "analysis-api"
}

// IsAvailable reports whether a source is configured
func (p *APIProvider) IsAvailable() bool {
	return p.source != nil
}

// RateLimit returns the rate limit per minute
func (p *APIProvider) RateLimit() int {
	return p.rateLimit
}

// GetCandles fetches candles through the analysis API
func (p *APIProvider) GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error) {
	interval, period = NormalizeRequest(interval, period)
	series, err := p.source.Candles(ctx, symbol, interval, period)
	if err != nil {
		var apiErr *search.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Status == http.StatusNotFound {
				err = fmt.Errorf("%w: %s", ErrNoData, apiErr.Detail)
			}
			return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: apiErr.Retryable}
		}
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: !errors.Is(err, search.ErrTokenExpired)}
	}
	if series == nil || len(series.Candles) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w for %s", ErrNoData, symbol)}
	}
	return series.Candles, nil
}
