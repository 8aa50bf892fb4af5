package provider

import (
	"context"
	"errors"
	"fmt"
	"log"

	"patterndraw/pkg/model"
)

// Default chart request, as the dashboard opens a symbol
const (
	DefaultInterval = "1d"
	DefaultPeriod   = "2y"
	IntradayPeriod  = "60d"
)

// ErrNoData is returned when a provider has no candles for the request
var ErrNoData = errors.New("no data")

// Provider defines the interface for candle data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetCandles fetches OHLCV candles for symbol, oldest first
	GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error)

	// IsAvailable checks if the provider can be used
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ValidIntervals are the candle intervals the chart offers
var ValidIntervals = []string{"1h", "4h", "1d", "1wk", "1mo"}

// ValidPeriods are the look-back periods the chart offers
var ValidPeriods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y"}

// NormalizeRequest maps an unknown interval to 1d and caps intraday intervals to 60 days
func NormalizeRequest(interval, period string) (string, string) {
	if !contains(ValidIntervals, interval) {
		interval = DefaultInterval
	}
	if interval == "1h" || interval == "4h" {
		return interval, IntradayPeriod
	}
	if !contains(ValidPeriods, period) {
		period = DefaultPeriod
	}
	return interval, period
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	// Filter to only available providers
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil && p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetCandles tries each provider in order until one succeeds
func (f *FallbackProvider) GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("no candle provider available")
	}
	var lastErr error
	for _, p := range f.providers {
		candles, err := p.GetCandles(ctx, symbol, interval, period)
		if err == nil {
			return candles, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[PROVIDER] %s failed for %s: %v", p.Name(), symbol, err)
		lastErr = err
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
