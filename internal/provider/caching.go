package provider

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"patterndraw/pkg/model"
)

// Store persists candle series between runs
type Store interface {
	LoadCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, time.Time, error)
	SaveCandles(ctx context.Context, symbol, interval, period string, candles []model.Candle) error
}

type cacheEntry struct {
	candles   []model.Candle
	fetchedAt time.Time
}

// CachingProvider wraps a Provider with an in-memory cache and an optional
// persistent tier. Chart reloads and warm-ups of the same symbol hit the
// network once per TTL.
type CachingProvider struct {
	inner Provider
	store Store
	ttl   time.Duration
	now   func() time.Time

	cache map[string]cacheEntry
	mu    sync.Mutex
}

// NewCachingProvider creates a caching wrapper. store may be nil; ttl <= 0 never expires.
func NewCachingProvider(inner Provider, store Store, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func cacheKey(symbol, interval, period string) string {
	return strings.Join([]string{symbol, interval, period}, "@")
}

func (p *CachingProvider) fresh(fetchedAt time.Time) bool {
	return p.ttl <= 0 || p.now().Sub(fetchedAt) < p.ttl
}

// GetCandles serves from memory, then the store, then the wrapped provider
func (p *CachingProvider) GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error) {
	key := cacheKey(symbol, interval, period)

	p.mu.Lock()
	if e, ok := p.cache[key]; ok && p.fresh(e.fetchedAt) {
		p.mu.Unlock()
		return e.candles, nil
	}
	p.mu.Unlock()

	if p.store != nil {
		candles, fetchedAt, err := p.store.LoadCandles(ctx, symbol, interval, period)
		if err != nil {
			log.Printf("[CACHE] store read %s: %v", key, err)
		} else if len(candles) > 0 && p.fresh(fetchedAt) {
			p.put(key, candles, fetchedAt)
			return candles, nil
		}
	}

	candles, err := p.inner.GetCandles(ctx, symbol, interval, period)
	if err != nil {
		return nil, err
	}

	p.put(key, candles, p.now())
	if p.store != nil {
		if err := p.store.SaveCandles(ctx, symbol, interval, period, candles); err != nil {
			log.Printf("[CACHE] store write %s: %v", key, err)
		}
	}
	return candles, nil
}

// Refresh bypasses both cache tiers and refetches
func (p *CachingProvider) Refresh(ctx context.Context, symbol, interval, period string) ([]model.Candle, error) {
	p.Invalidate(symbol)
	candles, err := p.inner.GetCandles(ctx, symbol, interval, period)
	if err != nil {
		return nil, err
	}
	p.put(cacheKey(symbol, interval, period), candles, p.now())
	if p.store != nil {
		if err := p.store.SaveCandles(ctx, symbol, interval, period, candles); err != nil {
			log.Printf("[CACHE] store write %s: %v", symbol, err)
		}
	}
	return candles, nil
}

// Invalidate drops every in-memory entry for symbol
func (p *CachingProvider) Invalidate(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := symbol + "@"
	for k := range p.cache {
		if strings.HasPrefix(k, prefix) {
			delete(p.cache, k)
		}
	}
}

// Len returns the number of in-memory entries
func (p *CachingProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func (p *CachingProvider) put(key string, candles []model.Candle, at time.Time) {
	p.mu.Lock()
	p.cache[key] = cacheEntry{candles: candles, fetchedAt: at}
	p.mu.Unlock()
}
