package warmer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"patterndraw/internal/provider"
	"patterndraw/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(done, total int)

// Refresher fetches a series and stores it regardless of what is cached
type Refresher interface {
	Refresh(ctx context.Context, symbol, interval, period string) ([]model.Candle, error)
}

// Result summarizes one warm run
type Result struct {
	Total    int
	Warmed   int
	Failed   map[string]error
	Duration time.Duration
}

// Warmer fills the candle cache for a symbol list with bounded concurrency
type Warmer struct {
	provider     provider.Provider
	interval     string
	period       string
	workers      int
	timeout      time.Duration
	progressFunc ProgressCallback
}

// NewWarmer creates a warmer fetching interval/period candles through p
func NewWarmer(p provider.Provider, interval, period string, workers int, timeout time.Duration) *Warmer {
	if workers < 1 {
		workers = 1
	}
	interval, period = provider.NormalizeRequest(interval, period)
	return &Warmer{
		provider: p,
		interval: interval,
		period:   period,
		workers:  workers,
		timeout:  timeout,
	}
}

// SetProgressCallback sets the progress callback function
func (w *Warmer) SetProgressCallback(fn ProgressCallback) {
	w.progressFunc = fn
}

// Warm fetches every symbol. Per-symbol failures are collected, not fatal;
// only a cancelled context stops the run early.
func (w *Warmer) Warm(ctx context.Context, symbols []string) (*Result, error) {
	start := time.Now()
	res := &Result{Total: len(symbols), Failed: make(map[string]error)}
	if len(symbols) == 0 {
		return res, nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	var (
		mu     sync.Mutex
		done   int64
		warmed int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			_, err := w.fetch(gctx, sym)
			if err != nil {
				mu.Lock()
				res.Failed[sym] = err
				mu.Unlock()
			} else {
				atomic.AddInt64(&warmed, 1)
			}

			// Update progress
			count := atomic.AddInt64(&done, 1)
			if w.progressFunc != nil {
				w.progressFunc(int(count), len(symbols))
			}
			return nil
		})
	}

	err := g.Wait()
	res.Warmed = int(warmed)
	res.Duration = time.Since(start)
	log.Printf("[WARM] %d/%d series warmed (%d failed) in %s", res.Warmed, res.Total, len(res.Failed),
		res.Duration.Round(time.Millisecond))
	if err != nil {
		return res, fmt.Errorf("warm interrupted: %w", err)
	}
	return res, nil
}

func (w *Warmer) fetch(ctx context.Context, symbol string) (int, error) {
	if r, ok := w.provider.(Refresher); ok {
		candles, err := r.Refresh(ctx, symbol, w.interval, w.period)
		return len(candles), err
	}
	candles, err := w.provider.GetCandles(ctx, symbol, w.interval, w.period)
	return len(candles), err
}

// Schedule runs Warm on spec (standard 5-field cron) until Stop is called on
// the returned cron. symbols is called at each run so the list can change.
func (w *Warmer) Schedule(ctx context.Context, spec string, symbols func(context.Context) []string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := w.Warm(ctx, symbols(ctx)); err != nil {
			log.Printf("[WARM] scheduled run: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("register warm task: %w", err)
	}
	c.Start()
	log.Printf("[WARM] scheduled at %q", spec)
	return c, nil
}
