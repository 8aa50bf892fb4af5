package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"patterndraw/internal/capture"
	"patterndraw/internal/chart"
	"patterndraw/internal/criteria"
	"patterndraw/internal/provider"
	"patterndraw/internal/rangesel"
	"patterndraw/internal/search"
	"patterndraw/internal/symbols"
	"patterndraw/pkg/model"
)

var (
	// ErrNoSymbol is returned by operations that need a loaded chart
	ErrNoSymbol = errors.New("no symbol selected")
	// ErrInvalidSymbol is returned for codes that cannot be BIST symbols
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrStaleLoad is returned when a newer symbol change won the race
	ErrStaleLoad = errors.New("superseded by a newer symbol change")
)

// defaultWindow is the analysis window before any range is picked
const defaultWindow = 2 * 365 * 24 * time.Hour

// CandleLoader fetches chart candles
type CandleLoader interface {
	GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error)
}

// Engine runs pattern and date-range searches
type Engine interface {
	search.Searcher
	SearchRange(ctx context.Context, symbol string, start, end time.Time, minSimilarity float64, limit int) ([]model.SimilarResult, error)
}

// Options configures new workspaces
type Options struct {
	Chart         chart.Options
	Interval      string
	Period        string
	MinSimilarity float64
	Limit         int
	SearchTimeout time.Duration
}

// ClickResult reports what a drawing-chart click did
type ClickResult struct {
	Captured bool              `json:"captured"`
	Waypoint *capture.Waypoint `json:"point,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// Snapshot is the full display state of a workspace
type Snapshot struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol,omitempty"`
	Interval  string         `json:"interval"`
	Period    string         `json:"period"`
	Candles   int            `json:"candles"`
	Capture   capture.State  `json:"capture"`
	Range     rangesel.State `json:"range"`
	Window    rangesel.Range `json:"window"`
	Search    *search.Job    `json:"search,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Workspace is one dashboard instance: a drawing chart with its capture machine,
// a range chart with its selector, and the search slot. Every operation is
// serialized behind one lock; the search itself runs off the lock.
type Workspace struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	opts      Options
	loader    CandleLoader
	engine    Engine
	symbol    string
	interval  string
	period    string
	loadSeq   uint64
	updatedAt time.Time

	draw       *chart.Surface
	rangeChart *chart.Surface
	machine    *capture.Machine
	selector   *rangesel.Selector
	dispatcher *search.Dispatcher
	window     rangesel.Range

	// result of the click being dispatched, written by the bound handler
	lastClick ClickResult
}

// New creates a workspace and binds both chart click handlers once
func New(loader CandleLoader, engine Engine, opts Options) *Workspace {
	opts.Interval, opts.Period = provider.NormalizeRequest(opts.Interval, opts.Period)
	now := time.Now()
	w := &Workspace{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		updatedAt:  now,
		opts:       opts,
		loader:     loader,
		engine:     engine,
		interval:   opts.Interval,
		period:     opts.Period,
		draw:       chart.NewSurface(opts.Chart),
		rangeChart: chart.NewSurface(opts.Chart),
		dispatcher: search.NewDispatcher(engine, opts.SearchTimeout),
		window:     defaultRange(now),
	}
	w.machine = capture.NewMachine(w.draw)
	w.selector = rangesel.NewSelector(w.onRange)

	// Surfaces accept a single subscription, so both handlers read state
	// through the machine and selector pointers rather than being rebound.
	if err := w.draw.SubscribeClick(capture.ClickHandler(w.machine, w.draw, w.onCapture)); err != nil {
		panic(err)
	}
	if err := w.rangeChart.SubscribeClick(rangesel.ClickHandler(w.selector, w.rangeChart)); err != nil {
		panic(err)
	}
	return w
}

func defaultRange(now time.Time) rangesel.Range {
	return rangesel.Range{Start: now.Add(-defaultWindow).UTC(), End: now.UTC()}
}

func (w *Workspace) onCapture(wp capture.Waypoint, err error) {
	if err != nil {
		w.lastClick = ClickResult{Reason: err.Error()}
		return
	}
	w.lastClick = ClickResult{Captured: true, Waypoint: &wp}
}

func (w *Workspace) onRange(r rangesel.Range) {
	w.window = r
	log.Printf("[WORKSPACE] %s: analysis window %s..%s", w.ID[:8],
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

func (w *Workspace) touch() {
	w.updatedAt = time.Now()
}

// UpdatedAt returns the time of the last operation
func (w *Workspace) UpdatedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updatedAt
}

// SetSymbol loads candles for symbol into both charts. On success the capture
// machine, the range selector and the analysis window are reset and any search
// in flight is stopped.
// Empty interval/period keep the current ones.
func (w *Workspace) SetSymbol(ctx context.Context, symbol, interval, period string) error {
	symbol = symbols.Normalize(symbol)
	if !symbols.IsValid(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	w.mu.Lock()
	if interval == "" {
		interval = w.interval
	}
	if period == "" {
		period = w.period
	}
	interval, period = provider.NormalizeRequest(interval, period)
	w.loadSeq++
	seq := w.loadSeq
	w.mu.Unlock()

	candles, err := w.loader.GetCandles(ctx, symbol, interval, period)
	if err != nil {
		return fmt.Errorf("load %s candles: %w", symbol, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.loadSeq {
		return ErrStaleLoad
	}
	w.symbol, w.interval, w.period = symbol, interval, period
	w.draw.SetCandles(candles)
	w.rangeChart.SetCandles(candles)
	w.machine.Reset()
	w.selector.Reset()
	w.window = defaultRange(time.Now())
	w.dispatcher.Stop()
	w.touch()
	log.Printf("[WORKSPACE] %s: %s %s/%s loaded (%d candles)", w.ID[:8], symbol, interval, period, len(candles))
	return nil
}

// SetVisibleRange narrows the drawing chart to bars [from, to)
func (w *Workspace) SetVisibleRange(from, to int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draw.SetVisibleRange(from, to)
	w.touch()
}

// SetCaptureActive switches capture mode
func (w *Workspace) SetCaptureActive(active bool) capture.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.machine.SetActive(active)
	w.touch()
	return w.machine.State()
}

// ToggleCapture flips capture mode
func (w *Workspace) ToggleCapture() capture.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.machine.ToggleActive()
	w.touch()
	return w.machine.State()
}

// Click delivers a pixel click to the drawing chart
func (w *Workspace) Click(x, y float64) ClickResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if !w.machine.Active() {
		return ClickResult{Reason: capture.ErrInactive.Error()}
	}
	w.lastClick = ClickResult{Reason: "click is outside the price series"}
	w.draw.Click(x, y)
	return w.lastClick
}

// AddPoint captures a waypoint at an already resolved time and price
func (w *Workspace) AddPoint(t int64, price float64) (capture.Waypoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.symbol == "" {
		return capture.Waypoint{}, ErrNoSymbol
	}
	w.touch()
	return w.machine.Capture(t, price)
}

// Undo removes the last captured waypoint
func (w *Workspace) Undo() (capture.Waypoint, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.machine.UndoLast()
}

// Clear removes every waypoint
func (w *Workspace) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.machine.ClearAll()
}

// Capture returns the capture state
func (w *Workspace) Capture() capture.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.State()
}

// Criteria derives the search criteria from the current waypoints
func (w *Workspace) Criteria() (criteria.Derivation, error) {
	w.mu.Lock()
	wps := w.machine.Waypoints()
	w.mu.Unlock()
	return criteria.Derive(wps)
}

// Search starts a pattern search over a snapshot of the waypoints. A search
// already running is superseded.
func (w *Workspace) Search() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.symbol == "" {
		return "", ErrNoSymbol
	}
	w.touch()
	return w.dispatcher.Trigger(search.Query{
		Symbol:        w.symbol,
		Waypoints:     w.machine.Waypoints(),
		MinSimilarity: w.opts.MinSimilarity,
		Limit:         w.opts.Limit,
	})
}

// SearchStatus returns the latest search job
func (w *Workspace) SearchStatus() (search.Job, bool) {
	return w.dispatcher.Current()
}

// WaitSearch blocks until the latest search finishes or ctx is done
func (w *Workspace) WaitSearch(ctx context.Context) (search.Job, error) {
	return w.dispatcher.Wait(ctx)
}

// RangeClick delivers a pixel click to the range chart. It returns the range
// when the click completed a pair.
func (w *Workspace) RangeClick(x, y float64) (rangesel.State, *rangesel.Range) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	awaiting := w.selector.Phase() == rangesel.AwaitingEnd
	w.rangeChart.Click(x, y)
	st := w.selector.State()
	if awaiting && w.selector.Phase() == rangesel.Idle {
		r := w.window
		return st, &r
	}
	return st, nil
}

// RangeSelect feeds an already resolved time into the range selector
func (w *Workspace) RangeSelect(t time.Time) (rangesel.State, *rangesel.Range) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	r, done := w.selector.Select(t.UTC())
	st := w.selector.State()
	if done {
		return st, &r
	}
	return st, nil
}

// RangeReset clears the range selection. The analysis window is kept.
func (w *Workspace) RangeReset() rangesel.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.selector.Reset()
	return w.selector.State()
}

// Range returns the selector state and the current analysis window
func (w *Workspace) Range() (rangesel.State, rangesel.Range) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selector.State(), w.window
}

// SearchWindow runs a date-range search over the analysis window. It runs
// synchronously and off the workspace lock.
func (w *Workspace) SearchWindow(ctx context.Context) ([]model.SimilarResult, error) {
	w.mu.Lock()
	symbol, window := w.symbol, w.window
	minSim, limit := w.opts.MinSimilarity, w.opts.Limit
	w.mu.Unlock()

	if symbol == "" {
		return nil, ErrNoSymbol
	}
	return w.engine.SearchRange(ctx, symbol, window.Start, window.End, minSim, limit)
}

// Snapshot returns the full display state
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		ID:        w.ID,
		Symbol:    w.symbol,
		Interval:  w.interval,
		Period:    w.period,
		Candles:   len(w.draw.Candles()),
		Capture:   w.machine.State(),
		Range:     w.selector.State(),
		Window:    w.window,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.updatedAt,
	}
	if job, ok := w.dispatcher.Current(); ok {
		snap.Search = &job
	}
	return snap
}

// Overlay returns the line currently drawn through the waypoints
func (w *Workspace) Overlay() []chart.SeriesPoint {
	return w.draw.Overlay()
}

// RenderChart writes the drawing chart with its overlay as an HTML page
func (w *Workspace) RenderChart(out io.Writer) error {
	w.mu.Lock()
	symbol, interval := w.symbol, w.interval
	candles := w.draw.Candles()
	overlay := w.draw.Overlay()
	w.mu.Unlock()

	if symbol == "" {
		return ErrNoSymbol
	}
	return chart.Render(out, symbol+" "+interval, candles, overlay)
}

// Close stops any search in flight
func (w *Workspace) Close() {
	w.dispatcher.Stop()
}
