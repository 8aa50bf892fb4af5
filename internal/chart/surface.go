package chart

import (
	"errors"
	"math"
	"sort"
	"sync"

	"patterndraw/pkg/model"
)

// ErrAlreadySubscribed is returned when a second click handler is bound to a surface
var ErrAlreadySubscribed = errors.New("click handler already bound")

// Options holds surface geometry
type Options struct {
	Width        float64 // plot width in pixels
	Height       float64 // plot height in pixels
	MarginTop    float64 // fraction of height kept free above the highest price
	MarginBottom float64 // fraction of height kept free below the lowest price
}

// DefaultOptions mirrors the dashboard's drawing chart (500px tall, 10% scale margins)
func DefaultOptions() Options {
	return Options{
		Width:        1000,
		Height:       500,
		MarginTop:    0.1,
		MarginBottom: 0.1,
	}
}

// Surface is a headless chart surface. It keeps a candle series, a visible bar
// window and an auto-fitted price scale, and translates between pixel and domain space.
// A single click handler may be bound for the lifetime of the surface.
type Surface struct {
	mu       sync.RWMutex
	opts     Options
	candles  []model.Candle
	overlay  []SeriesPoint
	from, to int // visible bars [from, to)
	low      float64
	high     float64

	handlerMu sync.Mutex
	handler   ClickFunc
}

// NewSurface creates an empty surface
func NewSurface(opts Options) *Surface {
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	return &Surface{opts: opts}
}

// SetCandles replaces the candle series and fits the view to all of it
func (s *Surface) SetCandles(candles []model.Candle) {
	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = sorted
	s.from, s.to = 0, len(sorted)
	s.fitLocked()
}

// SetVisibleRange narrows the view to bars [from, to) and refits the price scale
func (s *Surface) SetVisibleRange(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from < 0 {
		from = 0
	}
	if to > len(s.candles) {
		to = len(s.candles)
	}
	if from >= to {
		return
	}
	s.from, s.to = from, to
	s.fitLocked()
}

// SetOverlaySeries replaces the overlay line
func (s *Surface) SetOverlaySeries(points []SeriesPoint) {
	cp := make([]SeriesPoint, len(points))
	copy(cp, points)
	s.mu.Lock()
	s.overlay = cp
	s.mu.Unlock()
}

// Overlay returns a copy of the current overlay line
func (s *Surface) Overlay() []SeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]SeriesPoint, len(s.overlay))
	copy(cp, s.overlay)
	return cp
}

// Candles returns a copy of the candle series
func (s *Surface) Candles() []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Candle, len(s.candles))
	copy(cp, s.candles)
	return cp
}

// PixelYToPrice converts a vertical pixel position into a price on the current scale
func (s *Surface) PixelYToPrice(y float64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priceAtLocked(y)
}

// PriceToPixelY is the inverse of PixelYToPrice
func (s *Surface) PriceToPixelY(price float64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return 0, false
	}
	top, usable := s.plotBandLocked()
	return top + (s.high-price)/(s.high-s.low)*usable, true
}

// TimeToPixelX returns the horizontal center of the visible bar with the given time
func (s *Surface) TimeToPixelX(t int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := sort.Search(len(s.candles), func(i int) bool { return s.candles[i].Time >= t })
	if idx >= len(s.candles) || s.candles[idx].Time != t || idx < s.from || idx >= s.to {
		return 0, false
	}
	return (float64(idx-s.from) + 0.5) * s.barSpacingLocked(), true
}

// ClickToTimeAndPrice resolves a click into the bar under it and the price at its height
func (s *Surface) ClickToTimeAndPrice(ev ClickEvent) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ev.X < 0 || ev.X >= s.opts.Width || s.to <= s.from {
		return Point{}, false
	}
	idx := s.from + int(math.Floor(ev.X/s.barSpacingLocked()))
	if idx >= s.to {
		return Point{}, false
	}
	price, ok := s.priceAtLocked(ev.Y)
	if !ok {
		return Point{}, false
	}
	return Point{Time: s.candles[idx].Time, Price: price}, true
}

// SubscribeClick binds the click handler. The surface does not support rebinding,
// so handlers must read mutable state through a stable reference.
func (s *Surface) SubscribeClick(fn ClickFunc) error {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	if s.handler != nil {
		return ErrAlreadySubscribed
	}
	s.handler = fn
	return nil
}

// Click delivers a click at pixel (x, y) to the bound handler
func (s *Surface) Click(x, y float64) {
	s.handlerMu.Lock()
	fn := s.handler
	s.handlerMu.Unlock()
	if fn != nil {
		fn(ClickEvent{X: x, Y: y})
	}
}

func (s *Surface) priceAtLocked(y float64) (float64, bool) {
	if len(s.candles) == 0 || y < 0 || y > s.opts.Height {
		return 0, false
	}
	top, usable := s.plotBandLocked()
	price := s.high - (y-top)/usable*(s.high-s.low)
	if price <= 0 {
		return 0, false
	}
	return price, true
}

func (s *Surface) plotBandLocked() (top, usable float64) {
	top = s.opts.Height * s.opts.MarginTop
	usable = s.opts.Height * (1 - s.opts.MarginTop - s.opts.MarginBottom)
	if usable <= 0 {
		top, usable = 0, s.opts.Height
	}
	return top, usable
}

func (s *Surface) barSpacingLocked() float64 {
	n := s.to - s.from
	if n <= 0 {
		return s.opts.Width
	}
	return s.opts.Width / float64(n)
}

func (s *Surface) fitLocked() {
	if s.to <= s.from {
		s.low, s.high = 0, 0
		return
	}
	low, high := math.Inf(1), math.Inf(-1)
	for _, c := range s.candles[s.from:s.to] {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	if high <= low {
		// flat series: open a 1% band around the price
		pad := math.Max(math.Abs(high)*0.01, 0.01)
		low, high = low-pad, high+pad
	}
	s.low, s.high = low, high
}

var _ Translator = (*Surface)(nil)
