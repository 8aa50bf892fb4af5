package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"patterndraw/internal/capture"
	"patterndraw/internal/criteria"
	"patterndraw/pkg/model"
)

const (
	// DefaultMinSimilarity is the primary search threshold
	DefaultMinSimilarity = 0.6
	// FallbackMinSimilarity is fixed for the date-range fallback
	FallbackMinSimilarity = 0.6
	// DefaultLimit is the number of results requested
	DefaultLimit = 20
)

// Backend is the remote analysis service
type Backend interface {
	SearchByPattern(ctx context.Context, req PatternRequest) ([]model.SimilarResult, error)
	FindSimilar(ctx context.Context, req SimilarRequest) ([]model.SimilarResult, error)
}

// Query is one user-triggered search
type Query struct {
	Symbol        string
	Waypoints     []capture.Waypoint
	MinSimilarity float64
	Limit         int
}

// Outcome is a successful search. Fallback results came from the date-range
// endpoint and ignore the drawn criteria, so they are lower confidence.
type Outcome struct {
	Results    []model.SimilarResult `json:"results"`
	Derivation criteria.Derivation   `json:"derivation"`
	Fallback   bool                  `json:"fallback"`
	PrimaryErr string                `json:"primary_error,omitempty"`
}

// SearchError is returned when both the primary and the fallback call fail
type SearchError struct {
	Primary  error
	Fallback error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("pattern search failed: %v; fallback failed: %v", e.Primary, e.Fallback)
}

func (e *SearchError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Orchestrator derives criteria from waypoints and runs the primary search,
// falling back to a date-range search on any primary error
type Orchestrator struct {
	backend        Backend
	primaryTimeout time.Duration
}

// NewOrchestrator creates an orchestrator over backend
func NewOrchestrator(b Backend) *Orchestrator {
	return &Orchestrator{backend: b}
}

// SetPrimaryTimeout bounds the primary call. With 0 the primary gets half of
// whatever deadline the search context carries, so the fallback keeps the rest.
func (o *Orchestrator) SetPrimaryTimeout(d time.Duration) {
	o.primaryTimeout = d
}

func (o *Orchestrator) primaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.primaryTimeout > 0 {
		return context.WithTimeout(ctx, o.primaryTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithTimeout(ctx, time.Until(deadline)/2)
	}
	return context.WithCancel(ctx)
}

// Search runs q. It fails with criteria.ErrInsufficientPoints before any network
// call when fewer than two waypoints are given.
func (o *Orchestrator) Search(ctx context.Context, q Query) (*Outcome, error) {
	if len(q.Waypoints) < 2 {
		return nil, criteria.ErrInsufficientPoints
	}
	d, err := criteria.Derive(q.Waypoints)
	if err != nil {
		return nil, err
	}

	minSim := q.MinSimilarity
	if minSim <= 0 || minSim > 1 {
		minSim = DefaultMinSimilarity
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := PatternRequest{
		Symbol:        q.Symbol,
		Points:        make([]PatternPoint, len(q.Waypoints)),
		Criteria:      d.Map(),
		MinSimilarity: minSim,
		Limit:         limit,
	}
	for i, wp := range q.Waypoints {
		req.Points[i] = PatternPoint{Time: wp.Time, Price: wp.Price.InexactFloat64(), Type: wp.Kind}
	}

	pctx, cancel := o.primaryContext(ctx)
	results, primaryErr := o.backend.SearchByPattern(pctx, req)
	cancel()
	if primaryErr == nil {
		log.Printf("[SEARCH] %s: %d matches from %d points", q.Symbol, len(results), len(q.Waypoints))
		return &Outcome{Results: nonNil(results), Derivation: d}, nil
	}
	// a done parent means the search was superseded or ran out of time
	if ctx.Err() != nil || errors.Is(primaryErr, context.Canceled) {
		return nil, primaryErr
	}

	log.Printf("[SEARCH] %s: pattern search failed (%v), falling back to date range", q.Symbol, primaryErr)
	fb := FallbackRequest(q.Symbol, q.Waypoints, limit)
	results, fallbackErr := o.backend.FindSimilar(ctx, fb)
	if fallbackErr != nil {
		return nil, &SearchError{Primary: primaryErr, Fallback: fallbackErr}
	}

	log.Printf("[SEARCH] %s: %d fallback matches for %s..%s", q.Symbol, len(results), fb.StartDate, fb.EndDate)
	return &Outcome{
		Results:    nonNil(results),
		Derivation: d,
		Fallback:   true,
		PrimaryErr: primaryErr.Error(),
	}, nil
}

// FallbackRequest builds the date-range request from the first and last
// waypoints as captured. An inverted pair is swapped so start <= end.
func FallbackRequest(symbol string, waypoints []capture.Waypoint, limit int) SimilarRequest {
	first, last := waypoints[0].Time, waypoints[len(waypoints)-1].Time
	if last < first {
		first, last = last, first
	}
	return SimilarRequest{
		Symbol:        symbol,
		StartDate:     isoDate(first),
		EndDate:       isoDate(last),
		MinSimilarity: FallbackMinSimilarity,
		Limit:         limit,
	}
}

func isoDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}

func nonNil(r []model.SimilarResult) []model.SimilarResult {
	if r == nil {
		return []model.SimilarResult{}
	}
	return r
}

// SearchRange runs the date-range search directly, for a window picked on the
// range chart rather than drawn as waypoints
func (o *Orchestrator) SearchRange(ctx context.Context, symbol string, start, end time.Time, minSimilarity float64, limit int) ([]model.SimilarResult, error) {
	if end.Before(start) {
		start, end = end, start
	}
	if minSimilarity <= 0 || minSimilarity > 1 {
		minSimilarity = FallbackMinSimilarity
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	results, err := o.backend.FindSimilar(ctx, SimilarRequest{
		Symbol:        symbol,
		StartDate:     start.UTC().Format("2006-01-02"),
		EndDate:       end.UTC().Format("2006-01-02"),
		MinSimilarity: minSimilarity,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[SEARCH] %s: %d matches for range %s..%s", symbol, len(results),
		start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	return nonNil(results), nil
}
