package criteria

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"patterndraw/internal/capture"
)

var (
	// ErrInsufficientPoints is returned when fewer than two waypoints are given
	ErrInsufficientPoints = errors.New("at least 2 points are required")
	// ErrZeroPrice is returned when a ratio would divide by a zero price
	ErrZeroPrice = errors.New("zero base price")
)

const (
	// MinBound is the floor of every criterion's lower bound, in percent
	MinBound = 5
	// Tolerance is added to and subtracted from each observed move, in percent
	Tolerance = 15
	// PercentPlaces is the precision ratios are rounded to before bounds are derived
	PercentPlaces = 2
)

// Direction of a move between two waypoints
type Direction string

const (
	Rise Direction = "rise"
	Drop Direction = "drop"
)

// Ratio is the signed percentage move between two time-adjacent waypoints
type Ratio struct {
	Position      int          `json:"position"`
	FromKind      capture.Kind `json:"from"`
	ToKind        capture.Kind `json:"to"`
	PercentChange float64      `json:"change"`
	Direction     Direction    `json:"direction"`
}

// Criterion bounds one ratio for the remote search
type Criterion struct {
	Position  int       `json:"position"`
	Direction Direction `json:"direction"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
}

// MinKey is the request key of the lower bound, e.g. "rise_1_min"
func (c Criterion) MinKey() string {
	return fmt.Sprintf("%s_%d_min", c.Direction, c.Position)
}

// MaxKey is the request key of the upper bound, e.g. "rise_1_max"
func (c Criterion) MaxKey() string {
	return fmt.Sprintf("%s_%d_max", c.Direction, c.Position)
}

// Derivation is the result of Derive
type Derivation struct {
	Ratios   []Ratio     `json:"ratios"`
	Criteria []Criterion `json:"criteria"`
}

// Map returns the criteria keyed the way the search request expects them
func (d Derivation) Map() map[string]float64 {
	m := make(map[string]float64, 2*len(d.Criteria))
	for _, c := range d.Criteria {
		m[c.MinKey()] = c.Min
		m[c.MaxKey()] = c.Max
	}
	return m
}

// Derive computes ratios between time-adjacent waypoints and the bounded criteria for them.
// Waypoints are stable-sorted by time first; kinds keep their insertion-order labels.
// The input slice is not modified.
func Derive(waypoints []capture.Waypoint) (Derivation, error) {
	if len(waypoints) < 2 {
		return Derivation{}, ErrInsufficientPoints
	}

	sorted := make([]capture.Waypoint, len(waypoints))
	copy(sorted, waypoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	hundred := decimal.NewFromInt(100)
	minBound := decimal.NewFromInt(MinBound)
	tolerance := decimal.NewFromInt(Tolerance)

	d := Derivation{
		Ratios:   make([]Ratio, 0, len(sorted)-1),
		Criteria: make([]Criterion, 0, len(sorted)-1),
	}
	for i := 0; i < len(sorted)-1; i++ {
		a, b := sorted[i], sorted[i+1]
		if a.Price.IsZero() {
			return Derivation{}, fmt.Errorf("%w at position %d", ErrZeroPrice, i+1)
		}

		change := b.Price.Sub(a.Price).Div(a.Price).Mul(hundred)
		dir := Drop
		if change.IsPositive() {
			dir = Rise
		}
		rounded := change.Round(PercentPlaces)
		abs := rounded.Abs()

		d.Ratios = append(d.Ratios, Ratio{
			Position:      i + 1,
			FromKind:      a.Kind,
			ToKind:        b.Kind,
			PercentChange: rounded.InexactFloat64(),
			Direction:     dir,
		})
		d.Criteria = append(d.Criteria, Criterion{
			Position:  i + 1,
			Direction: dir,
			Min:       decimal.Max(minBound, abs.Sub(tolerance)).InexactFloat64(),
			Max:       abs.Add(tolerance).InexactFloat64(),
		})
	}
	return d, nil
}
