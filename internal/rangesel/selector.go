package rangesel

import (
	"time"

	"patterndraw/internal/chart"
)

// Phase of a two-click selection
type Phase int

const (
	Idle Phase = iota
	AwaitingEnd
)

func (p Phase) String() string {
	if p == AwaitingEnd {
		return "awaiting_end"
	}
	return "idle"
}

// Range is an ordered date range, Start <= End
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Handler receives each completed range
type Handler func(Range)

// State is a snapshot of a Selector
type State struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Phase string     `json:"phase"`
}

// Selector turns click pairs into ordered ranges: the first click marks the start,
// the second marks the end and emits the range. The completed pair stays visible
// until the next click begins a new cycle.
// It is not safe for concurrent use.
type Selector struct {
	start, end *time.Time
	phase      Phase
	onSelect   Handler
}

// NewSelector creates an idle selector; onSelect may be nil
func NewSelector(onSelect Handler) *Selector {
	return &Selector{onSelect: onSelect}
}

// Phase returns the current phase
func (s *Selector) Phase() Phase {
	return s.phase
}

// Select feeds one resolved click time into the protocol.
// It returns the emitted range and true when the click completed a pair.
func (s *Selector) Select(t time.Time) (Range, bool) {
	if s.phase == Idle {
		start := t
		s.start, s.end = &start, nil
		s.phase = AwaitingEnd
		return Range{}, false
	}

	start, end := *s.start, t
	if end.Before(start) {
		start, end = end, start
	}
	s.start, s.end = &start, &end
	s.phase = Idle

	r := Range{Start: start, End: end}
	if s.onSelect != nil {
		s.onSelect(r)
	}
	return r, true
}

// HandleClick resolves a chart click to its bar time and selects it.
// Clicks that do not land on the series are ignored and leave the phase unchanged.
func (s *Selector) HandleClick(tr chart.Translator, ev chart.ClickEvent) (Range, bool) {
	p, ok := tr.ClickToTimeAndPrice(ev)
	if !ok {
		return Range{}, false
	}
	return s.Select(time.Unix(p.Time, 0).UTC())
}

// Reset clears both ends and returns to Idle
func (s *Selector) Reset() {
	s.start, s.end = nil, nil
	s.phase = Idle
}

// State returns a snapshot for display
func (s *Selector) State() State {
	st := State{Phase: s.phase.String()}
	if s.start != nil {
		t := *s.start
		st.Start = &t
	}
	if s.end != nil {
		t := *s.end
		st.End = &t
	}
	return st
}

// ClickHandler returns a handler to bind once to a chart surface; it drives sel
// through its pointer so rebinding is never needed.
func ClickHandler(sel *Selector, tr chart.Translator) chart.ClickFunc {
	return func(ev chart.ClickEvent) {
		sel.HandleClick(tr, ev)
	}
}
