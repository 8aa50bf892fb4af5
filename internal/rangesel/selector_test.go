package rangesel

import (
	"testing"
	"time"

	"patterndraw/internal/chart"
	"patterndraw/pkg/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSelectOrdersRange(t *testing.T) {
	var got []Range
	s := NewSelector(func(r Range) { got = append(got, r) })

	if _, done := s.Select(date("2024-03-01")); done {
		t.Fatal("First click should not complete")
	}
	if s.Phase() != AwaitingEnd {
		t.Errorf("Phase = %v, want awaiting end", s.Phase())
	}

	r, done := s.Select(date("2024-01-01"))
	if !done {
		t.Fatal("Second click should complete")
	}
	if !r.Start.Equal(date("2024-01-01")) || !r.End.Equal(date("2024-03-01")) {
		t.Errorf("Range = %v..%v, want swapped", r.Start, r.End)
	}
	if len(got) != 1 || got[0] != r {
		t.Errorf("Handler should receive the range once, got %v", got)
	}

	// the completed pair stays visible until the next cycle
	st := s.State()
	if st.Phase != "idle" || st.Start == nil || st.End == nil {
		t.Fatalf("Unexpected state %+v", st)
	}
	if !st.Start.Equal(r.Start) || !st.End.Equal(r.End) {
		t.Errorf("Displayed state %v..%v should match the emitted range", *st.Start, *st.End)
	}
}

func TestSelectNewCycle(t *testing.T) {
	s := NewSelector(nil)
	s.Select(date("2024-01-01"))
	s.Select(date("2024-02-01"))

	s.Select(date("2024-05-01"))
	st := s.State()
	if st.End != nil || !st.Start.Equal(date("2024-05-01")) {
		t.Errorf("New cycle should clear the end, got %+v", st)
	}

	r, _ := s.Select(date("2024-06-01"))
	if !r.Start.Equal(date("2024-05-01")) {
		t.Errorf("Unexpected range %+v", r)
	}
}

func TestSameDayRange(t *testing.T) {
	s := NewSelector(nil)
	s.Select(date("2024-01-01"))
	r, done := s.Select(date("2024-01-01"))
	if !done || !r.Start.Equal(r.End) {
		t.Errorf("Same-day range = %+v, %v", r, done)
	}
}

func TestReset(t *testing.T) {
	called := false
	s := NewSelector(func(Range) { called = true })
	s.Select(date("2024-01-01"))
	s.Reset()

	st := s.State()
	if st.Phase != "idle" || st.Start != nil || st.End != nil {
		t.Errorf("Reset state = %+v", st)
	}
	s.Select(date("2024-02-01"))
	if called {
		t.Error("A click after reset starts a new range")
	}
}

func TestClickHandler(t *testing.T) {
	surface := chart.NewSurface(chart.DefaultOptions())
	base := date("2024-01-01").Unix()
	candles := make([]model.Candle, 4)
	for i := range candles {
		candles[i] = model.Candle{Time: base + int64(i)*86400, High: 200, Low: 100}
	}
	surface.SetCandles(candles)

	var got []Range
	s := NewSelector(func(r Range) { got = append(got, r) })
	if err := surface.SubscribeClick(ClickHandler(s, surface)); err != nil {
		t.Fatal(err)
	}

	surface.Click(800, 250)
	surface.Click(-5, 250) // off the series
	if s.Phase() != AwaitingEnd {
		t.Fatal("Unresolved click should leave the phase unchanged")
	}
	surface.Click(100, 250)

	if len(got) != 1 {
		t.Fatalf("Expected one range, got %d", len(got))
	}
	if got[0].Start.Unix() != base || got[0].End.Unix() != base+3*86400 {
		t.Errorf("Unexpected range %+v", got[0])
	}
}
