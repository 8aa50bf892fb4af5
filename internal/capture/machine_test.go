package capture

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"patterndraw/internal/chart"
	"patterndraw/pkg/model"
)

type recordingSink struct {
	pushes [][]chart.SeriesPoint
}

func (r *recordingSink) SetOverlaySeries(points []chart.SeriesPoint) {
	r.pushes = append(r.pushes, points)
}

func (r *recordingSink) last() []chart.SeriesPoint {
	if len(r.pushes) == 0 {
		return nil
	}
	return r.pushes[len(r.pushes)-1]
}

func TestKindAlternates(t *testing.T) {
	m := NewMachine(nil)
	m.SetActive(true)

	want := []Kind{Trough, Peak, Trough, Peak}
	for i, k := range want {
		wp, err := m.Capture(int64(i), 100+float64(i))
		if err != nil {
			t.Fatalf("Capture %d failed: %v", i, err)
		}
		if wp.Kind != k || wp.Seq != i+1 {
			t.Errorf("Point %d = %v #%d, want %v #%d", i, wp.Kind, wp.Seq, k, i+1)
		}
	}
	if m.PendingKind() != Trough {
		t.Errorf("Pending kind after 4 points = %v, want trough", m.PendingKind())
	}
}

func TestCaptureRejects(t *testing.T) {
	m := NewMachine(nil)
	if _, err := m.Capture(1, 100); !errors.Is(err, ErrInactive) {
		t.Errorf("Expected ErrInactive, got %v", err)
	}

	m.SetActive(true)
	for _, p := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if _, err := m.Capture(1, p); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("Capture(%v) = %v, want ErrInvalidPrice", p, err)
		}
	}
	if m.Len() != 0 || m.PendingKind() != Trough {
		t.Error("Rejected captures must not change state")
	}
}

func TestCaptureRoundsPrice(t *testing.T) {
	m := NewMachine(nil)
	m.SetActive(true)
	wp, _ := m.Capture(1, 123.456)
	if wp.Price.String() != "123.46" {
		t.Errorf("Price = %s, want 123.46", wp.Price)
	}
}

func TestUndoIsInverse(t *testing.T) {
	m := NewMachine(nil)
	m.SetActive(true)
	m.Capture(1, 100)
	m.Capture(2, 120)

	before := m.State()
	m.Capture(3, 90)
	last, ok := m.UndoLast()
	if !ok || last.Time != 3 || last.Kind != Trough {
		t.Fatalf("UndoLast = %+v, %v", last, ok)
	}

	after := m.State()
	if len(after.Waypoints) != len(before.Waypoints) || after.PendingKind != before.PendingKind {
		t.Errorf("Undo should restore the prior state: %+v vs %+v", after, before)
	}

	m.UndoLast()
	m.UndoLast()
	if _, ok := m.UndoLast(); ok {
		t.Error("Undo on empty should report false")
	}
	if m.PendingKind() != Trough {
		t.Errorf("Pending after undoing all = %v, want trough", m.PendingKind())
	}
}

func TestClearAndReset(t *testing.T) {
	sink := &recordingSink{}
	m := NewMachine(sink)
	m.SetActive(true)
	m.Capture(1, 100)
	m.Capture(2, 120)

	m.ClearAll()
	if m.Len() != 0 || m.PendingKind() != Trough || !m.Active() {
		t.Errorf("ClearAll should empty and keep capture mode, state %+v", m.State())
	}
	if len(sink.last()) != 0 {
		t.Error("ClearAll should push an empty overlay")
	}

	m.Capture(1, 100)
	m.Reset()
	if m.Len() != 0 || m.Active() {
		t.Error("Reset should empty and leave capture mode")
	}
}

func TestOverlaySortedByTime(t *testing.T) {
	sink := &recordingSink{}
	m := NewMachine(sink)
	m.SetActive(true)
	m.Capture(30, 100)
	m.Capture(10, 150)
	m.Capture(20, 120)

	if len(sink.pushes) != 3 {
		t.Fatalf("Expected one push per capture, got %d", len(sink.pushes))
	}
	got := sink.last()
	want := []chart.SeriesPoint{{Time: 10, Value: 150}, {Time: 20, Value: 120}, {Time: 30, Value: 100}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Overlay[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	// insertion order is kept in the list itself
	if wps := m.Waypoints(); wps[0].Time != 30 {
		t.Errorf("Waypoints should keep insertion order, got %v", wps)
	}
}

func TestToggleActive(t *testing.T) {
	m := NewMachine(nil)
	if !m.ToggleActive() || !m.Active() {
		t.Error("First toggle should activate")
	}
	if m.ToggleActive() {
		t.Error("Second toggle should deactivate")
	}
}

func TestClickHandler(t *testing.T) {
	s := chart.NewSurface(chart.DefaultOptions())
	s.SetCandles([]model.Candle{
		{Time: 100, High: 200, Low: 100},
		{Time: 200, High: 200, Low: 100},
	})
	m := NewMachine(s)

	var seen []error
	if err := s.SubscribeClick(ClickHandler(m, s, func(_ Waypoint, err error) { seen = append(seen, err) })); err != nil {
		t.Fatal(err)
	}

	s.Click(100, 250)
	if m.Len() != 0 || len(seen) != 0 {
		t.Error("Clicks outside capture mode should be dropped")
	}

	m.SetActive(true)
	s.Click(100, 250)
	s.Click(600, 50)
	s.Click(600, 900) // off the plot
	if m.Len() != 2 || len(seen) != 2 {
		t.Fatalf("Expected 2 captures, got %d (%d callbacks)", m.Len(), len(seen))
	}

	wps := m.Waypoints()
	if wps[0].Time != 100 || wps[0].Price.String() != "150" || wps[1].Time != 200 || wps[1].Price.String() != "200" {
		t.Errorf("Unexpected waypoints %+v", wps)
	}
	if len(s.Overlay()) != 2 {
		t.Error("Surface overlay should follow the captures")
	}
}

func TestWaypointJSON(t *testing.T) {
	m := NewMachine(nil)
	m.SetActive(true)
	m.Capture(1704067200, 100)
	wp, _ := m.Capture(1704153600, 125.5)

	data, err := json.Marshal(wp)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"time":1704153600,"price":125.5,"type":"tepe","index":2}` {
		t.Errorf("Unexpected JSON %s", data)
	}

	var back Waypoint
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != Peak || back.Seq != 2 || !back.Price.Equal(wp.Price) {
		t.Errorf("Unexpected decode %+v", back)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"dip", Trough},
		{"trough", Trough},
		{"tepe", Peak},
		{"peak", Peak},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseKind(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseKind("top"); err == nil {
		t.Error("Expected error for unknown kind")
	}
	if Peak.Label() != "Tepe" || Trough.Label() != "Dip" {
		t.Error("Unexpected labels")
	}
}
