package criteria

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"patterndraw/internal/capture"
)

func points(prices ...float64) []capture.Waypoint {
	wps := make([]capture.Waypoint, len(prices))
	kind := capture.Trough
	for i, p := range prices {
		wps[i] = capture.Waypoint{
			Time:  int64(i+1) * 86400,
			Price: decimal.NewFromFloat(p),
			Kind:  kind,
			Seq:   i + 1,
		}
		kind = kind.Toggle()
	}
	return wps
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		dir    Direction
		change float64
		min    float64
		max    float64
	}{
		{"rise", []float64{100, 150}, Rise, 50, 35, 65},
		{"drop", []float64{100, 70}, Drop, -30, 15, 45},
		{"small move floors the lower bound", []float64{100, 103}, Rise, 3, 5, 18},
		{"flat counts as a drop", []float64{100, 100}, Drop, 0, 5, 15},
		{"rounded to two places", []float64{150, 200}, Rise, 33.33, 18.33, 48.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Derive(points(tt.prices...))
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			r, c := d.Ratios[0], d.Criteria[0]
			if r.Direction != tt.dir || r.PercentChange != tt.change {
				t.Errorf("Ratio = %+v, want %s %v", r, tt.dir, tt.change)
			}
			if c.Min != tt.min || c.Max != tt.max {
				t.Errorf("Bounds = [%v, %v], want [%v, %v]", c.Min, c.Max, tt.min, tt.max)
			}
		})
	}
}

func TestDeriveRequestKeys(t *testing.T) {
	d, err := Derive(points(100, 150, 120))
	if err != nil {
		t.Fatal(err)
	}
	m := d.Map()
	want := map[string]float64{
		"rise_1_min": 35, "rise_1_max": 65,
		"drop_2_min": 5, "drop_2_max": 35,
	}
	if len(m) != len(want) {
		t.Fatalf("Map = %v, want %v", m, want)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
	if d.Ratios[1].FromKind != capture.Peak || d.Ratios[1].ToKind != capture.Trough {
		t.Errorf("Unexpected kinds %+v", d.Ratios[1])
	}
}

func TestDeriveSortsByTime(t *testing.T) {
	wps := points(100, 150, 120)
	// drawn out of order: the 120 point was placed first in time
	wps[2].Time = 0
	in := append([]capture.Waypoint(nil), wps...)

	d, err := Derive(wps)
	if err != nil {
		t.Fatal(err)
	}
	// 120 -> 100 -> 150
	if d.Ratios[0].Direction != Drop || d.Ratios[0].PercentChange != -16.67 {
		t.Errorf("First ratio = %+v", d.Ratios[0])
	}
	if d.Ratios[1].Direction != Rise || d.Ratios[1].PercentChange != 50 {
		t.Errorf("Second ratio = %+v", d.Ratios[1])
	}
	// labels stay with their points
	if d.Ratios[0].FromKind != capture.Trough || d.Ratios[0].ToKind != capture.Trough {
		t.Errorf("Kinds should follow insertion labels, got %+v", d.Ratios[0])
	}
	for i := range wps {
		if wps[i].Time != in[i].Time {
			t.Fatal("Derive must not reorder its input")
		}
	}
}

func TestDeriveErrors(t *testing.T) {
	if _, err := Derive(nil); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("Expected ErrInsufficientPoints, got %v", err)
	}
	if _, err := Derive(points(100)); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("Expected ErrInsufficientPoints, got %v", err)
	}
	if _, err := Derive(points(0, 100)); !errors.Is(err, ErrZeroPrice) {
		t.Errorf("Expected ErrZeroPrice, got %v", err)
	}
}

func TestClearAllLeavesNoHiddenState(t *testing.T) {
	type click struct {
		t     int64
		price float64
	}
	sequence := []click{{300, 120}, {100, 100}, {200, 180.456}, {400, 90}}
	replay := func(m *capture.Machine) {
		for _, c := range sequence {
			if _, err := m.Capture(c.t, c.price); err != nil {
				t.Fatal(err)
			}
		}
	}

	fresh := capture.NewMachine(nil)
	fresh.SetActive(true)
	replay(fresh)

	reused := capture.NewMachine(nil)
	reused.SetActive(true)
	reused.Capture(50, 300)
	reused.Capture(60, 310)
	reused.Capture(70, 305)
	reused.UndoLast()
	reused.ClearAll()
	replay(reused)

	a, b := fresh.Waypoints(), reused.Waypoints()
	if len(a) != len(b) {
		t.Fatalf("Waypoint count %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Seq != b[i].Seq || a[i].Time != b[i].Time || !a[i].Price.Equal(b[i].Price) {
			t.Errorf("Waypoint %d = %+v, want %+v", i, b[i], a[i])
		}
	}

	da, err := Derive(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Derive(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(da, db) {
		t.Errorf("Derivation after ClearAll = %+v, want %+v", db, da)
	}
	if !reflect.DeepEqual(da.Map(), db.Map()) {
		t.Errorf("Request criteria differ: %v vs %v", db.Map(), da.Map())
	}
}
