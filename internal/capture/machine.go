package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"patterndraw/internal/chart"
)

var (
	// ErrInactive is returned by Capture outside capture mode
	ErrInactive = errors.New("capture mode is not active")
	// ErrInvalidPrice is returned for non-positive or non-finite prices
	ErrInvalidPrice = errors.New("invalid price")
)

// PricePlaces is the precision captured prices are rounded to
const PricePlaces = 2

// Waypoint is a user-designated point on the price chart
type Waypoint struct {
	Time  int64           // bar time, unix seconds
	Price decimal.Decimal // rounded to PricePlaces
	Kind  Kind
	Seq   int // 1-based insertion index
}

type waypointJSON struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
	Type  Kind    `json:"type"`
	Index int     `json:"index"`
}

func (w Waypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(waypointJSON{
		Time:  w.Time,
		Price: w.Price.InexactFloat64(),
		Type:  w.Kind,
		Index: w.Seq,
	})
}

func (w *Waypoint) UnmarshalJSON(data []byte) error {
	var raw waypointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = Waypoint{
		Time:  raw.Time,
		Price: decimal.NewFromFloat(raw.Price).Round(PricePlaces),
		Kind:  raw.Type,
		Seq:   raw.Index,
	}
	return nil
}

// State is a read-only view of a Machine
type State struct {
	Waypoints   []Waypoint `json:"points"`
	PendingKind Kind       `json:"next_type"`
	Active      bool       `json:"capture_active"`
	NextHint    string     `json:"next_hint"`
}

// Machine owns the ordered waypoint list and the alternating kind cursor.
// It is not safe for concurrent use; the owner serializes calls.
type Machine struct {
	waypoints []Waypoint
	pending   Kind
	active    bool
	sink      chart.OverlaySink
}

// NewMachine creates an inactive machine that pushes its overlay to sink (may be nil)
func NewMachine(sink chart.OverlaySink) *Machine {
	return &Machine{pending: Trough, sink: sink}
}

// SetActive switches capture mode. Waypoints are not touched.
func (m *Machine) SetActive(active bool) {
	m.active = active
}

// ToggleActive flips capture mode and returns the new value
func (m *Machine) ToggleActive() bool {
	m.active = !m.active
	return m.active
}

// Active reports whether clicks are interpreted as captures
func (m *Machine) Active() bool {
	return m.active
}

// PendingKind is the kind the next captured waypoint will get
func (m *Machine) PendingKind() Kind {
	return m.pending
}

// Len returns the number of captured waypoints
func (m *Machine) Len() int {
	return len(m.waypoints)
}

// Waypoints returns a copy of the waypoints in insertion order
func (m *Machine) Waypoints() []Waypoint {
	cp := make([]Waypoint, len(m.waypoints))
	copy(cp, m.waypoints)
	return cp
}

// State returns a snapshot for display
func (m *Machine) State() State {
	return State{
		Waypoints:   m.Waypoints(),
		PendingKind: m.pending,
		Active:      m.active,
		NextHint:    fmt.Sprintf("%d. %s", len(m.waypoints)+1, m.pending.Label()),
	}
}

// Capture appends a waypoint of the pending kind
func (m *Machine) Capture(t int64, price float64) (Waypoint, error) {
	if !m.active {
		return Waypoint{}, ErrInactive
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Waypoint{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	wp := Waypoint{
		Time:  t,
		Price: decimal.NewFromFloat(price).Round(PricePlaces),
		Kind:  m.pending,
		Seq:   len(m.waypoints) + 1,
	}
	m.waypoints = append(m.waypoints, wp)
	m.pending = m.pending.Toggle()
	m.pushOverlay()
	return wp, nil
}

// UndoLast removes the most recently captured waypoint and restores its kind as pending
func (m *Machine) UndoLast() (Waypoint, bool) {
	n := len(m.waypoints)
	if n == 0 {
		return Waypoint{}, false
	}
	last := m.waypoints[n-1]
	m.waypoints = m.waypoints[:n-1:n-1]
	m.pending = last.Kind
	m.pushOverlay()
	return last, true
}

// ClearAll drops every waypoint
func (m *Machine) ClearAll() {
	m.waypoints = nil
	m.pending = Trough
	m.pushOverlay()
}

// Reset clears the machine and leaves capture mode (symbol change)
func (m *Machine) Reset() {
	m.active = false
	m.ClearAll()
}

// Overlay returns the line through all waypoints ordered by time
func (m *Machine) Overlay() []chart.SeriesPoint {
	return OverlayOf(m.waypoints)
}

func (m *Machine) pushOverlay() {
	if m.sink != nil {
		m.sink.SetOverlaySeries(m.Overlay())
	}
}

// OverlayOf builds the overlay line for waypoints, sorted by time ascending
func OverlayOf(waypoints []Waypoint) []chart.SeriesPoint {
	points := make([]chart.SeriesPoint, len(waypoints))
	for i, wp := range waypoints {
		points[i] = chart.SeriesPoint{Time: wp.Time, Value: wp.Price.InexactFloat64()}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
	return points
}

// ClickHandler returns the handler to bind once to a chart surface. It reads the
// machine through its pointer on every click, so it always sees the current mode
// and pending kind. Clicks outside capture mode or off the series are dropped.
// onCapture (may be nil) observes each capture attempt.
func ClickHandler(m *Machine, tr chart.Translator, onCapture func(Waypoint, error)) chart.ClickFunc {
	return func(ev chart.ClickEvent) {
		if !m.Active() {
			return
		}
		p, ok := tr.ClickToTimeAndPrice(ev)
		if !ok {
			return
		}
		wp, err := m.Capture(p.Time, p.Price)
		if onCapture != nil {
			onCapture(wp, err)
		}
	}
}
