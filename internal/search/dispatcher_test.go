package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"patterndraw/internal/capture"
	"patterndraw/internal/criteria"
)

func twoPoints() []capture.Waypoint {
	return []capture.Waypoint{waypoint(jan2, 100, capture.Trough, 1), waypoint(feb1, 150, capture.Peak, 2)}
}

func TestDispatcherRuns(t *testing.T) {
	d := NewDispatcher(NewOrchestrator(&fakeBackend{}), time.Second)

	id, err := d.Trigger(Query{Symbol: "THYAO", Waypoints: twoPoints()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := d.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job.ID != id || job.Status != StatusDone || job.Outcome == nil || job.Points != 2 {
		t.Errorf("Unexpected job %+v", job)
	}
}

func TestDispatcherRejectsTooFewPoints(t *testing.T) {
	d := NewDispatcher(NewOrchestrator(&fakeBackend{}), 0)
	if _, err := d.Trigger(Query{Symbol: "THYAO"}); !errors.Is(err, criteria.ErrInsufficientPoints) {
		t.Errorf("Expected ErrInsufficientPoints, got %v", err)
	}
	if _, ok := d.Current(); ok {
		t.Error("A rejected trigger must not create a job")
	}
	if _, err := d.Wait(context.Background()); !errors.Is(err, ErrNoSearch) {
		t.Errorf("Expected ErrNoSearch, got %v", err)
	}
}

func TestDispatcherSupersedes(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	d := NewDispatcher(NewOrchestrator(b), 0)

	first, _ := d.Trigger(Query{Symbol: "THYAO", Waypoints: twoPoints()})

	b.mu.Lock()
	b.block = nil
	b.mu.Unlock()
	second, _ := d.Trigger(Query{Symbol: "THYAO", Waypoints: twoPoints()})
	if first == second {
		t.Fatal("Each trigger should get its own job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := d.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job.ID != second || job.Status != StatusDone {
		t.Errorf("Latest job should win, got %+v", job)
	}
	// the superseded primary was canceled, so it never fell back
	if len(b.similars) != 0 {
		t.Errorf("Superseded search should not fall back, got %d fallback calls", len(b.similars))
	}
}

func TestDispatcherFailure(t *testing.T) {
	b := &fakeBackend{patternErr: errors.New("down"), similarErr: errors.New("down too")}
	d := NewDispatcher(NewOrchestrator(b), time.Second)
	d.Trigger(Query{Symbol: "THYAO", Waypoints: twoPoints()})

	job, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var se *SearchError
	if job.Status != StatusFailed || job.Error == "" || !errors.As(job.Err(), &se) {
		t.Errorf("Unexpected failed job %+v", job)
	}
}

func TestRunningJobOmitsFinishedAt(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	d := NewDispatcher(NewOrchestrator(b), 0)
	defer d.Stop()
	d.Trigger(Query{Symbol: "THYAO", Waypoints: twoPoints()})

	job, _ := d.Current()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "finished_at") {
		t.Errorf("Running job should not report finished_at: %s", data)
	}
}

func TestDispatcherStop(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	d := NewDispatcher(NewOrchestrator(b), 0)
	d.Trigger(Query{Symbol: "THYAO", Waypoints: twoPoints()})
	d.Stop()

	job, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusSuperseded {
		t.Errorf("Stopped job status = %s", job.Status)
	}
}
