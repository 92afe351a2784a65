package coord

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/momentum/internal/dispatch"
	"github.com/abelbrown/momentum/internal/sweep"
)

type mockDispatcher struct {
	calls atomic.Int32
	err   error
}

func (m *mockDispatcher) Execute(ctx context.Context, now time.Time, force bool) (dispatch.Result, error) {
	m.calls.Add(1)
	if m.err != nil {
		return dispatch.Result{}, m.err
	}
	return dispatch.Result{Dispatched: true}, nil
}

type mockSweeper struct {
	calls atomic.Int32
}

func (m *mockSweeper) Run(ctx context.Context, now time.Time) (sweep.Stats, error) {
	m.calls.Add(1)
	return sweep.Stats{}, nil
}

type mockReweighter struct {
	calls atomic.Int32
}

func (m *mockReweighter) Reweight(now time.Time) error {
	m.calls.Add(1)
	return nil
}

func TestCoordinatorRunsImmediateDispatchTick(t *testing.T) {
	d := &mockDispatcher{}
	c := New(d, &mockSweeper{}, &mockReweighter{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.After(2 * time.Second)
	for d.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("dispatch tick never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	c.Wait()
}

func TestCoordinatorTicksOnInterval(t *testing.T) {
	d := &mockDispatcher{}
	c := New(d, &mockSweeper{}, &mockReweighter{}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.After(2 * time.Second)
	for d.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 ticks, got %d", d.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	c.Wait()
}

func TestCoordinatorStopsOnCancel(t *testing.T) {
	d := &mockDispatcher{}
	c := New(d, &mockSweeper{}, &mockReweighter{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	c.Wait()

	after := d.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if d.calls.Load() != after {
		t.Error("expected no ticks after cancellation")
	}
}

func TestCoordinatorSurvivesTickErrors(t *testing.T) {
	d := &mockDispatcher{err: errors.New("gate exploded")}
	c := New(d, &mockSweeper{}, &mockReweighter{}, 15*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.After(2 * time.Second)
	for d.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected loop to keep ticking after errors, got %d calls", d.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	c.Wait()
}

func TestCoordinatorDefaultInterval(t *testing.T) {
	c := New(&mockDispatcher{}, &mockSweeper{}, &mockReweighter{}, 0)
	if c.checkInterval != 30*time.Minute {
		t.Errorf("expected 30m default interval, got %s", c.checkInterval)
	}
}
