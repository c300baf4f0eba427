package engine

import (
	"context"
	"testing"
	"time"

	"github.com/workstalk/workstalk/internal/config"
	"github.com/workstalk/workstalk/internal/job"
)

func testEngine(t *testing.T, heapSize int) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cfg := config.Default()
	if heapSize > 0 {
		cfg.HeapSize = heapSize
	}
	return New(cfg, nil, WithClock(clk.Now)), clk
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Scenario 1 (spec §8): produce/consume.
func TestProduceConsume(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	j, buried, err := e.Put(producer, 0, 0, 60, []byte("hello"))
	if err != nil || buried || j.ID != 1 {
		t.Fatalf("Put = %+v, buried=%v, err=%v", j, buried, err)
	}

	got, err := e.Reserve(context.Background(), worker)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got.ID != 1 || string(got.Body) != "hello" {
		t.Fatalf("Reserve got %+v", got)
	}

	if !e.Delete(worker, 1) {
		t.Fatalf("Delete should succeed")
	}
	if e.Delete(worker, 1) {
		t.Fatalf("second Delete should fail")
	}
}

// Scenario 2 (spec §8): priority ordering, with the id tie-break.
func TestPriorityOrdering(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	mustPut := func(pri uint32, body string) {
		if _, buried, err := e.Put(producer, pri, 0, 60, []byte(body)); err != nil || buried {
			t.Fatalf("put %s: buried=%v err=%v", body, buried, err)
		}
	}
	mustPut(10, "a")
	mustPut(1, "b")
	mustPut(10, "c")

	want := []string{"b", "a", "c"}
	for _, w := range want {
		j, err := e.Reserve(context.Background(), worker)
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if string(j.Body) != w {
			t.Fatalf("got body %q, want %q", j.Body, w)
		}
	}
}

// Scenario 3 (spec §8): delay and kick.
func TestDelayAndKick(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	j, buried, err := e.Put(producer, 0, 60, 30, []byte("x"))
	if err != nil || buried {
		t.Fatalf("put: buried=%v err=%v", buried, err)
	}
	if j.State != job.Delayed {
		t.Fatalf("state = %v, want delayed", j.State)
	}

	resultCh := make(chan struct{})
	var got []byte
	go func() {
		r, err := e.Reserve(context.Background(), worker)
		if err == nil {
			got = r.Body
		}
		close(resultCh)
	}()

	// Give the goroutine a moment to register as waiting.
	waitUntil(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.waiting.Len() == 1
	})

	if n := e.Kick(1); n != 1 {
		t.Fatalf("Kick = %d, want 1", n)
	}

	<-resultCh
	if string(got) != "x" {
		t.Fatalf("reserved body = %q, want x", got)
	}
}

// Scenario 4 (spec §8): TTR expiry.
func TestTTRExpiry(t *testing.T) {
	e, clk := testEngine(t, 0)
	producer := e.RegisterConnection()
	workerB := e.RegisterConnection()
	workerC := e.RegisterConnection()

	if _, buried, err := e.Put(producer, 0, 0, 1, []byte("y")); err != nil || buried {
		t.Fatalf("put: buried=%v err=%v", buried, err)
	}
	j, err := e.Reserve(context.Background(), workerB)
	if err != nil || j.ID != 1 {
		t.Fatalf("Reserve: %+v, %v", j, err)
	}

	clk.Advance(2 * time.Second)
	e.mu.Lock()
	e.fireLocked()
	e.mu.Unlock()

	if j.TimeoutCt != 1 {
		t.Fatalf("TimeoutCt = %d, want 1", j.TimeoutCt)
	}

	got, err := e.Reserve(context.Background(), workerC)
	if err != nil || got.ID != 1 {
		t.Fatalf("Reserve after expiry: %+v, %v", got, err)
	}
}

// Scenario 5 (spec §8): bury / peek / kick.
func TestBuryPeekKick(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	if _, buried, err := e.Put(producer, 0, 0, 60, []byte("y")); err != nil || buried {
		t.Fatalf("put: buried=%v err=%v", buried, err)
	}
	j, err := e.Reserve(context.Background(), worker)
	if err != nil || j.ID != 1 {
		t.Fatalf("Reserve: %+v, %v", j, err)
	}
	if !e.Bury(worker, 1, 5) {
		t.Fatalf("Bury should succeed")
	}

	peeked, ok := e.PeekAny()
	if !ok || peeked.ID != 1 || peeked.Priority != 5 {
		t.Fatalf("PeekAny = %+v, ok=%v", peeked, ok)
	}

	if n := e.Kick(1); n != 1 {
		t.Fatalf("Kick = %d, want 1", n)
	}
	got, err := e.Reserve(context.Background(), worker)
	if err != nil || got.ID != 1 {
		t.Fatalf("Reserve after kick: %+v, %v", got, err)
	}
	if got.KickCt != 1 {
		t.Fatalf("KickCt = %d, want 1", got.KickCt)
	}
}

// Scenario 6 (spec §8): drain mode.
func TestDrainMode(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	if _, _, err := e.Put(producer, 0, 0, 60, []byte("before-drain")); err != nil {
		t.Fatalf("put before drain: %v", err)
	}

	e.EnterDrain()
	if !e.Draining() {
		t.Fatalf("Draining() should be true after EnterDrain")
	}
	if _, _, err := e.Put(producer, 0, 0, 60, []byte("z")); err != ErrDraining {
		t.Fatalf("Put during drain err = %v, want ErrDraining", err)
	}

	// reserve and delete still work while draining.
	j, err := e.Reserve(context.Background(), worker)
	if err != nil || j.ID != 1 {
		t.Fatalf("Reserve during drain: %+v, %v", j, err)
	}
	if !e.Delete(worker, 1) {
		t.Fatalf("Delete during drain should succeed")
	}
}

func TestCloseConnectionReleasesReservations(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	if _, _, err := e.Put(producer, 0, 0, 60, []byte("p")); err != nil {
		t.Fatalf("put: %v", err)
	}
	j, err := e.Reserve(context.Background(), worker)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	e.CloseConnection(worker)

	if j.State.String() != "ready" {
		t.Fatalf("job state after close = %v, want ready", j.State)
	}
	other := e.RegisterConnection()
	got, err := e.Reserve(context.Background(), other)
	if err != nil || got.ID != j.ID {
		t.Fatalf("reserve after close: %+v, %v", got, err)
	}
}

func TestReserveCanceledByContext(t *testing.T) {
	e, _ := testEngine(t, 0)
	worker := e.RegisterConnection()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Reserve(ctx, worker)
	if err == nil {
		t.Fatalf("Reserve should report cancellation when nothing is ready")
	}
}

func TestCapacityBuriesOnOverflow(t *testing.T) {
	e, _ := testEngine(t, 2)
	producer := e.RegisterConnection()

	for i := 0; i < 2; i++ {
		if _, buried, err := e.Put(producer, 0, 0, 60, []byte("x")); err != nil || buried {
			t.Fatalf("put %d: buried=%v err=%v", i, buried, err)
		}
	}
	_, buried, err := e.Put(producer, 0, 0, 60, []byte("overflow"))
	if err != nil || !buried {
		t.Fatalf("third put should bury: buried=%v err=%v", buried, err)
	}
}

// TestKickFromGraveyardTerminatesUnderSharedCapacity reproduces the
// maintainer-reported hang: with the shared ready+delay heap already full,
// a buried job cannot be promoted back to ready, so Kick must still return
// promptly (moved=0) instead of spinning forever re-popping and re-burying
// the same job.
func TestKickFromGraveyardTerminatesUnderSharedCapacity(t *testing.T) {
	e, _ := testEngine(t, 2)
	producer := e.RegisterConnection()

	for i := 0; i < 2; i++ {
		if _, buried, err := e.Put(producer, 0, 60, 60, []byte("x")); err != nil || buried {
			t.Fatalf("delayed put %d: buried=%v err=%v", i, buried, err)
		}
	}
	// Shared ready+delay capacity (2) is now exhausted by the two delayed
	// jobs above; this put is buried immediately.
	_, buried, err := e.Put(producer, 0, 0, 60, []byte("overflow"))
	if err != nil || !buried {
		t.Fatalf("third put should bury: buried=%v err=%v", buried, err)
	}
	if e.grave.Len() != 1 {
		t.Fatalf("graveyard len = %d, want 1", e.grave.Len())
	}

	done := make(chan uint32, 1)
	go func() { done <- e.Kick(1) }()

	select {
	case moved := <-done:
		if moved != 0 {
			t.Fatalf("Kick moved = %d, want 0 (capacity still exhausted)", moved)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Kick did not return — livelock in the graveyard branch")
	}
	if e.grave.Len() != 1 {
		t.Fatalf("graveyard len after failed kick = %d, want 1 (job re-buried, not lost)", e.grave.Len())
	}
}

// TestTouchResetsDeadlineAndRescheduling is the supplemented touch command
// (see SPEC_FULL.md): a worker holding a reservation can reset its TTR
// deadline without releasing the job.
func TestTouchResetsDeadlineAndRescheduling(t *testing.T) {
	e, clk := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()

	if _, buried, err := e.Put(producer, 0, 0, 10, []byte("y")); err != nil || buried {
		t.Fatalf("put: buried=%v err=%v", buried, err)
	}
	j, err := e.Reserve(context.Background(), worker)
	if err != nil || j.ID != 1 {
		t.Fatalf("reserve: %+v, %v", j, err)
	}
	firstDeadline := j.Deadline

	clk.Advance(5 * time.Second)
	if !e.Touch(worker, j.ID) {
		t.Fatalf("Touch should succeed for the reserving connection")
	}
	if !j.Deadline.After(firstDeadline) {
		t.Fatalf("deadline after touch = %v, want after %v", j.Deadline, firstDeadline)
	}
	if want := clk.Now().Add(10 * time.Second); !j.Deadline.Equal(want) {
		t.Fatalf("deadline after touch = %v, want %v", j.Deadline, want)
	}

	// Past the original TTR window, but touch pushed the deadline out, so
	// a timer tick must not expire the reservation yet.
	clk.Advance(8 * time.Second)
	e.mu.Lock()
	e.fireLocked()
	e.mu.Unlock()
	if j.TimeoutCt != 0 {
		t.Fatalf("timeoutCt = %d, want 0 — touch should have deferred expiry", j.TimeoutCt)
	}

	// Past the refreshed deadline, the reservation does expire.
	clk.Advance(5 * time.Second)
	e.mu.Lock()
	e.fireLocked()
	e.mu.Unlock()
	if j.TimeoutCt != 1 {
		t.Fatalf("timeoutCt = %d, want 1 after the refreshed TTR elapses", j.TimeoutCt)
	}
}

func TestTouchNotFound(t *testing.T) {
	e, _ := testEngine(t, 0)
	producer := e.RegisterConnection()
	worker := e.RegisterConnection()
	other := e.RegisterConnection()

	if e.Touch(worker, 999) {
		t.Fatalf("Touch of a nonexistent id should fail")
	}

	if _, buried, err := e.Put(producer, 0, 0, 60, []byte("z")); err != nil || buried {
		t.Fatalf("put: buried=%v err=%v", buried, err)
	}
	j, err := e.Reserve(context.Background(), worker)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if e.Touch(other, j.ID) {
		t.Fatalf("Touch by a connection that doesn't hold the reservation should fail")
	}
	if !e.Touch(worker, j.ID) {
		t.Fatalf("Touch by the reserving connection should succeed")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}
