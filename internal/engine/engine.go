// Package engine is the job lifecycle core: the interacting ready/delay
// priority queues, the graveyard, the per-connection reservation sets, the
// waiting-worker queue, and the matching step that ties them together
// (spec §2, §4.5–§4.9). Every public method takes the engine's single
// mutex while it reads or changes core state (Reserve and RunTimer release
// it while they wait), which is this package's answer to spec §5's
// "serialize the core" requirement — the rest of workstalkd may be as
// concurrent as it likes; only one logical mutation happens at a time here.
package engine

import (
	"sync"
	"time"

	"github.com/workstalk/workstalk/internal/config"
	"github.com/workstalk/workstalk/internal/graveyard"
	"github.com/workstalk/workstalk/internal/job"
	"github.com/workstalk/workstalk/internal/pqueue"
	"github.com/workstalk/workstalk/internal/reservation"
	"github.com/workstalk/workstalk/internal/waitqueue"
	logpkg "github.com/workstalk/workstalk/pkg/log"
)

// Version is reported in stats (spec §6 "version").
const Version = "1.0.0"

// connState is the engine's per-connection bookkeeping: which jobs it has
// reserved, and whether it has ever acted as a producer or worker (spec §2
// "Connection state", reduced to what the core itself needs — protocol
// framing and reply buffers live in internal/protocol and internal/server).
type connState struct {
	reservations *reservation.Set
	isProducer   bool
	isWorker     bool
}

// waiter is one pending reserve call. resultCh is buffered 1: the matching
// step sends the matched job without blocking, whether or not Reserve is
// still there to receive it (it always is, by construction — see Reserve).
type waiter struct {
	connID   uint64
	resultCh chan *job.Job
}

// Engine is the job lifecycle core. The zero value is not usable; construct
// with New.
type Engine struct {
	mu sync.Mutex

	cfg    config.Config
	logger logpkg.Logger
	clock  func() time.Time

	startedAt time.Time
	draining  bool

	nextJobID  uint64
	nextConnID uint64

	// cap is the shared capacity of readyQ and delayQ combined (spec §5
	// "Shared resources": "the ready and delay heaps share a global
	// capacity"). Both queues are constructed unbounded and the engine
	// enforces cap itself across the pair — see giveReadyLocked/
	// giveDelayLocked.
	cap int

	readyQ  *pqueue.Queue[*job.Job]
	delayQ  *pqueue.Queue[*job.Job]
	grave   *graveyard.List[*job.Job]
	waiting *waitqueue.Queue[*waiter]

	conns        map[uint64]*connState
	reservedJobs map[uint64]*job.Job

	wakeCh chan struct{}

	stats statCounters
}

type statCounters struct {
	putCt, peekCt, reserveCt, deleteCt uint64
	releaseCt, buryCt, kickCt, statsCt uint64
	timeoutCt, totalConns              uint64
	totalCreated, totalDeleted         uint64
}

// Option customizes an Engine at construction, following the functional
// options idiom used throughout pkg/log.
type Option func(*Engine)

// WithClock overrides time.Now, for deterministic tests of delay/TTR/timer
// behavior.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New builds an Engine from cfg. logger is scoped to the "engine" component;
// a nil logger gets a discarding one so callers never need a nil check.
func New(cfg config.Config, logger logpkg.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logpkg.NewTestLogger()
	}
	e := &Engine{
		cfg:          cfg,
		logger:       logger.WithComponent("engine"),
		clock:        time.Now,
		startedAt:    time.Now(),
		nextJobID:    1,
		cap:          cfg.HeapSize,
		readyQ:       pqueue.New[*job.Job](0, readyLess, jobID),
		delayQ:       pqueue.New[*job.Job](0, delayLess, jobID),
		grave:        graveyard.New[*job.Job](jobID),
		waiting:      waitqueue.New[*waiter](waiterID),
		conns:        make(map[uint64]*connState),
		reservedJobs: make(map[uint64]*job.Job),
		wakeCh:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func jobID(j *job.Job) uint64    { return j.ID }
func waiterID(w *waiter) uint64  { return w.connID }

// readyLess orders the ready queue by (priority, id) ascending — the id
// tie-break is mandatory for FIFO among equal-priority jobs (spec §4.1).
func readyLess(a, b *job.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.ID < b.ID
}

// delayLess orders the delay queue by (deadline, id) ascending.
func delayLess(a, b *job.Job) bool {
	if !a.Deadline.Equal(b.Deadline) {
		return a.Deadline.Before(b.Deadline)
	}
	return a.ID < b.ID
}

// giveReadyLocked and giveDelayLocked enforce the shared ready+delay
// capacity (spec §5 "Shared resources") that pqueue.Queue's own per-queue
// cap can't express, since both queues are constructed unbounded.
func (e *Engine) giveReadyLocked(j *job.Job) bool {
	if e.readyQ.Used()+e.delayQ.Used() >= e.cap {
		return false
	}
	e.readyQ.Give(j)
	return true
}

func (e *Engine) giveDelayLocked(j *job.Job) bool {
	if e.readyQ.Used()+e.delayQ.Used() >= e.cap {
		return false
	}
	e.delayQ.Give(j)
	return true
}

// promoteToReadyLocked moves j into the ready queue, or buries it if the
// shared ready+delay capacity is exhausted (the "bury on capacity failure"
// fallback repeated across put, release, kick, and the timer driver).
func (e *Engine) promoteToReadyLocked(j *job.Job) bool {
	j.State = job.Ready
	j.Deadline = time.Time{}
	if e.giveReadyLocked(j) {
		return true
	}
	e.buryLocked(j)
	return false
}

func (e *Engine) buryLocked(j *job.Job) {
	j.State = job.Buried
	j.Deadline = time.Time{}
	j.ReservedBy = 0
	e.grave.PushTail(j)
}

// signalTimerLocked wakes the timer driver so it recomputes its next
// deadline. Non-blocking: the channel only needs to carry "something
// changed", and a pending signal already covers that.
func (e *Engine) signalTimerLocked() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// runMatchingLocked is the matching step (spec §4.6): while both the ready
// queue and the waiting queue are non-empty, pair the highest-priority
// ready job with the head waiting worker.
func (e *Engine) runMatchingLocked() {
	for e.readyQ.Used() > 0 && e.waiting.Len() > 0 {
		j, _ := e.readyQ.Take()
		w, _ := e.waiting.PopHead()

		now := e.clock()
		j.State = job.Reserved
		j.Deadline = now.Add(time.Duration(j.TTR) * time.Second)
		j.ReservedBy = w.connID

		if cs := e.conns[w.connID]; cs != nil {
			cs.reservations.Add(reservation.Entry{ID: j.ID, Deadline: j.Deadline})
		}
		e.reservedJobs[j.ID] = j
		e.stats.reserveCt++

		w.resultCh <- j
	}
	e.signalTimerLocked()
}

// RegisterConnection allocates per-connection state and returns its id. The
// caller (internal/server) owns the connection's lifetime and must call
// CloseConnection exactly once when it ends.
func (e *Engine) RegisterConnection() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextConnID++
	id := e.nextConnID
	e.conns[id] = &connState{reservations: reservation.NewSet()}
	e.stats.totalConns++
	return id
}

// CloseConnection unlinks connID from the waiting queue and re-enqueues
// every job it held in reservation, bury-on-overflow, exactly as spec §4.9
// requires: no reserved job is ever lost by a connection going away.
func (e *Engine) CloseConnection(connID uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.waiting.Remove(connID)

	cs, ok := e.conns[connID]
	if !ok {
		return
	}
	drained := cs.reservations.Drain()
	for _, entry := range drained {
		j, ok := e.reservedJobs[entry.ID]
		if !ok {
			continue
		}
		delete(e.reservedJobs, entry.ID)
		j.ReservedBy = 0
		e.promoteToReadyLocked(j)
	}
	delete(e.conns, connID)
	if len(drained) > 0 {
		e.runMatchingLocked()
	} else {
		e.signalTimerLocked()
	}
}
