package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/workstalk/workstalk/internal/job"
)

// StatsText renders the process-wide stats body spec §6 describes: current
// counts, lifetime totals, connection counts, pid/version, CPU time,
// uptime, and heap capacity.
func (e *Engine) StatsText() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.statsCt++

	var urgentCt int
	e.readyQ.Each(func(j *job.Job) {
		if j.Urgent() {
			urgentCt++
		}
	})

	var producers, workers int
	for _, cs := range e.conns {
		if cs.isProducer {
			producers++
		}
		if cs.isWorker {
			workers++
		}
	}

	utime, stime := processCPUTimes()
	uptime := e.clock().Sub(e.startedAt)

	var b strings.Builder
	fmt.Fprintf(&b, "current-jobs-urgent: %d\n", urgentCt)
	fmt.Fprintf(&b, "current-jobs-ready: %d\n", e.readyQ.Used())
	fmt.Fprintf(&b, "current-jobs-reserved: %d\n", len(e.reservedJobs))
	fmt.Fprintf(&b, "current-jobs-delayed: %d\n", e.delayQ.Used())
	fmt.Fprintf(&b, "current-jobs-buried: %d\n", e.grave.Len())
	fmt.Fprintf(&b, "cmd-put: %d\n", e.stats.putCt)
	fmt.Fprintf(&b, "cmd-peek: %d\n", e.stats.peekCt)
	fmt.Fprintf(&b, "cmd-reserve: %d\n", e.stats.reserveCt)
	fmt.Fprintf(&b, "cmd-delete: %d\n", e.stats.deleteCt)
	fmt.Fprintf(&b, "cmd-release: %d\n", e.stats.releaseCt)
	fmt.Fprintf(&b, "cmd-bury: %d\n", e.stats.buryCt)
	fmt.Fprintf(&b, "cmd-kick: %d\n", e.stats.kickCt)
	fmt.Fprintf(&b, "cmd-stats: %d\n", e.stats.statsCt)
	fmt.Fprintf(&b, "job-timeouts: %d\n", e.stats.timeoutCt)
	fmt.Fprintf(&b, "total-jobs: %d\n", e.stats.totalCreated)
	fmt.Fprintf(&b, "total-connections: %d\n", e.stats.totalConns)
	fmt.Fprintf(&b, "current-connections: %d\n", len(e.conns))
	fmt.Fprintf(&b, "current-producers: %d\n", producers)
	fmt.Fprintf(&b, "current-workers: %d\n", workers)
	fmt.Fprintf(&b, "current-waiting: %d\n", e.waiting.Len())
	fmt.Fprintf(&b, "pid: %d\n", os.Getpid())
	fmt.Fprintf(&b, "version: %s\n", Version)
	fmt.Fprintf(&b, "rusage-utime: %.6f\n", utime)
	fmt.Fprintf(&b, "rusage-stime: %.6f\n", stime)
	fmt.Fprintf(&b, "uptime: %d\n", int64(uptime.Seconds()))
	fmt.Fprintf(&b, "heap-capacity: %d\n", e.cap)
	return []byte(b.String())
}

// Snapshot is a point-in-time read of the statistics aggregator, structured
// for consumers that want the counts as values rather than the rendered
// stats body — currently only internal/metrics.
type Snapshot struct {
	Ready, Reserved, Delayed, Buried, Urgent int
	Connections, Producers, Workers, Waiting int

	PutCt, PeekCt, ReserveCt, DeleteCt uint64
	ReleaseCt, BuryCt, KickCt, StatsCt uint64
	TimeoutCt, TotalConns              uint64
	TotalCreated, TotalDeleted         uint64
}

// Snapshot reads the current statistics aggregator state under lock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var urgentCt int
	e.readyQ.Each(func(j *job.Job) {
		if j.Urgent() {
			urgentCt++
		}
	})
	var producers, workers int
	for _, cs := range e.conns {
		if cs.isProducer {
			producers++
		}
		if cs.isWorker {
			workers++
		}
	}

	return Snapshot{
		Ready:        e.readyQ.Used(),
		Reserved:     len(e.reservedJobs),
		Delayed:      e.delayQ.Used(),
		Buried:       e.grave.Len(),
		Urgent:       urgentCt,
		Connections:  len(e.conns),
		Producers:    producers,
		Workers:      workers,
		Waiting:      e.waiting.Len(),
		PutCt:        e.stats.putCt,
		PeekCt:       e.stats.peekCt,
		ReserveCt:    e.stats.reserveCt,
		DeleteCt:     e.stats.deleteCt,
		ReleaseCt:    e.stats.releaseCt,
		BuryCt:       e.stats.buryCt,
		KickCt:       e.stats.kickCt,
		StatsCt:      e.stats.statsCt,
		TimeoutCt:    e.stats.timeoutCt,
		TotalConns:   e.stats.totalConns,
		TotalCreated: e.stats.totalCreated,
		TotalDeleted: e.stats.totalDeleted,
	}
}

// StatsJob renders the per-job stats body spec §6 describes: id, state,
// age, delay, ttr, time-left, and the four per-job counters.
func (e *Engine) StatsJob(id uint64) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.statsCt++

	j, ok := e.readyQ.Find(id)
	if !ok {
		j, ok = e.delayQ.Find(id)
	}
	if !ok {
		j, ok = e.reservedJobs[id]
	}
	if !ok {
		j, ok = e.grave.Find(id)
	}
	if !ok {
		return nil, false
	}

	now := e.clock()
	age := now.Sub(j.Creation)
	var timeLeft time.Duration
	if !j.Deadline.IsZero() {
		timeLeft = j.Deadline.Sub(now)
		if timeLeft < 0 {
			timeLeft = 0
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", j.ID)
	fmt.Fprintf(&b, "state: %s\n", j.State)
	fmt.Fprintf(&b, "age: %d\n", int64(age.Seconds()))
	fmt.Fprintf(&b, "delay: %d\n", j.Delay)
	fmt.Fprintf(&b, "ttr: %d\n", j.TTR)
	fmt.Fprintf(&b, "time-left: %d\n", int64(timeLeft.Seconds()))
	fmt.Fprintf(&b, "timeouts: %d\n", j.TimeoutCt)
	fmt.Fprintf(&b, "releases: %d\n", j.ReleaseCt)
	fmt.Fprintf(&b, "buries: %d\n", j.BuryCt)
	fmt.Fprintf(&b, "kicks: %d\n", j.KickCt)
	return []byte(b.String()), true
}
