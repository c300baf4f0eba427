package engine

import (
	"context"
	"time"

	logpkg "github.com/workstalk/workstalk/pkg/log"
)

// RunTimer drives delay expiry and TTR expiry (spec §4.7). It maintains a
// single wall-clock wakeup at the earliest of the delay queue's head
// deadline and every connection's soonest reservation deadline, recomputed
// after each fire and whenever a mutation calls signalTimerLocked. It
// returns when ctx is canceled.
func (e *Engine) RunTimer(ctx context.Context) {
	for {
		e.mu.Lock()
		wake := e.nextWakeupLocked()
		e.mu.Unlock()

		var timerC <-chan time.Time
		var t *time.Timer
		if !wake.IsZero() {
			d := wake.Sub(e.clock())
			if d < 0 {
				d = 0
			}
			t = time.NewTimer(d)
			timerC = t.C
		}

		select {
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return
		case <-e.wakeCh:
			if t != nil {
				t.Stop()
			}
			continue
		case <-timerC:
		}

		e.mu.Lock()
		e.fireLocked()
		e.mu.Unlock()
	}
}

// nextWakeupLocked computes min(delay_q.peek().deadline, min over
// connections of soonest(c).deadline), or the zero Time if nothing is
// pending.
func (e *Engine) nextWakeupLocked() time.Time {
	var next time.Time
	if j, ok := e.delayQ.Peek(); ok {
		next = j.Deadline
	}
	for _, cs := range e.conns {
		entry, ok := cs.reservations.Soonest()
		if !ok {
			continue
		}
		if next.IsZero() || entry.Deadline.Before(next) {
			next = entry.Deadline
		}
	}
	return next
}

// fireLocked runs both halves of the timer tick: promote due delayed jobs,
// then expire due reservations, running the matching step after each
// category of change (spec §4.7 steps 1–2).
func (e *Engine) fireLocked() {
	now := e.clock()

	for {
		j, ok := e.delayQ.Peek()
		if !ok || j.Deadline.After(now) {
			break
		}
		e.delayQ.Take()
		e.promoteToReadyLocked(j)
	}
	e.runMatchingLocked()

	anyExpired := false
	for connID, cs := range e.conns {
		expired := cs.reservations.PopExpired(now)
		for _, entry := range expired {
			j, ok := e.reservedJobs[entry.ID]
			if !ok {
				continue
			}
			anyExpired = true
			delete(e.reservedJobs, entry.ID)
			j.TimeoutCt++
			e.stats.timeoutCt++
			j.ReservedBy = 0
			e.promoteToReadyLocked(j)
			e.logger.Debug("reservation expired", logpkg.Uint64("job_id", entry.ID), logpkg.Uint64("conn_id", connID))
		}
	}
	if anyExpired {
		e.runMatchingLocked()
	}
}
