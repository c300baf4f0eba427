package engine

import (
	"context"
	"time"

	"github.com/workstalk/workstalk/internal/job"
	"github.com/workstalk/workstalk/internal/reservation"
)

// Put allocates a job and enqueues it to ready or delay depending on delay
// (spec §4.5 put). buried reports whether capacity forced an immediate
// bury; the caller renders BURIED <id> or INSERTED <id> accordingly.
func (e *Engine) Put(connID uint64, pri, delay, ttr uint32, body []byte) (j *job.Job, buried bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.draining {
		return nil, false, ErrDraining
	}

	if cs := e.conns[connID]; cs != nil {
		cs.isProducer = true
	}

	id := e.nextJobID
	e.nextJobID++
	now := e.clock()
	j = &job.Job{
		ID:       id,
		Priority: pri,
		Delay:    delay,
		TTR:      ttr,
		Body:     append([]byte(nil), body...),
		Creation: now,
	}
	e.stats.putCt++
	e.stats.totalCreated++

	if delay > 0 {
		j.State = job.Delayed
		j.Deadline = now.Add(time.Duration(delay) * time.Second)
		if !e.giveDelayLocked(j) {
			e.buryLocked(j)
			return j, true, nil
		}
		e.signalTimerLocked()
		return j, false, nil
	}

	j.State = job.Ready
	if !e.giveReadyLocked(j) {
		e.buryLocked(j)
		return j, true, nil
	}
	e.runMatchingLocked()
	return j, false, nil
}

// Reserve blocks connID until the matching step hands it a job, or until
// ctx is canceled (spec §5 "Blocking"/"Cancellation"). The race between a
// connection closing and a concurrent match completing is resolved by the
// mutex: if Remove from the waiting queue succeeds, no match happened and
// ctx's error is authoritative; if Remove fails, a match already completed
// under the same lock before the cancellation was observed, so the result
// is already waiting on the channel.
func (e *Engine) Reserve(ctx context.Context, connID uint64) (*job.Job, error) {
	e.mu.Lock()
	if cs := e.conns[connID]; cs != nil {
		cs.isWorker = true
	}
	w := &waiter{connID: connID, resultCh: make(chan *job.Job, 1)}
	e.waiting.PushTail(w)
	e.runMatchingLocked()
	e.mu.Unlock()

	select {
	case j := <-w.resultCh:
		return j, nil
	case <-ctx.Done():
		e.mu.Lock()
		removed := e.waiting.Remove(connID)
		e.mu.Unlock()
		if removed {
			return nil, ctx.Err()
		}
		return <-w.resultCh, nil
	}
}

// Delete resolves id in the order spec §4.5 specifies: reserved by this
// connection, buried, then any-reserved (administrative deletion).
func (e *Engine) Delete(connID, id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cs := e.conns[connID]; cs != nil && cs.reservations.Remove(id) {
		delete(e.reservedJobs, id)
		e.stats.deleteCt++
		e.stats.totalDeleted++
		return true
	}
	if e.grave.Remove(id) {
		e.stats.deleteCt++
		e.stats.totalDeleted++
		return true
	}
	if j, ok := e.reservedJobs[id]; ok {
		if owner := e.conns[j.ReservedBy]; owner != nil {
			owner.reservations.Remove(id)
		}
		delete(e.reservedJobs, id)
		e.stats.deleteCt++
		e.stats.totalDeleted++
		return true
	}
	return false
}

// Release re-enqueues a job this connection has reserved (spec §4.5
// release). found is false if connID does not hold id; buried is true if
// capacity forced an immediate bury.
func (e *Engine) Release(connID, id uint64, pri, delay uint32) (buried, found bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cs := e.conns[connID]
	if cs == nil || !cs.reservations.Remove(id) {
		return false, false
	}
	j, ok := e.reservedJobs[id]
	if !ok {
		return false, false
	}
	delete(e.reservedJobs, id)
	j.Priority = pri
	j.ReservedBy = 0
	j.ReleaseCt++
	e.stats.releaseCt++

	now := e.clock()
	if delay > 0 {
		j.State = job.Delayed
		j.Deadline = now.Add(time.Duration(delay) * time.Second)
		if !e.giveDelayLocked(j) {
			e.buryLocked(j)
			return true, true
		}
		e.signalTimerLocked()
		return false, true
	}

	if !e.promoteToReadyLocked(j) {
		return true, true
	}
	e.runMatchingLocked()
	return false, true
}

// Bury moves a job this connection has reserved to the graveyard tail
// (spec §4.5 bury). found is false if connID does not hold id.
func (e *Engine) Bury(connID, id uint64, pri uint32) (found bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cs := e.conns[connID]
	if cs == nil || !cs.reservations.Remove(id) {
		return false
	}
	j, ok := e.reservedJobs[id]
	if !ok {
		return false
	}
	delete(e.reservedJobs, id)
	j.Priority = pri
	j.BuryCt++
	e.stats.buryCt++
	e.buryLocked(j)
	return true
}

// Touch resets a held job's TTR deadline to now+ttr without releasing it.
// This is a supplemented command (see SPEC_FULL.md) absent from spec.md's
// distilled command set but present in the system this was drawn from;
// workers use it to keep a long-running job alive across several TTR
// windows instead of being forced to release and re-reserve it.
func (e *Engine) Touch(connID, id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, ok := e.reservedJobs[id]
	if !ok || j.ReservedBy != connID {
		return false
	}
	cs := e.conns[connID]
	if cs == nil || !cs.reservations.Remove(id) {
		return false
	}
	now := e.clock()
	j.Deadline = now.Add(time.Duration(j.TTR) * time.Second)
	cs.reservations.Add(reservation.Entry{ID: id, Deadline: j.Deadline})
	e.signalTimerLocked()
	return true
}

// Kick promotes up to n jobs to ready (spec §4.5 kick): from the graveyard
// head if non-empty, else from the delay queue's earliest-deadline end. It
// returns the count actually moved, which may be less than n.
func (e *Engine) Kick(n uint32) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var moved uint32
	if e.grave.Len() > 0 {
		// A job that fails to promote (shared ready+delay capacity full,
		// spec §5) is re-buried at the tail by promoteToReadyLocked, so
		// grave.Len() alone never shrinks to end this loop. Bound the
		// number of pops to the graveyard's size at entry instead: that's
		// exactly one pass over the jobs present when Kick was called,
		// after which every remaining job has already been tried once.
		attempts := e.grave.Len()
		for moved < n && attempts > 0 {
			j, ok := e.grave.PopHead()
			if !ok {
				break
			}
			attempts--
			if e.promoteToReadyLocked(j) {
				j.KickCt++
				e.stats.kickCt++
				moved++
			}
		}
		e.runMatchingLocked()
		return moved
	}

	for moved < n {
		j, ok := e.delayQ.Take()
		if !ok {
			break
		}
		if e.promoteToReadyLocked(j) {
			j.KickCt++
			e.stats.kickCt++
			moved++
		}
	}
	e.signalTimerLocked()
	e.runMatchingLocked()
	return moved
}

// PeekAny implements peek with no id: the buried job at the graveyard head,
// or failing that the next-to-fire delayed job (spec §9 open question,
// resolved in DESIGN.md). The returned Job is a deep copy, safe to hold
// after releasing the lock (spec §9 "Peek-copy lifetime").
func (e *Engine) PeekAny() (*job.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.peekCt++

	if j, ok := e.grave.PeekHead(); ok {
		return j.Copy(), true
	}
	if j, ok := e.delayQ.Peek(); ok {
		return j.Copy(), true
	}
	return nil, false
}

// PeekID searches every pool for id regardless of state (spec §4.5 peek
// <id>). Reserved jobs are found via reservedJobs, which collapses the
// "waiting-attached" pool spec.md names separately: because the matching
// step (runMatchingLocked) moves a job straight into reservedJobs under the
// same lock that popped it from ready, there is no window in which a job is
// attached to a worker but not yet in reservedJobs.
func (e *Engine) PeekID(id uint64) (*job.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.peekCt++

	if j, ok := e.readyQ.Find(id); ok {
		return j.Copy(), true
	}
	if j, ok := e.delayQ.Find(id); ok {
		return j.Copy(), true
	}
	if j, ok := e.reservedJobs[id]; ok {
		return j.Copy(), true
	}
	if j, ok := e.grave.Find(id); ok {
		return j.Copy(), true
	}
	return nil, false
}

// EnterDrain puts the server into drain mode (spec §4.8). Irreversible for
// the process lifetime, per spec §6 — there is deliberately no ExitDrain.
func (e *Engine) EnterDrain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draining = true
}

// Draining reports whether the server is in drain mode.
func (e *Engine) Draining() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draining
}
