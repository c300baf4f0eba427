// Package reservation implements the per-connection set of reserved jobs
// ordered by deadline ascending (spec §4.3). Soonest returns the
// earliest-expiring reservation in O(1); insertion is O(n) in the number of
// concurrently reserved jobs for one connection, which is expected to be
// small.
package reservation

import "time"

// Entry is the minimal shape reservation.Set needs from a reserved job.
type Entry struct {
	ID       uint64
	Deadline time.Time
}

// Set is one connection's sorted-by-deadline reservation list. Not safe for
// concurrent use.
type Set struct {
	entries []Entry
}

// NewSet creates an empty reservation set.
func NewSet() *Set {
	return &Set{}
}

// Add inserts e keeping entries sorted by Deadline ascending.
func (s *Set) Add(e Entry) {
	i := 0
	for i < len(s.entries) && !s.entries[i].Deadline.After(e.Deadline) {
		i++
	}
	s.entries = append(s.entries, Entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
}

// Remove deletes the entry with the given id, if present. Returns whether
// anything was removed.
func (s *Set) Remove(id uint64) bool {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Soonest returns the earliest-expiring reservation, or ok=false if empty.
func (s *Set) Soonest() (e Entry, ok bool) {
	if len(s.entries) == 0 {
		return e, false
	}
	return s.entries[0], true
}

// PopExpired removes and returns every entry whose Deadline is at or before
// now, in deadline order. Used by the timer driver (spec §4.7) — expiring
// one reservation can reveal another already-expired one on the same
// connection, which is why this can return more than one entry.
func (s *Set) PopExpired(now time.Time) []Entry {
	i := 0
	for i < len(s.entries) && !s.entries[i].Deadline.After(now) {
		i++
	}
	if i == 0 {
		return nil
	}
	expired := append([]Entry(nil), s.entries[:i]...)
	s.entries = s.entries[i:]
	return expired
}

// Drain removes and returns every entry regardless of deadline, in deadline
// order. Used on connection close (spec §4.9), where every job the
// connection held must be released or buried unconditionally rather than
// only the already-expired ones.
func (s *Set) Drain() []Entry {
	all := s.entries
	s.entries = nil
	return all
}

// Len returns the number of reservations held.
func (s *Set) Len() int {
	return len(s.entries)
}

// Each calls fn for every entry in deadline order. fn must not mutate the
// set.
func (s *Set) Each(fn func(Entry)) {
	for _, e := range s.entries {
		fn(e)
	}
}
