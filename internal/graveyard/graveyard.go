// Package graveyard implements the FIFO list of buried jobs (spec §4.2):
// insert at tail, remove from head, find-by-id by linear scan. Buried order
// must be preserved for kick, and jobs must be individually removable by id
// for delete.
package graveyard

import "container/list"

// List is a FIFO of *T, addressable by a uint64 id. Not safe for concurrent
// use.
type List[T any] struct {
	l  *list.List
	id func(T) uint64
}

// New creates an empty graveyard keyed by the given id accessor.
func New[T any](id func(T) uint64) *List[T] {
	return &List[T]{l: list.New(), id: id}
}

// PushTail appends v (spec: bury inserts at tail).
func (g *List[T]) PushTail(v T) {
	g.l.PushBack(v)
}

// PopHead removes and returns the head (oldest buried), or ok=false if
// empty (spec: kick removes from head).
func (g *List[T]) PopHead() (v T, ok bool) {
	e := g.l.Front()
	if e == nil {
		return v, false
	}
	g.l.Remove(e)
	return e.Value.(T), true
}

// PeekHead returns the head without removing it.
func (g *List[T]) PeekHead() (v T, ok bool) {
	e := g.l.Front()
	if e == nil {
		return v, false
	}
	return e.Value.(T), true
}

// Find returns the element with the given id by linear scan.
func (g *List[T]) Find(target uint64) (v T, ok bool) {
	for e := g.l.Front(); e != nil; e = e.Next() {
		item := e.Value.(T)
		if g.id(item) == target {
			return item, true
		}
	}
	return v, false
}

// Remove deletes the element with the given id, if present.
func (g *List[T]) Remove(target uint64) bool {
	for e := g.l.Front(); e != nil; e = e.Next() {
		if g.id(e.Value.(T)) == target {
			g.l.Remove(e)
			return true
		}
	}
	return false
}

// Len returns the number of buried jobs.
func (g *List[T]) Len() int {
	return g.l.Len()
}

// Each calls fn for every item head-to-tail. fn must not mutate the list.
func (g *List[T]) Each(fn func(T)) {
	for e := g.l.Front(); e != nil; e = e.Next() {
		fn(e.Value.(T))
	}
}
