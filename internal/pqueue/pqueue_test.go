package pqueue

import (
	"testing"
)

type entry struct {
	id   uint64
	pri  uint32
}

func priLess(a, b entry) bool {
	if a.pri != b.pri {
		return a.pri < b.pri
	}
	return a.id < b.id
}

func entryID(e entry) uint64 { return e.id }

func TestGiveTakeOrdering(t *testing.T) {
	q := New(0, priLess, entryID)
	q.Give(entry{id: 1, pri: 10})
	q.Give(entry{id: 2, pri: 1})
	q.Give(entry{id: 3, pri: 10})

	want := []uint64{2, 1, 3}
	for _, w := range want {
		got, ok := q.Take()
		if !ok || got.id != w {
			t.Fatalf("Take() = %+v, ok=%v, want id=%d", got, ok, w)
		}
	}
	if _, ok := q.Take(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestFIFOTieBreak(t *testing.T) {
	q := New(0, priLess, entryID)
	// Same priority, ids ascending in insertion order must dequeue FIFO.
	for id := uint64(1); id <= 5; id++ {
		q.Give(entry{id: id, pri: 7})
	}
	for id := uint64(1); id <= 5; id++ {
		got, ok := q.Take()
		if !ok || got.id != id {
			t.Fatalf("Take() = %+v, want id=%d", got, id)
		}
	}
}

func TestCapacity(t *testing.T) {
	q := New(2, priLess, entryID)
	if !q.Give(entry{id: 1}) {
		t.Fatalf("first Give should succeed")
	}
	if !q.Give(entry{id: 2}) {
		t.Fatalf("second Give should succeed")
	}
	if q.Give(entry{id: 3}) {
		t.Fatalf("Give at capacity should fail")
	}
	if q.Used() != 2 {
		t.Fatalf("Used() = %d, want 2", q.Used())
	}
}

func TestFindAndRemove(t *testing.T) {
	q := New(0, priLess, entryID)
	q.Give(entry{id: 1, pri: 5})
	q.Give(entry{id: 2, pri: 3})
	q.Give(entry{id: 3, pri: 9})

	got, ok := q.Find(2)
	if !ok || got.pri != 3 {
		t.Fatalf("Find(2) = %+v, ok=%v", got, ok)
	}
	if !q.Remove(2) {
		t.Fatalf("Remove(2) should succeed")
	}
	if _, ok := q.Find(2); ok {
		t.Fatalf("Find(2) should fail after Remove")
	}
	if q.Used() != 2 {
		t.Fatalf("Used() = %d, want 2", q.Used())
	}
	// Remaining order still respects priority.
	got, _ = q.Take()
	if got.id != 1 {
		t.Fatalf("Take() after Remove = %+v, want id=1", got)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New(0, priLess, entryID)
	q.Give(entry{id: 1, pri: 5})
	v, ok := q.Peek()
	if !ok || v.id != 1 {
		t.Fatalf("Peek() = %+v, ok=%v", v, ok)
	}
	if q.Used() != 1 {
		t.Fatalf("Peek should not remove")
	}
}
