// Package expiry provides the delay queue behind ephemeral content removal.
//
// Pending expiries live in a min-heap ordered by fire time, with insertion
// order breaking ties. Every entry has a Handle and can be cancelled
// individually; at most one entry exists per (key, item id) pair.
//
// Queue is not safe for concurrent use. The content store serializes access
// under its own lock.
package expiry

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled expiry. The zero Handle is never issued.
type Handle uint64

// Entry is a due expiry returned by PopDue.
type Entry struct {
	Handle Handle
	Key    string
	ItemID string
	FireAt time.Time
}

type itemRef struct {
	key string
	id  string
}

type entry struct {
	Entry
	seq   uint64
	index int
}

// Queue is a min-heap of pending expiries.
type Queue struct {
	heap     entryHeap
	byHandle map[Handle]*entry
	byItem   map[itemRef]*entry
	nextSeq  uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		byHandle: make(map[Handle]*entry),
		byItem:   make(map[itemRef]*entry),
	}
}

// Schedule registers an expiry for the item at the given time. A pending
// expiry for the same item is replaced.
func (q *Queue) Schedule(key, itemID string, at time.Time) Handle {
	q.CancelItem(key, itemID)

	q.nextSeq++
	e := &entry{
		Entry: Entry{
			Handle: Handle(q.nextSeq),
			Key:    key,
			ItemID: itemID,
			FireAt: at,
		},
		seq: q.nextSeq,
	}
	heap.Push(&q.heap, e)
	q.byHandle[e.Handle] = e
	q.byItem[itemRef{key, itemID}] = e
	return e.Handle
}

// Cancel removes a pending expiry. Returns false if the handle already fired
// or was cancelled.
func (q *Queue) Cancel(h Handle) bool {
	e, ok := q.byHandle[h]
	if !ok {
		return false
	}
	q.drop(e)
	return true
}

// CancelItem removes the pending expiry for an item, if any.
func (q *Queue) CancelItem(key, itemID string) bool {
	e, ok := q.byItem[itemRef{key, itemID}]
	if !ok {
		return false
	}
	q.drop(e)
	return true
}

// Pending reports whether an expiry is scheduled for the item.
func (q *Queue) Pending(key, itemID string) bool {
	_, ok := q.byItem[itemRef{key, itemID}]
	return ok
}

// PopDue removes and returns every entry with FireAt at or before now,
// earliest first.
func (q *Queue) PopDue(now time.Time) []Entry {
	var due []Entry
	for len(q.heap) > 0 {
		e := q.heap[0]
		if e.FireAt.After(now) {
			break
		}
		q.drop(e)
		due = append(due, e.Entry)
	}
	return due
}

// Next returns the earliest pending fire time.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].FireAt, true
}

// Len returns the number of pending expiries.
func (q *Queue) Len() int {
	return len(q.heap)
}

// Clear drops every pending expiry.
func (q *Queue) Clear() {
	q.heap = nil
	clear(q.byHandle)
	clear(q.byItem)
}

func (q *Queue) drop(e *entry) {
	heap.Remove(&q.heap, e.index)
	delete(q.byHandle, e.Handle)
	delete(q.byItem, itemRef{e.Key, e.ItemID})
}

// entryHeap implements heap.Interface ordered by (FireAt, seq).
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].FireAt.Equal(h[j].FireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].FireAt.Before(h[j].FireAt)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
