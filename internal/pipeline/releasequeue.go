// Package pipeline orchestrates single logical calls against the vendor
// APIs: bearer-token management, bounded expiry retry, response
// classification, and the deferred release queue.
package pipeline

import (
	"sync"
	"time"

	"github.com/Blodie/locust-stages/internal/tpo"
)

// DeferredEntry pairs a built release request with the moment its
// originating order completed. The release task only sends it once the
// configured wait has elapsed.
type DeferredEntry struct {
	Request    *tpo.RequestSpec
	EnqueuedAt time.Time
}

// ReleaseQueue is a process-wide FIFO of deferred release requests. Orders
// completed by any virtual user enqueue here, and whichever user next draws
// the release task consumes from it, so ordering and visibility must hold
// under true parallelism.
//
// Ordering is strictly by enqueue time; readiness is the consumer's job to
// re-check, not a queue property.
type ReleaseQueue struct {
	mu      sync.Mutex
	entries []DeferredEntry
}

// NewReleaseQueue creates an empty release queue.
func NewReleaseQueue() *ReleaseQueue {
	return &ReleaseQueue{}
}

// Enqueue appends a deferred release stamped with the given time.
func (q *ReleaseQueue) Enqueue(req *tpo.RequestSpec, at time.Time) {
	q.mu.Lock()
	q.entries = append(q.entries, DeferredEntry{Request: req, EnqueuedAt: at})
	q.mu.Unlock()
}

// Peek returns the oldest entry's timestamp without removing it. The second
// return value is false when the queue is empty; callers treat that as
// "nothing to release yet", not an error.
func (q *ReleaseQueue) Peek() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].EnqueuedAt, true
}

// Dequeue removes and returns the oldest entry's request. The second return
// value is false when the queue is empty.
func (q *ReleaseQueue) Dequeue() (*tpo.RequestSpec, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	req := q.entries[0].Request
	q.entries = q.entries[1:]
	return req, true
}

// Len returns the number of deferred entries currently queued.
func (q *ReleaseQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
