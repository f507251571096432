package segment

import "sync"

// Queue is a blocking multi-producer/multi-consumer FIFO of segments with an
// explicit draining state. Once draining is signalled no further enqueues
// succeed, but entries already queued remain consumable.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*Segment
	draining bool

	enqueued uint64
	dropped  uint64
}

// QueueStats represents queue state for monitoring.
type QueueStats struct {
	Depth    int    `json:"depth"`
	Draining bool   `json:"draining"`
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
}

// NewQueue creates an empty dispatch queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a segment to the queue. It never blocks. Once draining has
// been signalled the segment is silently dropped and false is returned.
func (q *Queue) Enqueue(seg *Segment) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		q.dropped++
		return false
	}

	q.items = append(q.items, seg)
	q.enqueued++
	q.cond.Signal()

	return true
}

// Dequeue blocks until a segment is available or the queue is both empty and
// draining, in which case it returns (nil, false).
func (q *Queue) Dequeue() (*Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.draining {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, false
	}

	seg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	return seg, true
}

// SignalDraining marks the queue as draining. Idempotent. Blocked consumers
// are woken so they can drain remaining entries and observe the state.
func (q *Queue) SignalDraining() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return
	}

	q.draining = true
	q.cond.Broadcast()
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsDraining reports whether draining has been signalled.
func (q *Queue) IsDraining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// GetStats returns current queue statistics.
func (q *Queue) GetStats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Depth:    len(q.items),
		Draining: q.draining,
		Enqueued: q.enqueued,
		Dropped:  q.dropped,
	}
}
