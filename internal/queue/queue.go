// Package queue implements the bounded, coalescing job queue that decouples
// a context's public API calls from its worker goroutine.
//
// Pushes that name the same (Proc, TweakID, Cookie) triple as an already
// pending job are coalesced into a no-op: the worker only needs to see the
// latest state once, not once per call. Proc is a small comparable enum
// rather than a function value: the
// worker dispatches on it through a fixed table of a handful of operations
// (push current value, announce features, add/remove item), so there is no
// need to carry a callable across the queue and no risk of hitting Go's
// "comparing uncomparable function values" restriction.
package queue

import "sync"

// Proc identifies which worker operation a Job requests.
type Proc int

const (
	ProcUnknown Proc = iota
	ProcPushCurrentValue
	ProcAnnounceFeatures
	ProcAddItem
	ProcRemoveItem
	ProcSubscribe
)

// Job is one unit of deferred work. Cookie must be a comparable
// value (a pointer, an id, or nil) since coalescing compares jobs with ==.
type Job struct {
	Proc    Proc
	TweakID uint64
	Cookie  any
}

// Queue is a bounded, double-buffered job queue. The zero value is not
// usable; construct with New.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current int
	batches [2][]Job
	maxSize int
	stopped bool
}

// New creates a queue that blocks Push once the active batch reaches
// maxSize entries.
func New(maxSize int) *Queue {
	q := &Queue{maxSize: maxSize}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// ensureCapacity grows batch to hold at least needed entries: jump to 10
// if smaller, otherwise grow by 50%.
func ensureCapacity(batch []Job, needed int) []Job {
	if cap(batch) >= needed {
		return batch
	}
	newCap := needed
	if newCap < 10 {
		newCap = 10
	} else {
		newCap = needed * 3 / 2
	}
	grown := make([]Job, len(batch), newCap)
	copy(grown, batch)
	return grown
}

// Push appends job to the active batch, coalescing it into an existing
// pending entry with the same (Proc, TweakID, Cookie). It blocks while the
// active batch is full, unless Stop is called while waiting, in which case
// Push returns immediately without enqueuing anything. Stop always wakes a
// waiting Push, so teardown cannot deadlock against a caller stuck waiting
// for batch space.
func (q *Queue) Push(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.batches[q.current]
	for i := len(batch) - 1; i >= 0; i-- {
		if batch[i].TweakID == job.TweakID && batch[i].Proc == job.Proc && batch[i].Cookie == job.Cookie {
			q.cond.Broadcast()
			return
		}
	}

	for len(q.batches[q.current]) >= q.maxSize && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		q.cond.Broadcast()
		return
	}

	batch = q.batches[q.current]
	batch = ensureCapacity(batch, len(batch)+1)
	batch = append(batch, job)
	q.batches[q.current] = batch
	q.cond.Broadcast()
}

// Pull blocks until the active batch holds at least one job or Stop has been
// called, then swaps batches and returns the drained one. stopped is true
// once Stop has been called; jobs still pending at that point are not
// returned.
func (q *Queue) Pull() (jobs []Job, stopped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.stopped && len(q.batches[q.current]) == 0 {
		q.cond.Wait()
	}

	if q.stopped {
		stopped = true
	} else {
		jobs = q.batches[q.current]
	}

	next := (q.current + 1) % 2
	q.current = next
	q.batches[next] = q.batches[next][:0]
	q.cond.Broadcast()
	return jobs, stopped
}

// Stop requests termination. It does not block, and it wakes every Push and
// Pull call currently waiting.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// WaitEmpty blocks until the active batch is empty. It does not observe
// Stop: a stopped queue with no pending work returns immediately.
func (q *Queue) WaitEmpty() {
	q.mu.Lock()
	for len(q.batches[q.current]) != 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// IsStopped reports whether Stop has been called.
func (q *Queue) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Destroy releases both batches. The queue remains safely inspectable (via
// Pull/IsStopped) afterward, it is simply empty.
func (q *Queue) Destroy() {
	q.mu.Lock()
	q.batches[0] = nil
	q.batches[1] = nil
	q.mu.Unlock()
}
