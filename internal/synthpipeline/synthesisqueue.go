package synthpipeline

import "sync"

// defaultSynthesisQueueCapacity bounds the number of SynthesisJobs buffered
// ahead of the synthesizer worker. A full queue rejects the whole admitted
// message rather than partially enqueuing its chunks.
const defaultSynthesisQueueCapacity = 100

// SynthesisQueue is a bounded FIFO of SynthesisJobs. Put never blocks: a
// full queue fails the put so the caller can log and drop the message.
type SynthesisQueue struct {
	mu       sync.Mutex
	items    []SynthesisJob
	capacity int
	notify   chan struct{}
}

// NewSynthesisQueue builds an empty SynthesisQueue bounded at capacity
// jobs. A non-positive capacity falls back to defaultSynthesisQueueCapacity.
func NewSynthesisQueue(capacity int) *SynthesisQueue {
	if capacity <= 0 {
		capacity = defaultSynthesisQueueCapacity
	}
	return &SynthesisQueue{
		items:    make([]SynthesisJob, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// TryPut appends job if the queue has room. Returns false without
// modifying the queue if it is at capacity.
func (q *SynthesisQueue) TryPut(job SynthesisJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, job)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// TryTake removes and returns the oldest job, or ok=false if empty.
func (q *SynthesisQueue) TryTake() (SynthesisJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return SynthesisJob{}, false
	}
	job := q.items[0]
	q.items = q.items[1:]
	return job, true
}

// Notify returns the channel signaled whenever a job is put.
func (q *SynthesisQueue) Notify() <-chan struct{} {
	return q.notify
}

// Len reports the number of jobs currently queued.
func (q *SynthesisQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainGroup removes and returns every job belonging to groupID, still
// waiting to be synthesized — used when a skip/clear arrives before the
// synthesizer has taken those chunks.
func (q *SynthesisQueue) DrainGroup(groupID string) []SynthesisJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0:0]
	var removed []SynthesisJob
	for _, job := range q.items {
		if job.GroupID == groupID {
			removed = append(removed, job)
			continue
		}
		kept = append(kept, job)
	}
	q.items = kept
	return removed
}

// DrainAll empties the queue, returning every job it held.
func (q *SynthesisQueue) DrainAll() []SynthesisJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	all := q.items
	q.items = q.items[:0]
	return all
}
