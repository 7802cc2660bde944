package synthpipeline

import (
	"container/heap"
	"sync"
)

// audioEntry wraps an AudioArtifact with scheduling metadata for the
// priority queue. seq provides FIFO ordering within the same priority.
type audioEntry struct {
	artifact AudioArtifact
	seq      uint64
}

// artifactHeap implements [container/heap.Interface] as a min-heap ordered
// by priority ascending (lower value first), with FIFO tie-breaking on seq.
type artifactHeap []audioEntry

func (h artifactHeap) Len() int { return len(h) }

func (h artifactHeap) Less(i, j int) bool {
	if h[i].artifact.Priority != h[j].artifact.Priority {
		return h[i].artifact.Priority < h[j].artifact.Priority
	}
	return h[i].seq < h[j].seq
}

func (h artifactHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *artifactHeap) Push(x any) {
	*h = append(*h, x.(audioEntry))
}

func (h *artifactHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// AudioQueue is a bounded priority queue of AudioArtifacts, ordered by
// (priority ascending, enqueue_sequence ascending). Total buffered bytes
// and an individual-artifact size cap are enforced on enqueue.
type AudioQueue struct {
	mu   sync.Mutex
	heap artifactHeap
	seq  uint64

	bufferedBytes  int
	bufferCap      int
	perArtifactCap int

	notify chan struct{}
}

// NewAudioQueue builds an empty AudioQueue enforcing bufferCap total
// buffered bytes and perArtifactCap per individual artifact.
func NewAudioQueue(bufferCap, perArtifactCap int) *AudioQueue {
	q := &AudioQueue{
		heap:           make(artifactHeap, 0, 16),
		bufferCap:      bufferCap,
		perArtifactCap: perArtifactCap,
		notify:         make(chan struct{}, 1),
	}
	heap.Init(&q.heap)
	return q
}

// TryEnqueue adds artifact if it fits under both the per-artifact cap and
// the remaining buffer budget. Returns false (without enqueuing) otherwise.
func (q *AudioQueue) TryEnqueue(artifact AudioArtifact) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if artifact.SizeBytes > q.perArtifactCap {
		return false
	}
	if q.bufferedBytes+artifact.SizeBytes > q.bufferCap {
		return false
	}

	q.seq++
	heap.Push(&q.heap, audioEntry{artifact: artifact, seq: q.seq})
	q.bufferedBytes += artifact.SizeBytes

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// BufferedBytes reports the sum of SizeBytes for every artifact currently
// held in the queue (not counting one the playback worker has already
// popped and is streaming).
func (q *AudioQueue) BufferedBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bufferedBytes
}

// Pop removes and returns the highest-priority artifact, or ok=false if the
// queue is empty. Callers are responsible for calling Release once the
// artifact is disposed, to keep BufferedBytes accurate.
func (q *AudioQueue) Pop() (AudioArtifact, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return AudioArtifact{}, false
	}
	e := heap.Pop(&q.heap).(audioEntry)
	return e.artifact, true
}

// Release accounts for the disposal of an artifact popped earlier,
// decrementing the buffered-bytes counter.
func (q *AudioQueue) Release(sizeBytes int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bufferedBytes -= sizeBytes
	if q.bufferedBytes < 0 {
		q.bufferedBytes = 0
	}
}

// Notify returns the channel signaled whenever an artifact is enqueued.
func (q *AudioQueue) Notify() <-chan struct{} {
	return q.notify
}

// SkipGroup removes every artifact with GroupID == groupID, disposing
// nothing itself — it's the caller's job to account for the bytes it
// releases via the returned total. Returns the count removed.
func (q *AudioQueue) SkipGroup(groupID string) (removed int, releasedBytes int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := make(artifactHeap, 0, len(q.heap))
	for _, e := range q.heap {
		if e.artifact.GroupID == groupID {
			removed++
			releasedBytes += e.artifact.SizeBytes
			continue
		}
		kept = append(kept, e)
	}
	q.heap = kept
	heap.Init(&q.heap)
	q.bufferedBytes -= releasedBytes
	if q.bufferedBytes < 0 {
		q.bufferedBytes = 0
	}
	return removed, releasedBytes
}

// DrainAll empties the queue, returning every artifact it held so the
// caller can dispose of them.
func (q *AudioQueue) DrainAll() []AudioArtifact {
	q.mu.Lock()
	defer q.mu.Unlock()

	artifacts := make([]AudioArtifact, 0, len(q.heap))
	for _, e := range q.heap {
		artifacts = append(artifacts, e.artifact)
	}
	q.heap = q.heap[:0]
	q.bufferedBytes = 0
	return artifacts
}

// Len reports the number of artifacts currently queued.
func (q *AudioQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
