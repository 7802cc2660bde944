package synthpipeline

import "testing"

func TestAudioQueue_PopOrdersByPriorityThenFIFO(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)

	q.TryEnqueue(AudioArtifact{GroupID: "a", ChunkIndex: 0, Priority: 5, SizeBytes: 10})
	q.TryEnqueue(AudioArtifact{GroupID: "b", ChunkIndex: 0, Priority: 1, SizeBytes: 10})
	q.TryEnqueue(AudioArtifact{GroupID: "c", ChunkIndex: 0, Priority: 5, SizeBytes: 10})
	q.TryEnqueue(AudioArtifact{GroupID: "d", ChunkIndex: 0, Priority: 3, SizeBytes: 10})

	want := []string{"b", "d", "a", "c"}
	for i, id := range want {
		a, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if a.GroupID != id {
			t.Fatalf("pop %d: got group %q, want %q", i, a.GroupID, id)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue after draining all entries")
	}
}

func TestAudioQueue_TryEnqueue_RejectsOversizeArtifact(t *testing.T) {
	q := NewAudioQueue(1000, 100)
	ok := q.TryEnqueue(AudioArtifact{GroupID: "x", Priority: 5, SizeBytes: 101})
	if ok {
		t.Fatalf("expected oversize artifact to be rejected")
	}
	if q.Len() != 0 {
		t.Fatalf("rejected artifact must not be enqueued")
	}
}

func TestAudioQueue_TryEnqueue_RejectsWhenBufferFull(t *testing.T) {
	q := NewAudioQueue(150, 1<<20)
	if !q.TryEnqueue(AudioArtifact{GroupID: "x", Priority: 5, SizeBytes: 100}) {
		t.Fatalf("first enqueue should fit under the cap")
	}
	if q.TryEnqueue(AudioArtifact{GroupID: "y", Priority: 5, SizeBytes: 100}) {
		t.Fatalf("second enqueue should be rejected, buffer would exceed cap")
	}
	if q.BufferedBytes() != 100 {
		t.Fatalf("buffered bytes = %d, want 100", q.BufferedBytes())
	}
}

func TestAudioQueue_SkipGroup_RemovesOnlyMatchingGroup(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	q.TryEnqueue(AudioArtifact{GroupID: "keep", ChunkIndex: 0, Priority: 5, SizeBytes: 10})
	q.TryEnqueue(AudioArtifact{GroupID: "skip", ChunkIndex: 0, Priority: 5, SizeBytes: 20})
	q.TryEnqueue(AudioArtifact{GroupID: "skip", ChunkIndex: 1, Priority: 5, SizeBytes: 20})
	q.TryEnqueue(AudioArtifact{GroupID: "keep", ChunkIndex: 1, Priority: 5, SizeBytes: 10})

	removed, releasedBytes := q.SkipGroup("skip")
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if releasedBytes != 40 {
		t.Fatalf("releasedBytes = %d, want 40", releasedBytes)
	}
	if q.BufferedBytes() != 20 {
		t.Fatalf("BufferedBytes after skip = %d, want 20", q.BufferedBytes())
	}

	for q.Len() > 0 {
		a, _ := q.Pop()
		if a.GroupID == "skip" {
			t.Fatalf("found artifact from skipped group after SkipGroup")
		}
	}
}

func TestAudioQueue_SkipGroup_NoMatchIsNoop(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	q.TryEnqueue(AudioArtifact{GroupID: "keep", Priority: 5, SizeBytes: 10})

	removed, releasedBytes := q.SkipGroup("absent")
	if removed != 0 || releasedBytes != 0 {
		t.Fatalf("expected no-op skip, got removed=%d releasedBytes=%d", removed, releasedBytes)
	}
	if q.Len() != 1 {
		t.Fatalf("expected untouched queue, len=%d", q.Len())
	}
}

func TestAudioQueue_DrainAll_EmptiesQueueAndResetsBufferedBytes(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	q.TryEnqueue(AudioArtifact{GroupID: "a", Priority: 5, SizeBytes: 30})
	q.TryEnqueue(AudioArtifact{GroupID: "b", Priority: 2, SizeBytes: 70})

	drained := q.DrainAll()
	if len(drained) != 2 {
		t.Fatalf("drained %d artifacts, want 2", len(drained))
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after DrainAll")
	}
	if q.BufferedBytes() != 0 {
		t.Fatalf("BufferedBytes after DrainAll = %d, want 0", q.BufferedBytes())
	}
}

func TestAudioQueue_Release_ClampsAtZero(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	q.Release(50)
	if q.BufferedBytes() != 0 {
		t.Fatalf("BufferedBytes = %d, want 0 (clamped)", q.BufferedBytes())
	}
}

func TestAudioQueue_Notify_FiresOnEnqueue(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	q.TryEnqueue(AudioArtifact{GroupID: "a", Priority: 5, SizeBytes: 10})

	select {
	case <-q.Notify():
	default:
		t.Fatalf("expected notify channel to have a pending signal")
	}
}
