package admission

import (
	"testing"
	"time"
)

func TestSlidingWindow_AllowsUpToLimit(t *testing.T) {
	w := newSlidingWindow(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !w.allow("u1", now) {
			t.Fatalf("event %d should be allowed within the limit", i)
		}
	}
	if w.allow("u1", now) {
		t.Fatal("4th event within the window should be rejected")
	}
}

func TestSlidingWindow_PrunesExpiredEntries(t *testing.T) {
	w := newSlidingWindow(1, time.Second)
	now := time.Now()

	if !w.allow("u1", now) {
		t.Fatal("first event should be allowed")
	}
	if w.allow("u1", now.Add(500*time.Millisecond)) {
		t.Fatal("second event inside the window should be rejected")
	}
	if !w.allow("u1", now.Add(2*time.Second)) {
		t.Fatal("event after the window has elapsed should be allowed")
	}
}

func TestSlidingWindow_TracksAuthorsIndependently(t *testing.T) {
	w := newSlidingWindow(1, time.Minute)
	now := time.Now()

	if !w.allow("u1", now) {
		t.Fatal("u1's first event should be allowed")
	}
	if !w.allow("u2", now) {
		t.Fatal("u2's first event should be allowed independently of u1")
	}
}
