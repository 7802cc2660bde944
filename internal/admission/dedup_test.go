package admission

import "testing"

func TestDedupFIFO_ExactDuplicateRejected(t *testing.T) {
	d := newDedupFIFO(100)
	text := "hello there"
	hash := contentHash(text)

	if d.checkAndRecord(text, hash) {
		t.Fatal("first occurrence must not be flagged as duplicate")
	}
	if !d.checkAndRecord(text, hash) {
		t.Fatal("second occurrence of identical content must be flagged as duplicate")
	}
}

func TestDedupFIFO_FuzzyNearDuplicateRejected(t *testing.T) {
	d := newDedupFIFO(100)
	first := "this is a pretty long test sentence for fuzzy matching"
	second := "this is a pretty long test sentence for fuzzy matching!"

	if d.checkAndRecord(first, contentHash(first)) {
		t.Fatal("first occurrence must not be flagged as duplicate")
	}
	if !d.checkAndRecord(second, contentHash(second)) {
		t.Fatal("near-identical content (single punctuation edit) must be flagged as a fuzzy duplicate")
	}
}

func TestDedupFIFO_DistinctContentNotFlagged(t *testing.T) {
	d := newDedupFIFO(100)
	if d.checkAndRecord("completely different message one", contentHash("completely different message one")) {
		t.Fatal("unexpected duplicate flag")
	}
	if d.checkAndRecord("a wholly unrelated second message", contentHash("a wholly unrelated second message")) {
		t.Fatal("unrelated content must not be flagged as duplicate")
	}
}

func TestDedupFIFO_EvictsOldestBeyondCapacity(t *testing.T) {
	d := newDedupFIFO(2)

	d.checkAndRecord("alpha message number one", contentHash("alpha message number one"))
	d.checkAndRecord("bravo message number two", contentHash("bravo message number two"))
	d.checkAndRecord("charlie message number three", contentHash("charlie message number three"))

	// "alpha" should have been evicted to make room for "charlie".
	if d.checkAndRecord("alpha message number one", contentHash("alpha message number one")) {
		t.Error("expected the oldest entry to have been evicted from the FIFO")
	}
}
