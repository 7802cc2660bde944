package admission

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/antzucaro/matchr"
)

const (
	dedupWindowSize      = 100
	fuzzyDedupThreshold  = 0.95
)

// contentHash returns the stable dedup key for sanitized content.
func contentHash(sanitized string) string {
	sum := sha256.Sum256([]byte(sanitized))
	return hex.EncodeToString(sum[:])
}

// dedupFIFO tracks the last dedupWindowSize content hashes (exact dedup) and
// their source text (for a fuzzy Jaro-Winkler pass), evicting the oldest
// entry once the window is full.
type dedupFIFO struct {
	mu       sync.Mutex
	order    *list.List
	byHash   map[string]*list.Element
	capacity int
}

type dedupEntry struct {
	hash string
	text string
}

func newDedupFIFO(capacity int) *dedupFIFO {
	return &dedupFIFO{
		order:    list.New(),
		byHash:   make(map[string]*list.Element),
		capacity: capacity,
	}
}

// checkAndRecord returns true if sanitized is a duplicate of something
// already in the window — either an exact content-hash match, or a
// near-duplicate by Jaro-Winkler similarity — and otherwise records it.
func (d *dedupFIFO) checkAndRecord(sanitized, hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byHash[hash]; ok {
		return true
	}
	for e := d.order.Front(); e != nil; e = e.Next() {
		entry := e.Value.(dedupEntry)
		if matchr.JaroWinkler(sanitized, entry.text, false) >= fuzzyDedupThreshold {
			return true
		}
	}

	elem := d.order.PushBack(dedupEntry{hash: hash, text: sanitized})
	d.byHash[hash] = elem
	if d.order.Len() > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.byHash, oldest.Value.(dedupEntry).hash)
	}
	return false
}
