package admission

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// rejectedPrefixes are leading characters that mark content as a command
// invocation for some other bot or system, never as something to speak.
var rejectedPrefixes = []rune{'!', '/', '.', '>', '<'}

// Config holds the tunables admission rules are evaluated against. It may
// be swapped out at runtime (see [Admitter.UpdateConfig]) to pick up a
// config-watcher reload without restarting the process.
type Config struct {
	TargetChannelID             string
	EnableSelfMessageProcessing bool
	OwnAuthorID                 string
	RateLimitMessages           int
	RateLimitPeriod             time.Duration
	MaxMessageLength            int
	ChunkLimit                  int
}

// Admitter turns TextEvents into AdmittedMessages, applying C4's ordered
// filter chain, sanitization, chunking, and deduplication.
type Admitter struct {
	mu    sync.Mutex
	cfg   Config
	rate  *slidingWindow
	dedup *dedupFIFO
	nowFn func() time.Time
}

// New builds an Admitter from cfg. Rate-limit and chunk-limit tunables may
// be changed later via UpdateConfig without losing dedup/rate-window state.
func New(cfg Config) *Admitter {
	return &Admitter{
		cfg:   cfg,
		rate:  newSlidingWindow(cfg.RateLimitMessages, cfg.RateLimitPeriod),
		dedup: newDedupFIFO(dedupWindowSize),
		nowFn: time.Now,
	}
}

// UpdateConfig swaps in tunables picked up from a hot-reloaded config. The
// rate window is rebuilt (losing in-flight per-author history) only when
// its limit or period actually changed.
func (a *Admitter) UpdateConfig(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cfg.RateLimitMessages != a.cfg.RateLimitMessages || cfg.RateLimitPeriod != a.cfg.RateLimitPeriod {
		a.rate = newSlidingWindow(cfg.RateLimitMessages, cfg.RateLimitPeriod)
	}
	a.cfg = cfg
}

func (a *Admitter) snapshot() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Admit evaluates the ordered rule chain against ev. ok is false when any
// rule rejects the event or it was a duplicate; the zero AdmittedMessage is
// returned in that case.
func (a *Admitter) Admit(ev TextEvent) (AdmittedMessage, bool) {
	cfg := a.snapshot()

	if ev.ChannelID != cfg.TargetChannelID {
		return AdmittedMessage{}, false
	}

	if ev.AuthorIsAutomated {
		if !cfg.EnableSelfMessageProcessing || ev.AuthorID != cfg.OwnAuthorID {
			return AdmittedMessage{}, false
		}
	}

	if ev.Kind != MessageKindDefault {
		return AdmittedMessage{}, false
	}

	trimmed := strings.TrimSpace(ev.Content)
	if trimmed == "" {
		return AdmittedMessage{}, false
	}

	if startsWithRejectedPrefix(trimmed) {
		return AdmittedMessage{}, false
	}

	now := a.nowFn()
	if !a.rate.allow(ev.AuthorID, now) {
		return AdmittedMessage{}, false
	}

	if len(ev.Content) > cfg.MaxMessageLength {
		return AdmittedMessage{}, false
	}

	sanitized := sanitize(ev.Content)
	hash := contentHash(sanitized)
	if a.dedup.checkAndRecord(sanitized, hash) {
		return AdmittedMessage{}, false
	}

	return AdmittedMessage{
		GroupID:           uuid.NewString(),
		AuthorID:          ev.AuthorID,
		AuthorDisplayName: ev.AuthorDisplayName,
		SanitizedText:     sanitized,
		Chunks:            chunk(sanitized, cfg.ChunkLimit),
		ContentHash:       hash,
	}, true
}

func startsWithRejectedPrefix(s string) bool {
	r := []rune(s)
	if len(r) == 0 {
		return false
	}
	for _, p := range rejectedPrefixes {
		if r[0] == p {
			return true
		}
	}
	return false
}

