package healthmonitor

import (
	"sync"
	"time"
)

// Termination thresholds from the voice-disconnect failure ledger.
const (
	disconnectThreshold10m = 5
	disconnectWindow10m    = 10 * time.Minute

	disconnectThreshold30m = 10
	disconnectWindow30m    = 30 * time.Minute

	disconnectThreshold1h = 20
	disconnectWindow1h    = time.Hour

	// ttsOutageThreshold is the longest tolerated run of consecutive TTS
	// probe failures before termination is triggered.
	ttsOutageThreshold = 900 * time.Second
)

// FailureLedger tracks the sliding-window counters the termination policy
// evaluates: recent voice disconnects, and how long the TTS API has been
// consecutively unreachable.
type FailureLedger struct {
	mu sync.Mutex

	disconnects []time.Time

	ttsFirstFailure time.Time
	ttsFailing      bool
}

// NewFailureLedger returns an empty ledger.
func NewFailureLedger() *FailureLedger {
	return &FailureLedger{}
}

// RecordVoiceDisconnect appends a disconnect event at now and prunes
// entries older than the widest window tracked (1h).
func (l *FailureLedger) RecordVoiceDisconnect(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.disconnects = append(l.disconnects, now)
	cutoff := now.Add(-disconnectWindow1h)
	kept := l.disconnects[:0:0]
	for _, t := range l.disconnects {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.disconnects = kept
}

// RecordTTSFailure marks the TTS API as failing at now, starting the
// consecutive-outage clock if it wasn't already failing.
func (l *FailureLedger) RecordTTSFailure(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ttsFailing {
		l.ttsFailing = true
		l.ttsFirstFailure = now
	}
}

// RecordTTSSuccess clears the consecutive-outage clock.
func (l *FailureLedger) RecordTTSSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ttsFailing = false
}

// disconnectCounts returns how many disconnects fall within each of the
// three tracked windows, as of now.
func (l *FailureLedger) disconnectCounts(now time.Time) (in10m, in30m, in1h int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c10 := now.Add(-disconnectWindow10m)
	c30 := now.Add(-disconnectWindow30m)
	c1h := now.Add(-disconnectWindow1h)
	for _, t := range l.disconnects {
		if t.After(c1h) {
			in1h++
		}
		if t.After(c30) {
			in30m++
		}
		if t.After(c10) {
			in10m++
		}
	}
	return
}

// ttsOutageDuration returns how long the TTS API has been consecutively
// unreachable, or 0 if it is currently healthy.
func (l *FailureLedger) ttsOutageDuration(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ttsFailing {
		return 0
	}
	return now.Sub(l.ttsFirstFailure)
}

// ShouldTerminate evaluates the termination policy against the current
// ledger state as of now, returning a human-readable reason when it fires.
func (l *FailureLedger) ShouldTerminate(now time.Time) (reason string, terminate bool) {
	in10m, in30m, in1h := l.disconnectCounts(now)
	switch {
	case in10m >= disconnectThreshold10m:
		return "voice disconnects exceeded 5 in 10 minutes", true
	case in30m >= disconnectThreshold30m:
		return "voice disconnects exceeded 10 in 30 minutes", true
	case in1h >= disconnectThreshold1h:
		return "voice disconnects exceeded 20 in 1 hour", true
	}

	if d := l.ttsOutageDuration(now); d >= ttsOutageThreshold {
		return "TTS API unavailable for 900+ consecutive seconds", true
	}
	return "", false
}
