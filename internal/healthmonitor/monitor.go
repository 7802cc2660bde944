// Package healthmonitor runs the periodic health and permission loops,
// maintains the failure ledger, and enforces the termination policy: when
// voice disconnects or TTS outages cross their thresholds, or a critical
// permission goes missing, it notifies the orchestrator and requests
// process termination.
package healthmonitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
)

const (
	healthLoopInterval     = 60 * time.Second
	permissionLoopInterval = 300 * time.Second
)

// TTSProber is the subset of the TTS client's liveness check the health
// loop needs. Implemented by [ttsengine.Client.Ping].
type TTSProber interface {
	Ping(ctx context.Context, baseURL string) string
}

// VoiceProber is the subset of the voice session controller's health
// status the health loop needs. Implemented by [voicesession.Controller].
type VoiceProber interface {
	HealthProbe() voicetransport.Health
}

// PermissionChecker reports which critical permissions (connect, speak,
// view) are missing for the target voice channel. Implemented by a
// Service-specific adapter.
type PermissionChecker interface {
	CheckCriticalPermissions(ctx context.Context) (missing []string, err error)
}

// TerminationHandler is invoked exactly once when the termination policy
// fires, so the orchestrator can clean up and exit.
type TerminationHandler func(reason string)

// HealthStatus is the health loop's published result, mirroring the
// interface field set: healthy, issues, recommendations, last_check, plus
// the failure counters driving the termination policy.
type HealthStatus struct {
	Healthy         bool
	Issues          []string
	Recommendations []string
	LastCheck       time.Time
	VoiceDisconnects10m int
	VoiceDisconnects30m int
	VoiceDisconnects1h  int
	TTSConsecutiveFailureSeconds float64
}

// Config wires a Monitor's dependencies.
type Config struct {
	EngineBaseURLs []string
	TTS            TTSProber
	Voice          VoiceProber
	Permissions    PermissionChecker
	OnTerminate    TerminationHandler
	Clock          Clock
}

// Clock abstracts wall-clock time so tests can drive the ledger without
// real sleeps. Implementations of [context.Context]-aware sleeps are not
// needed here since the loops use time.Ticker directly; only Now is used.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Monitor runs the health and permission loops and owns the failure
// ledger. Safe for concurrent use.
type Monitor struct {
	cfg    Config
	ledger *FailureLedger

	mu          sync.RWMutex
	lastStatus  HealthStatus
	terminated  bool
	terminateMu sync.Mutex
}

// New builds a Monitor from cfg. An empty cfg.Clock defaults to the real
// wall clock.
func New(cfg Config) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Monitor{
		cfg:    cfg,
		ledger: NewFailureLedger(),
	}
}

// ReportVoiceDisconnect records an externally-triggered voice
// disconnection. Satisfies [voicesession.FailureReporter].
func (m *Monitor) ReportVoiceDisconnect() {
	m.ledger.RecordVoiceDisconnect(m.cfg.Clock.Now())
}

// Status returns the most recently published [HealthStatus].
func (m *Monitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastStatus
}

// Run drives the health and permission loops until ctx is canceled.
// Intended to run in its own goroutine, coordinated via errgroup alongside
// the rest of the pipeline's workers.
func (m *Monitor) Run(ctx context.Context) error {
	healthTicker := time.NewTicker(healthLoopInterval)
	defer healthTicker.Stop()
	permissionTicker := time.NewTicker(permissionLoopInterval)
	defer permissionTicker.Stop()

	m.runHealthCheck(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-healthTicker.C:
			m.runHealthCheck(ctx)
		case <-permissionTicker.C:
			m.runPermissionCheck(ctx)
		}
	}
}

func (m *Monitor) runHealthCheck(ctx context.Context) {
	now := m.cfg.Clock.Now()
	status := HealthStatus{Healthy: true, LastCheck: now}

	m.probeTTS(ctx, now, &status)
	m.probeVoice(&status)
	m.probeCriticalPermissions(ctx, &status)

	in10, in30, in1h := m.ledger.disconnectCounts(now)
	status.VoiceDisconnects10m = in10
	status.VoiceDisconnects30m = in30
	status.VoiceDisconnects1h = in1h
	status.TTSConsecutiveFailureSeconds = m.ledger.ttsOutageDuration(now).Seconds()

	m.mu.Lock()
	m.lastStatus = status
	m.mu.Unlock()

	if reason, terminate := m.ledger.ShouldTerminate(now); terminate {
		m.terminate(reason)
	}
}

func (m *Monitor) probeTTS(ctx context.Context, now time.Time, status *HealthStatus) {
	if m.cfg.TTS == nil || len(m.cfg.EngineBaseURLs) == 0 {
		return
	}

	anyOK := false
	for _, base := range m.cfg.EngineBaseURLs {
		if m.cfg.TTS.Ping(ctx, base) == "ok" {
			anyOK = true
		}
	}

	if anyOK {
		m.ledger.RecordTTSSuccess()
		return
	}

	m.ledger.RecordTTSFailure(now)
	status.Healthy = false
	status.Issues = append(status.Issues, "TTS engine unreachable")
	status.Recommendations = append(status.Recommendations, "check TTS engine process and network path")
}

func (m *Monitor) probeVoice(status *HealthStatus) {
	if m.cfg.Voice == nil {
		return
	}
	h := m.cfg.Voice.HealthProbe()
	if len(h.Issues) > 0 {
		status.Healthy = false
	}
	status.Issues = append(status.Issues, h.Issues...)
	status.Recommendations = append(status.Recommendations, h.Recommendations...)
}

func (m *Monitor) probeCriticalPermissions(ctx context.Context, status *HealthStatus) {
	if m.cfg.Permissions == nil {
		return
	}
	missing, err := m.cfg.Permissions.CheckCriticalPermissions(ctx)
	if err != nil {
		status.Healthy = false
		status.Issues = append(status.Issues, "permission check failed: "+err.Error())
		return
	}
	if len(missing) > 0 {
		status.Healthy = false
		status.Issues = append(status.Issues, "missing critical permissions")
		status.Recommendations = append(status.Recommendations, "grant: "+joinComma(missing))
		m.terminate("missing critical permission(s): " + joinComma(missing))
	}
}

func (m *Monitor) runPermissionCheck(ctx context.Context) {
	if m.cfg.Permissions == nil {
		return
	}
	missing, err := m.cfg.Permissions.CheckCriticalPermissions(ctx)
	if err != nil {
		slog.Warn("healthmonitor: permission loop check failed", "err", err)
		return
	}
	if len(missing) > 0 {
		m.terminate("missing critical permission(s): " + joinComma(missing))
	}
}

// terminate runs the termination sequence exactly once.
func (m *Monitor) terminate(reason string) {
	m.terminateMu.Lock()
	defer m.terminateMu.Unlock()
	if m.terminated {
		return
	}
	m.terminated = true

	slog.Error("healthmonitor: termination policy triggered", "reason", reason)
	if m.cfg.OnTerminate != nil {
		m.cfg.OnTerminate(reason)
	}
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
