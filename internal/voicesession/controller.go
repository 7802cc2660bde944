// Package voicesession implements the voice connection lifecycle: connect,
// move, disconnect, reconnection with cool-down, and the startup retry
// policy, atop a [voicetransport.Transport].
package voicesession

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rokurolize/ttsrelay/internal/governor"
	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
)

// State is one of the voice session controller's lifecycle states.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	// ReconnectionCooldown is the minimum time between connect attempts.
	ReconnectionCooldown = 5 * time.Second
	// SettleDelay is how long Connect waits after establishing the
	// transport before re-checking its status.
	SettleDelay = 500 * time.Millisecond

	// StartupAttempts and StartupRetryDelay bound the orchestrator's
	// initial-connect retry policy.
	StartupAttempts   = 3
	StartupRetryDelay = 10 * time.Second
)

// FailureReporter is notified of externally-triggered voice disconnections
// so the health monitor's failure ledger can count them.
type FailureReporter interface {
	ReportVoiceDisconnect()
}

// Controller owns the voice connection lifecycle for the single target
// channel this process relays into. All state transitions are serialized
// through an internal mutex, matching the single-task ownership model
// described for the voice session in the concurrency design.
type Controller struct {
	transport voicetransport.Transport
	clock     governor.Clock
	reporter  FailureReporter

	mu                         sync.Mutex
	targetChannelID            string
	state                      State
	lastAttempt                time.Time
	currentChannelID           string
	endpoint                   string
	sessionID                  string
	reconnecting               bool
	consecutiveStartupFailures int
}

// New builds a Controller targeting targetChannelID over transport. clock
// may be nil, in which case the real wall clock is used. reporter may be
// nil if no failure ledger is wired (e.g. in tests).
func New(transport voicetransport.Transport, clock governor.Clock, targetChannelID string, reporter FailureReporter) *Controller {
	if clock == nil {
		clock = governor.NewRealClock()
	}
	return &Controller{
		transport:       transport,
		clock:           clock,
		targetChannelID: targetChannelID,
		reporter:        reporter,
		state:           StateDisconnected,
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the controller believes it is CONNECTED.
// Satisfies [synthpipeline.VoiceSession].
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// CurrentChannelID returns the channel currently connected to, or "".
func (c *Controller) CurrentChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentChannelID
}

// Connect establishes (or confirms) a connection to channelID, honoring the
// reconnection cool-down, move-vs-fresh-connect semantics, and the
// post-connect settle/re-check window.
func (c *Controller) Connect(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx, channelID)
}

func (c *Controller) connectLocked(ctx context.Context, channelID string) error {
	if since := c.clock.Now().Sub(c.lastAttempt); since < ReconnectionCooldown && !c.lastAttempt.IsZero() {
		if err := c.clock.Sleep(ctx, ReconnectionCooldown-since); err != nil {
			return err
		}
	}
	c.lastAttempt = c.clock.Now()

	kind, err := c.transport.ChannelKind(channelID)
	if err != nil {
		return fmt.Errorf("voicesession: resolve channel %s: %w", channelID, err)
	}

	if c.state == StateConnected && c.currentChannelID == channelID {
		return nil
	}

	c.state = StateConnecting

	if c.state != StateDisconnected && c.currentChannelID != "" && c.currentChannelID != channelID {
		if err := c.transport.Move(ctx, channelID); err != nil {
			slog.Warn("voicesession: move failed, falling back to fresh connect", "err", err)
			_ = c.transport.Disconnect(ctx)
			if err := c.transport.Connect(ctx, channelID); err != nil {
				c.state = StateDisconnected
				return fmt.Errorf("voicesession: connect after failed move: %w", err)
			}
		}
	} else if err := c.transport.Connect(ctx, channelID); err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("voicesession: connect: %w", err)
	}

	if err := c.clock.Sleep(ctx, SettleDelay); err != nil {
		return err
	}
	if !c.transport.IsConnected() {
		c.state = StateDisconnected
		return fmt.Errorf("voicesession: transport unstable after settle delay")
	}

	if kind == voicetransport.ChannelKindStage {
		if err := c.transport.Unsuppress(ctx); err != nil {
			slog.Warn("voicesession: unsuppress failed", "err", err)
		}
	}

	c.currentChannelID = channelID
	c.state = StateConnected
	return nil
}

// Disconnect tears down the connection. Best-effort and idempotent.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked(ctx)
}

func (c *Controller) disconnectLocked(ctx context.Context) error {
	err := c.transport.Disconnect(ctx)
	c.currentChannelID = ""
	c.state = StateDisconnected
	if err != nil {
		return fmt.Errorf("voicesession: disconnect: %w", err)
	}
	return nil
}

// HandleVoiceServerUpdate records the voice server endpoint for diagnostics,
// stripping a leading scheme if present.
func (c *Controller) HandleVoiceServerUpdate(_, _, endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := strings.Index(endpoint, "://"); idx >= 0 {
		endpoint = endpoint[idx+3:]
	}
	c.endpoint = endpoint
}

// HandleVoiceStateUpdate records the session id and, if the transport now
// reports connected, marks the controller CONNECTED.
func (c *Controller) HandleVoiceStateUpdate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	if c.transport.IsConnected() {
		c.state = StateConnected
	}
}

// HandleExternalDisconnect reacts to a Service voice-state event where
// beforeChannelID was non-empty and afterChannelID is empty — i.e. the bot
// was kicked from voice, or the channel was deleted out from under it. At
// most one reconnection attempt runs at a time.
func (c *Controller) HandleExternalDisconnect(ctx context.Context, beforeChannelID, afterChannelID string) {
	if beforeChannelID == "" || afterChannelID != "" {
		return
	}

	c.mu.Lock()
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.state = StateReconnecting
	reporter := c.reporter
	c.mu.Unlock()

	if reporter != nil {
		reporter.ReportVoiceDisconnect()
	}

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	c.mu.Lock()
	_ = c.disconnectLocked(ctx)
	err := c.connectLocked(ctx, c.targetChannelID)
	c.mu.Unlock()

	if err != nil {
		slog.Error("voicesession: reconnect after external disconnect failed", "err", err)
	}
}

// StartupConnect runs the orchestrator's initial-connect retry policy: up
// to [StartupAttempts] attempts spaced by [StartupRetryDelay]. Returns nil
// on the first success. After all attempts fail it returns the last error
// and increments the consecutive-startup-failures counter; callers should
// treat a non-nil error as fatal once that counter reaches
// [StartupAttempts].
func (c *Controller) StartupConnect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= StartupAttempts; attempt++ {
		if err := c.Connect(ctx, c.targetChannelID); err != nil {
			lastErr = err
			slog.Warn("voicesession: startup connect attempt failed", "attempt", attempt, "err", err)
			if attempt < StartupAttempts {
				if sleepErr := c.clock.Sleep(ctx, StartupRetryDelay); sleepErr != nil {
					return sleepErr
				}
			}
			continue
		}
		c.mu.Lock()
		c.consecutiveStartupFailures = 0
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.consecutiveStartupFailures++
	c.mu.Unlock()
	return fmt.Errorf("voicesession: startup connect failed after %d attempts: %w", StartupAttempts, lastErr)
}

// HealthProbe forwards the transport's self-assessed health, annotating it
// with a reconnecting-state issue when applicable.
func (c *Controller) HealthProbe() voicetransport.Health {
	h := c.transport.HealthProbe()

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == StateReconnecting {
		h.Issues = append(h.Issues, "voice session is reconnecting")
	}
	return h
}
