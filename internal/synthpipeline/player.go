package synthpipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
)

const (
	maxConsecutiveErrors = 5
	playbackCeiling      = 5 * time.Minute
	playbackWaitTimeout  = 3 * time.Second
)

// VoiceSession is the subset of the voice session controller the player
// worker needs: whether a live connection is up to speak into.
type VoiceSession interface {
	IsConnected() bool
}

// OnHalt is invoked once the player worker stops itself after too many
// consecutive playback errors, letting the orchestrator react (e.g. flag
// the health monitor).
type OnHalt func()

// PlayerWorker pops the highest-priority artifact from AudioQueue and
// streams it through a [voicetransport.Transport], one clip at a time.
type PlayerWorker struct {
	queue     *AudioQueue
	transport voicetransport.Transport
	session   VoiceSession
	onHalt    OnHalt

	// onPlayed, if set, is invoked once per artifact whose playback actually
	// completed (not one skipped because the session was disconnected),
	// letting the orchestrator bump its chunks-played counter and metrics
	// per spec.md §4.5's "increments the played-count statistic". Set via
	// [PlayerWorker.SetOnPlayed] before [PlayerWorker.Run] starts.
	onPlayed func()

	done           chan struct{}
	currentGroupID string
}

// NewPlayerWorker wires a PlayerWorker over queue, transport, and session.
// onHalt may be nil.
func NewPlayerWorker(queue *AudioQueue, transport voicetransport.Transport, session VoiceSession, onHalt OnHalt) *PlayerWorker {
	return &PlayerWorker{
		queue:     queue,
		transport: transport,
		session:   session,
		onHalt:    onHalt,
		done:      make(chan struct{}),
	}
}

// Run pops and plays artifacts until ctx is canceled, Stop is called, or
// consecutive playback errors reach maxConsecutiveErrors.
func (p *PlayerWorker) Run(ctx context.Context) error {
	consecutiveErrors := 0

	for {
		artifact, ok := p.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.done:
				return nil
			case <-p.queue.Notify():
				continue
			case <-time.After(time.Second):
				continue
			}
		}

		if err := p.playOne(ctx, artifact); err != nil {
			consecutiveErrors++
			slog.Error("synthpipeline: playback error", "err", err,
				"group_id", artifact.GroupID, "chunk_index", artifact.ChunkIndex,
				"consecutive_errors", consecutiveErrors)
			if consecutiveErrors >= maxConsecutiveErrors {
				slog.Error("synthpipeline: too many consecutive playback errors, halting player")
				if p.onHalt != nil {
					p.onHalt()
				}
				return err
			}
			continue
		}
		consecutiveErrors = 0
	}
}

// SetOnPlayed installs a callback invoked once per artifact whose playback
// completes successfully. Call before Run starts.
func (p *PlayerWorker) SetOnPlayed(fn func()) {
	p.onPlayed = fn
}

// Stop requests the worker loop exit at its next opportunity.
func (p *PlayerWorker) Stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// CurrentGroupID returns the group id currently being played, or "" if
// idle. Used by /status and the skip/clear command handlers.
func (p *PlayerWorker) CurrentGroupID() string {
	return p.currentGroupID
}

func (p *PlayerWorker) playOne(ctx context.Context, artifact AudioArtifact) error {
	defer p.queue.Release(artifact.SizeBytes)

	if !p.session.IsConnected() {
		slog.Debug("synthpipeline: skipping playback, voice session not connected",
			"group_id", artifact.GroupID, "chunk_index", artifact.ChunkIndex)
		return nil
	}

	if p.transport.IsPlaying() {
		waited := time.Duration(0)
		for p.transport.IsPlaying() && waited < playbackWaitTimeout {
			time.Sleep(100 * time.Millisecond)
			waited += 100 * time.Millisecond
		}
		if p.transport.IsPlaying() {
			slog.Warn("synthpipeline: playback wait timed out, forcing stop",
				"group_id", artifact.GroupID)
			p.transport.Stop()
		}
	}

	p.currentGroupID = artifact.GroupID
	defer func() { p.currentGroupID = "" }()

	playCtx, cancel := context.WithTimeout(ctx, playbackCeiling)
	defer cancel()

	if err := p.transport.Play(playCtx, artifact.WAVBytes); err != nil {
		return err
	}
	if p.onPlayed != nil {
		p.onPlayed()
	}
	return nil
}
