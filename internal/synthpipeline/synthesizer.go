package synthpipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Rokurolize/ttsrelay/internal/governor"
	"github.com/Rokurolize/ttsrelay/internal/speakerrouter"
)

// EngineConfig resolves the active TTS engine tag and the base URL to call
// for a given engine tag.
type EngineConfig struct {
	// CurrentEngineTag is the engine the orchestrator is presently
	// configured against (e.g. "voicevox" or "aivis").
	CurrentEngineTag string
	// BaseURLs maps an engine tag to its HTTP base URL.
	BaseURLs map[string]string
}

func (e EngineConfig) baseURL(tag string) (string, bool) {
	u, ok := e.BaseURLs[tag]
	return u, ok
}

// SynthesizerWorker drains SynthesisQueue, resolves each job's speaker via
// the speaker router, synthesizes audio through the TTS client, validates
// the result, and forwards it to AudioQueue. One instance runs per pipeline.
type SynthesizerWorker struct {
	jobs    *SynthesisQueue
	audio   *AudioQueue
	tts     *ttsengineClient
	gov     *governor.Governor
	router  *speakerrouter.Router
	engines EngineConfig

	// onSynthesized, if set, is invoked once per artifact successfully
	// enqueued to AudioQueue, letting the orchestrator bump its
	// chunks-synthesized counter and metrics (spec.md §4.5). Set via
	// [SynthesizerWorker.SetOnSynthesized] before [SynthesizerWorker.Run]
	// starts.
	onSynthesized func()

	done chan struct{}
}

// ttsengineClient is the subset of ttsengine.Client the synthesizer calls,
// narrowed to ease substitution of a fake engine in tests.
type ttsengineClient interface {
	SynthesizeText(ctx context.Context, gov *governor.Governor, baseURL, text string, speakerID int) ([]byte, bool)
}

// NewSynthesizerWorker wires a SynthesizerWorker over the given queues,
// TTS client, governor, speaker router, and engine configuration.
func NewSynthesizerWorker(jobs *SynthesisQueue, audio *AudioQueue, tts ttsengineClient, gov *governor.Governor, router *speakerrouter.Router, engines EngineConfig) *SynthesizerWorker {
	return &SynthesizerWorker{
		jobs:    jobs,
		audio:   audio,
		tts:     tts,
		gov:     gov,
		router:  router,
		engines: engines,
		done:    make(chan struct{}),
	}
}

// Run drains jobs until ctx is canceled or Stop is called. Intended to run
// in its own goroutine, coordinated via errgroup alongside the rest of the
// pipeline's workers.
func (w *SynthesizerWorker) Run(ctx context.Context) error {
	for {
		job, ok := w.jobs.TryTake()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.done:
				return nil
			case <-w.jobs.Notify():
				continue
			case <-time.After(time.Second):
				continue
			}
		}
		w.process(ctx, job)
	}
}

// SetOnSynthesized installs a callback invoked once per artifact
// successfully enqueued to AudioQueue. Call before Run starts.
func (w *SynthesizerWorker) SetOnSynthesized(fn func()) {
	w.onSynthesized = fn
}

// Stop requests the worker loop exit at its next opportunity.
func (w *SynthesizerWorker) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

func (w *SynthesizerWorker) process(ctx context.Context, job SynthesisJob) {
	if w.audio.BufferedBytes() >= w.audio.bufferCap {
		slog.Warn("synthpipeline: audio buffer full, dropping synthesis request",
			"group_id", job.GroupID, "chunk_index", job.ChunkIndex)
		return
	}

	engineTag := w.engines.CurrentEngineTag
	speakerID := 0
	if resolved := w.router.Resolve(job.AuthorID, engineTag); resolved != nil {
		speakerID = *resolved
	} else {
		speakerID = w.router.DefaultSpeaker(engineTag)
	}

	baseURL, ok := w.engines.baseURL(engineTag)
	if !ok {
		slog.Error("synthpipeline: no base URL configured for engine", "engine", engineTag)
		return
	}

	wavBytes, ok := w.tts.SynthesizeText(ctx, w.gov, baseURL, job.Text, speakerID)
	if !ok {
		slog.Warn("synthpipeline: synthesis failed", "group_id", job.GroupID, "chunk_index", job.ChunkIndex)
		return
	}

	if err := gateAudioFormat(wavBytes); err != nil {
		slog.Error("synthpipeline: rejecting synthesized audio", "err", err,
			"group_id", job.GroupID, "chunk_index", job.ChunkIndex)
		return
	}

	sizeBytes := len(wavBytes)
	if sizeBytes > w.audio.perArtifactCap {
		slog.Warn("synthpipeline: synthesized clip exceeds per-artifact cap, dropping",
			"group_id", job.GroupID, "chunk_index", job.ChunkIndex, "size_bytes", sizeBytes)
		return
	}

	artifact := AudioArtifact{
		WAVBytes:   wavBytes,
		GroupID:    job.GroupID,
		ChunkIndex: job.ChunkIndex,
		Priority:   job.Priority,
		SizeBytes:  sizeBytes,
	}
	if !w.audio.TryEnqueue(artifact) {
		slog.Warn("synthpipeline: audio queue rejected artifact, buffer at capacity",
			"group_id", job.GroupID, "chunk_index", job.ChunkIndex)
		return
	}

	if w.onSynthesized != nil {
		w.onSynthesized()
	}
}
