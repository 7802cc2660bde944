// Package relaybot wires every component into a running bot: it owns
// construction order, Service event subscription, the status snapshot, and
// shutdown sequencing.
package relaybot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/Rokurolize/ttsrelay/internal/admission"
	"github.com/Rokurolize/ttsrelay/internal/audiodecoder"
	"github.com/Rokurolize/ttsrelay/internal/config"
	"github.com/Rokurolize/ttsrelay/internal/discord"
	"github.com/Rokurolize/ttsrelay/internal/governor"
	"github.com/Rokurolize/ttsrelay/internal/healthmonitor"
	"github.com/Rokurolize/ttsrelay/internal/observe"
	"github.com/Rokurolize/ttsrelay/internal/speakerrouter"
	"github.com/Rokurolize/ttsrelay/internal/synthpipeline"
	"github.com/Rokurolize/ttsrelay/internal/ttsengine"
	"github.com/Rokurolize/ttsrelay/internal/voicesession"
	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
	discordtransport "github.com/Rokurolize/ttsrelay/pkg/voicetransport/discord"
)

const (
	audioBufferCap      = 16 << 20 // 16 MiB total buffered PCM/WAV bytes
	perArtifactCap      = 4 << 20  // 4 MiB per clip
	preferenceStoreFile = "voice_preferences.json"
	opusSampleRate      = 48000
	opusChannels        = 2
)

// Status is the get_status() snapshot: voice session state, playback
// activity, queue sizes, message/chunk counters, error counters, uptime,
// and round-trip latency to the Service.
type Status struct {
	VoiceState       string
	VoiceChannelID   string
	PlaybackActive   bool
	CurrentGroupID   string
	SynthesisQueued  int
	AudioQueued      int
	AudioBufferBytes int
	MessagesAdmitted int64
	MessagesRejected int64
	ChunksSynthesized int64
	ChunksPlayed     int64
	Errors           int64
	Uptime           time.Duration
	RoundTripP50     time.Duration
	RoundTripP95     time.Duration
	Healthy          bool
	HealthIssues     []string
}

// counters are single-writer per field (each worker/handler increments its
// own), read with eventual consistency via atomic-free plain reads guarded
// by a single mutex — the counts are cheap and low-frequency enough that a
// shared lock beats per-field atomics for readability.
type counters struct {
	mu                sync.Mutex
	messagesAdmitted  int64
	messagesRejected  int64
	chunksSynthesized int64
	chunksPlayed      int64
	errors            int64
}

// Orchestrator owns every component's lifetime and wires Service gateway
// events to the pipeline.
type Orchestrator struct {
	cfg *config.Config

	bot       *discord.Bot
	gov       *governor.Governor
	tts       *ttsengine.Client
	router    *speakerrouter.Router
	admitter  *admission.Admitter
	synthJobs *synthpipeline.SynthesisQueue
	audio     *synthpipeline.AudioQueue
	synthW    *synthpipeline.SynthesizerWorker
	playerW   *synthpipeline.PlayerWorker
	transport *discordtransport.Transport
	session   *voicesession.Controller
	monitor   *healthmonitor.Monitor
	metrics   *observe.Metrics

	latency  *latencyTracker
	counters counters

	// enqueueMu serializes enqueueAdmittedMessage calls so one admission's
	// chunks land on SynthesisQueue contiguously (spec.md §5).
	enqueueMu sync.Mutex

	// ownAuthorIDMu guards ownAuthorID, set once in onReady and re-read by
	// ApplyConfigDiff so a hot reload never resets the self-message rule's
	// identity back to empty.
	ownAuthorIDMu sync.Mutex
	ownAuthorID   string

	startedAt time.Time

	readyOnce sync.Once
	readyCh   chan struct{}

	group *errgroup.Group
	gctx  context.Context
	stop  context.CancelFunc

	shutdownOnce sync.Once
}

// voiceFailureBridge forwards disconnect reports to a [healthmonitor.Monitor]
// assigned after the bridge is handed to [voicesession.New], breaking the
// C6/C7 construction cycle (C6 needs a reporter at construction; C7 needs
// C6 as its voice prober).
type voiceFailureBridge struct {
	monitor *healthmonitor.Monitor
}

func (b *voiceFailureBridge) ReportVoiceDisconnect() {
	if b.monitor != nil {
		b.monitor.ReportVoiceDisconnect()
	}
}

// New constructs every component in dependency order — governor, TTS
// client, speaker router, admission, pipeline, voice session, health
// monitor — and wires the Discord gateway, but does not open the
// connection or start any worker loop; call [Orchestrator.Run] for that.
func New(ctx context.Context, cfg *config.Config, dataDir string) (*Orchestrator, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("relaybot: invalid configuration: %w", err)
	}

	metrics := observe.DefaultMetrics()

	o := &Orchestrator{
		cfg:      cfg,
		metrics:  metrics,
		latency:  newLatencyTracker(100),
		readyCh:  make(chan struct{}),
	}

	// C1: rate governor, shared across TTS calls.
	o.gov = governor.New(governor.Config{
		Name:             "tts",
		RatePerSecond:    50,
		FailureThreshold: 5,
		RecoverySeconds:  60 * time.Second,
	}, governor.NewRealClock())

	// C2: TTS client.
	o.tts = ttsengine.New()

	// C3: speaker router.
	store, err := speakerrouter.OpenPreferenceStore(dataDir + "/" + preferenceStoreFile)
	if err != nil {
		return nil, fmt.Errorf("relaybot: open preference store: %w", err)
	}
	o.router = speakerrouter.New(store, cfg.TTSSpeaker)

	// C4: message admission, rate-limit tunables taken from the loaded config.
	o.admitter = admission.New(admission.Config{
		TargetChannelID:             cfg.TargetVoiceChannelID,
		EnableSelfMessageProcessing: cfg.EnableSelfMessageProcessing,
		RateLimitMessages:           cfg.RateLimitMessages,
		RateLimitPeriod:             cfg.RateLimitPeriod,
		MaxMessageLength:            cfg.MaxMessageLength,
		ChunkLimit:                  config.DefaultChunkLimit,
	})

	// C5: pipeline queues and synthesizer worker (the playback worker needs
	// the voice transport, wired below).
	o.synthJobs = synthpipeline.NewSynthesisQueue(cfg.MessageQueueSize)
	o.audio = synthpipeline.NewAudioQueue(audioBufferCap, perArtifactCap)
	o.synthW = synthpipeline.NewSynthesizerWorker(o.synthJobs, o.audio, o.tts, o.gov, o.router, synthpipeline.EngineConfig{
		CurrentEngineTag: cfg.TTSEngine,
		BaseURLs:         cfg.EngineURLs,
	})
	o.synthW.SetOnSynthesized(o.onChunkSynthesized)

	// Discord gateway: session created but not yet opened.
	bot, err := discord.New(ctx, discord.Config{Token: cfg.DiscordBotToken, GuildID: ""})
	if err != nil {
		return nil, fmt.Errorf("relaybot: create discord session: %w", err)
	}
	o.bot = bot

	decoder := audiodecoder.New(opusSampleRate, opusChannels)

	// C6: voice transport + session controller. The guild is resolved once
	// the target channel is known (from the "ready" handler, which has
	// session state available); until then Transport is built against an
	// empty guild ID and updated via SetGuildID.
	o.transport = discordtransport.New(bot.Session(), "", decoder)
	bridge := &voiceFailureBridge{}
	o.session = voicesession.New(o.transport, governor.NewRealClock(), cfg.TargetVoiceChannelID, bridge)

	o.playerW = synthpipeline.NewPlayerWorker(o.audio, o.transport, o.session, o.onPlaybackHalt)
	o.playerW.SetOnPlayed(o.onChunkPlayed)

	// C7: health monitor.
	perm := &permissionChecker{session: bot.Session(), channelID: cfg.TargetVoiceChannelID}
	engineURLs := make([]string, 0, len(cfg.EngineURLs))
	for _, u := range cfg.EngineURLs {
		engineURLs = append(engineURLs, u)
	}
	o.monitor = healthmonitor.New(healthmonitor.Config{
		EngineBaseURLs: engineURLs,
		TTS:            o.tts,
		Voice:          o.session,
		Permissions:    perm,
		OnTerminate:    o.onTerminate,
	})
	bridge.monitor = o.monitor

	o.registerHandlers()
	o.registerCommands()

	return o, nil
}

// registerHandlers wires the Service event subscriptions (ready, message,
// voice-state-update, voice-server-update, disconnect, resume) before the
// gateway connection opens.
func (o *Orchestrator) registerHandlers() {
	o.bot.AddHandler(o.onReady)
	o.bot.AddHandler(o.onMessageCreate)
	o.bot.AddHandler(o.onVoiceStateUpdate)
	o.bot.AddHandler(o.onVoiceServerUpdate)
	o.bot.AddHandler(o.onDisconnect)
	o.bot.AddHandler(o.onResumed)
	// discordgo has no generic "error" gateway event; gateway-level
	// throttling surfaces as RateLimit events instead, which is the
	// closest analogue to spec's "error" subscription.
	o.bot.AddHandler(o.onRateLimit)
}

// Run opens the gateway connection and blocks until ctx is canceled or a
// fatal condition (health-monitor termination, voice startup exhaustion)
// requests shutdown. It always attempts a clean [Orchestrator.Shutdown]
// before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.stop = cancel
	group, gctx := errgroup.WithContext(runCtx)
	o.group = group
	o.gctx = gctx

	if err := o.bot.Open(); err != nil {
		cancel()
		_ = o.Shutdown(context.Background())
		return fmt.Errorf("relaybot: open gateway: %w", err)
	}

	select {
	case <-o.readyCh:
	case <-runCtx.Done():
		return o.Shutdown(context.Background())
	}

	o.startedAt = time.Now()

	if err := o.session.StartupConnect(gctx); err != nil {
		slog.Error("relaybot: voice startup failed, shutting down", "err", err)
		cancel()
		_ = o.Shutdown(context.Background())
		return fmt.Errorf("relaybot: voice startup: %w", err)
	}

	group.Go(func() error { return o.synthW.Run(gctx) })
	group.Go(func() error { return o.playerW.Run(gctx) })
	group.Go(func() error { return o.monitor.Run(gctx) })

	if err := o.bot.RegisterCommands(); err != nil {
		slog.Warn("relaybot: failed to register slash commands", "err", err)
	}

	_ = o.bot.Session().UpdateGameStatus(0, "listening to chat")

	<-gctx.Done()
	return o.Shutdown(context.Background())
}

// ApplyConfigDiff applies a hot-reloaded configuration's tunables to the
// running admission path: rate-limit window and max message length (the
// chunk limit stays at [config.DefaultChunkLimit]). It is
// the callback target for a [config.Watcher] started against an optional
// YAML override file; fields outside admission (Service token, target
// channel, engine wiring) are intentionally not touched here, matching
// [config.Diff]'s restart-required boundary.
func (o *Orchestrator) ApplyConfigDiff(newCfg *config.Config, diff config.Diff) {
	if diff.RateLimitChanged || diff.MaxMessageLengthChanged {
		o.admitter.UpdateConfig(admission.Config{
			TargetChannelID:             o.cfg.TargetVoiceChannelID,
			EnableSelfMessageProcessing: o.cfg.EnableSelfMessageProcessing,
			OwnAuthorID:                 o.ownAuthorIDSnapshot(),
			RateLimitMessages:           newCfg.RateLimitMessages,
			RateLimitPeriod:             newCfg.RateLimitPeriod,
			MaxMessageLength:            newCfg.MaxMessageLength,
			ChunkLimit:                  config.DefaultChunkLimit,
		})
		slog.Info("relaybot: applied hot-reloaded admission config",
			"rate_limit_messages", newCfg.RateLimitMessages,
			"rate_limit_period", newCfg.RateLimitPeriod,
			"max_message_length", newCfg.MaxMessageLength,
		)
	}
	if diff.LogLevelChanged {
		slog.Warn("relaybot: LOG_LEVEL changed in reloaded config; restart to take effect")
	}
}

// setOwnAuthorID records the bot's own author id once it is known from the
// "ready" event, for ApplyConfigDiff to reapply on every hot reload.
func (o *Orchestrator) setOwnAuthorID(id string) {
	o.ownAuthorIDMu.Lock()
	defer o.ownAuthorIDMu.Unlock()
	o.ownAuthorID = id
}

func (o *Orchestrator) ownAuthorIDSnapshot() string {
	o.ownAuthorIDMu.Lock()
	defer o.ownAuthorIDMu.Unlock()
	return o.ownAuthorID
}

// onChunkSynthesized is invoked by the synthesizer worker once per artifact
// successfully enqueued to the audio queue.
func (o *Orchestrator) onChunkSynthesized() {
	o.counters.mu.Lock()
	o.counters.chunksSynthesized++
	o.counters.mu.Unlock()
	o.metrics.RecordChunkSynthesized(context.Background(), o.cfg.TTSEngine, "ok")
}

// onChunkPlayed is invoked by the playback worker once per artifact whose
// playback completes, per spec.md §4.5's "increments the played-count
// statistic".
func (o *Orchestrator) onChunkPlayed() {
	o.counters.mu.Lock()
	o.counters.chunksPlayed++
	o.counters.mu.Unlock()
	o.metrics.RecordChunkPlayed(context.Background(), "ok")
}

// onPlaybackHalt is invoked once the playback worker stops itself after too
// many consecutive errors.
func (o *Orchestrator) onPlaybackHalt() {
	o.counters.mu.Lock()
	o.counters.errors++
	o.counters.mu.Unlock()
	o.metrics.RecordChunkPlayed(context.Background(), "halted")
}

// onTerminate is the health monitor's termination handler: it stops the
// run loop so Run's deferred Shutdown sequence executes.
func (o *Orchestrator) onTerminate(reason string) {
	slog.Error("relaybot: termination policy fired, stopping", "reason", reason)
	if o.stop != nil {
		o.stop()
	}
}

// Shutdown stops the health monitor, drains and stops the pipeline
// workers, disconnects the voice session, and closes the gateway
// connection. Idempotent.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.shutdownOnce.Do(func() {
		slog.Info("relaybot: shutting down")

		if o.playerW != nil {
			o.playerW.Stop()
		}
		if o.synthW != nil {
			o.synthW.Stop()
		}
		if o.group != nil {
			_ = o.group.Wait()
		}

		if o.session != nil {
			if derr := o.session.Disconnect(ctx); derr != nil {
				slog.Warn("relaybot: voice disconnect error", "err", derr)
			}
		}

		if o.bot != nil {
			if cerr := o.bot.Close(); cerr != nil {
				err = cerr
			}
		}

		slog.Info("relaybot: shutdown complete")
	})
	return err
}

// SkipGroup removes every remaining chunk/artifact belonging to groupID
// from both pipeline queues and, if that group is the one currently
// playing, stops the active transport. Defaults to the currently-playing
// group when groupID is empty. Returns the total number of items removed,
// per spec.md §4.5.
func (o *Orchestrator) SkipGroup(groupID string) int {
	if groupID == "" {
		groupID = o.playerW.CurrentGroupID()
	}
	if groupID == "" {
		return 0
	}

	if o.playerW.CurrentGroupID() == groupID {
		o.transport.Stop()
	}

	drainedJobs := o.synthJobs.DrainGroup(groupID)
	removedArtifacts, _ := o.audio.SkipGroup(groupID)

	total := len(drainedJobs) + removedArtifacts
	slog.Info("relaybot: skipped group", "group_id", groupID, "removed", total)
	return total
}

// ClearAll drains both pipeline queues, disposing every queued artifact,
// and stops any active playback. Returns the total number of items
// removed, per spec.md §4.5.
func (o *Orchestrator) ClearAll() int {
	o.transport.Stop()

	jobs := o.synthJobs.DrainAll()
	artifacts := o.audio.DrainAll()

	total := len(jobs) + len(artifacts)
	slog.Info("relaybot: cleared all queued work", "removed", total)
	return total
}

// GetStatus returns the current aggregated snapshot.
func (o *Orchestrator) GetStatus() Status {
	o.counters.mu.Lock()
	c := o.counters
	c.mu = sync.Mutex{}
	o.counters.mu.Unlock()

	health := o.monitor.Status()
	pct := o.latency.percentiles()

	uptime := time.Duration(0)
	if !o.startedAt.IsZero() {
		uptime = time.Since(o.startedAt)
	}

	return Status{
		VoiceState:        o.session.State().String(),
		VoiceChannelID:    o.session.CurrentChannelID(),
		PlaybackActive:    o.transport.IsPlaying(),
		CurrentGroupID:    o.playerW.CurrentGroupID(),
		SynthesisQueued:   o.synthJobs.Len(),
		AudioQueued:       o.audio.Len(),
		AudioBufferBytes:  o.audio.BufferedBytes(),
		MessagesAdmitted:  c.messagesAdmitted,
		MessagesRejected:  c.messagesRejected,
		ChunksSynthesized: c.chunksSynthesized,
		ChunksPlayed:      c.chunksPlayed,
		Errors:            c.errors,
		Uptime:            uptime,
		RoundTripP50:      pct.P50,
		RoundTripP95:      pct.P95,
		Healthy:           health.Healthy,
		HealthIssues:      health.Issues,
	}
}

// permissionChecker reports missing critical voice permissions for the
// target channel, satisfying [healthmonitor.PermissionChecker].
type permissionChecker struct {
	session   *discordgo.Session
	channelID string
}

func (p *permissionChecker) CheckCriticalPermissions(_ context.Context) ([]string, error) {
	if p.channelID == "" {
		return nil, nil
	}
	perms, err := p.session.UserChannelPermissions(p.session.State.User.ID, p.channelID)
	if err != nil {
		return nil, fmt.Errorf("permissionChecker: %w", err)
	}

	var missing []string
	if perms&discordgo.PermissionVoiceConnect == 0 {
		missing = append(missing, "CONNECT")
	}
	if perms&discordgo.PermissionVoiceSpeak == 0 {
		missing = append(missing, "SPEAK")
	}
	if perms&discordgo.PermissionViewChannel == 0 {
		missing = append(missing, "VIEW_CHANNEL")
	}
	return missing, nil
}

func joinIssues(issues []string) string {
	return strings.Join(issues, "; ")
}
