package relaybot

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rokurolize/ttsrelay/internal/admission"
	"github.com/Rokurolize/ttsrelay/internal/config"
	"github.com/Rokurolize/ttsrelay/internal/synthpipeline"
)

// onReady fires once the gateway handshake completes. It records the
// bot's own author id (needed by admission's self-message rule) and
// unblocks [Orchestrator.Run]'s wait for readiness.
func (o *Orchestrator) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		o.setOwnAuthorID(r.User.ID)
		o.admitter.UpdateConfig(admission.Config{
			TargetChannelID:             o.cfg.TargetVoiceChannelID,
			EnableSelfMessageProcessing: o.cfg.EnableSelfMessageProcessing,
			OwnAuthorID:                 r.User.ID,
			RateLimitMessages:           o.cfg.RateLimitMessages,
			RateLimitPeriod:             o.cfg.RateLimitPeriod,
			MaxMessageLength:            o.cfg.MaxMessageLength,
			ChunkLimit:                  config.DefaultChunkLimit,
		})
	}

	if o.cfg.TargetVoiceChannelID != "" {
		if ch, err := s.Channel(o.cfg.TargetVoiceChannelID); err == nil {
			o.transport.SetGuildID(ch.GuildID)
			o.bot.SetGuildID(ch.GuildID)
		} else {
			slog.Warn("relaybot: could not resolve target voice channel's guild", "err", err)
		}
	}

	o.readyOnce.Do(func() {
		slog.Info("relaybot: gateway ready", "session_id", r.SessionID)
		close(o.readyCh)
	})
}

// onMessageCreate is the C4/C5 admission path's entry point: it builds a
// TextEvent from the Service's message event, admits it through C4, and
// fans its chunks out onto the SynthesisQueue in index order.
func (o *Orchestrator) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}

	ev := admission.TextEvent{
		AuthorID:          m.Author.ID,
		AuthorDisplayName: displayName(m.Member, m.Author),
		AuthorIsAutomated: m.Author.Bot,
		ChannelID:         m.ChannelID,
		Content:           m.Content,
		CreatedAt:         messageTimestamp(m.Message),
		Kind:              messageKind(m.Type),
	}

	admitted, ok := o.admitter.Admit(ev)
	if !ok {
		o.counters.mu.Lock()
		o.counters.messagesRejected++
		o.counters.mu.Unlock()
		o.metrics.RecordMessageAdmitted(context.Background(), "rejected")
		return
	}

	o.counters.mu.Lock()
	o.counters.messagesAdmitted++
	o.counters.mu.Unlock()

	o.enqueueAdmittedMessage(admitted)
}

// enqueueAdmittedMessage is guarded by enqueueMu so a single admission's
// chunks land on SynthesisQueue contiguously, never interleaved with a
// concurrently admitted message (spec.md §5).
func (o *Orchestrator) enqueueAdmittedMessage(msg admission.AdmittedMessage) {
	o.enqueueMu.Lock()
	defer o.enqueueMu.Unlock()

	chunkCount := len(msg.Chunks)
	priority := synthpipeline.AssignPriority(msg.SanitizedText)
	for i, chunk := range msg.Chunks {
		job := synthpipeline.SynthesisJob{
			Text:              chunk,
			AuthorID:          msg.AuthorID,
			AuthorDisplayName: msg.AuthorDisplayName,
			GroupID:           msg.GroupID,
			ChunkIndex:        i,
			ChunkCount:        chunkCount,
			ContentHash:       msg.ContentHash,
			Priority:          priority,
		}
		if !o.synthJobs.TryPut(job) {
			o.synthJobs.DrainGroup(msg.GroupID)
			slog.Warn("relaybot: synthesis queue full, dropping message",
				"group_id", msg.GroupID, "chunk_index", i, "chunk_count", chunkCount)
			return
		}
	}
	o.metrics.RecordMessageAdmitted(context.Background(), "admitted")
}

// onVoiceStateUpdate forwards session-id updates to C6 and detects an
// external disconnection (before-channel non-null, after-channel null) on
// the bot's own voice state, per spec.md §4.6.
func (o *Orchestrator) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}

	o.session.HandleVoiceStateUpdate(v.SessionID)

	beforeChannel := ""
	if v.BeforeUpdate != nil {
		beforeChannel = v.BeforeUpdate.ChannelID
	}
	afterChannel := v.ChannelID

	if beforeChannel != "" && afterChannel == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		o.session.HandleExternalDisconnect(ctx, beforeChannel, afterChannel)
	}
}

// onVoiceServerUpdate records the voice endpoint for diagnostics.
func (o *Orchestrator) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	o.session.HandleVoiceServerUpdate(v.Token, v.GuildID, v.Endpoint)
}

// onDisconnect logs a gateway-level disconnect. discordgo reconnects the
// gateway itself; only voice-transport disconnects go through C6.
func (o *Orchestrator) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	slog.Warn("relaybot: gateway disconnected")
}

// onResumed logs a successful gateway session resume.
func (o *Orchestrator) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	slog.Info("relaybot: gateway session resumed")
}

// onRateLimit is the closest discordgo analogue to spec.md's generic
// "error" subscription: gateway/API throttling the governor didn't already
// catch (e.g. a non-TTS REST call).
func (o *Orchestrator) onRateLimit(_ *discordgo.Session, rl *discordgo.RateLimit) {
	slog.Warn("relaybot: Service rate limit", "bucket", rl.Bucket, "retry_after", rl.RetryAfter)
	o.counters.mu.Lock()
	o.counters.errors++
	o.counters.mu.Unlock()
}

func displayName(member *discordgo.Member, author *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if author != nil {
		if author.GlobalName != "" {
			return author.GlobalName
		}
		return author.Username
	}
	return ""
}

func messageTimestamp(m *discordgo.Message) time.Time {
	if !m.Timestamp.IsZero() {
		return m.Timestamp
	}
	return time.Now()
}

func messageKind(t discordgo.MessageType) admission.MessageKind {
	if t == discordgo.MessageTypeDefault || t == discordgo.MessageTypeReply {
		return admission.MessageKindDefault
	}
	return admission.MessageKindSystem
}
