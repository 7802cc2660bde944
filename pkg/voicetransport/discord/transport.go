// Package discord implements [voicetransport.Transport] over a
// bwmarrin/discordgo session: it joins/moves/leaves a single voice or stage
// channel and streams one synthesized clip at a time as Opus frames.
//
// Unlike the teacher's multi-participant [pkg/audio/discord] adapter, this
// transport never receives or demuxes incoming audio — the relay only ever
// speaks, it never listens.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rokurolize/ttsrelay/internal/audiodecoder"
	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
)

// sendTimeout bounds how long a single Opus frame write may block on
// vc.OpusSend before the transport gives up and reports a playback error.
const sendTimeout = 2 * time.Second

// Transport implements [voicetransport.Transport] over a discordgo.Session.
// Safe for concurrent use; Play/Stop coordinate through an internal mutex
// and a cancelable playback context.
type Transport struct {
	session *discordgo.Session
	guildID string
	decoder *audiodecoder.Decoder

	mu            sync.Mutex
	vc            *discordgo.VoiceConnection
	channelID     string
	playing       bool
	cancelPlay    context.CancelFunc
}

// New builds a Transport over session for guildID, decoding synthesized
// clips through decoder before Opus-encoding them.
func New(session *discordgo.Session, guildID string, decoder *audiodecoder.Decoder) *Transport {
	return &Transport{
		session: session,
		guildID: guildID,
		decoder: decoder,
	}
}

var _ voicetransport.Transport = (*Transport)(nil)

// SetGuildID updates the guild Connect/Move/Unsuppress target. Used once
// the target channel's guild is resolved from gateway state, since New is
// called before that lookup is possible.
func (t *Transport) SetGuildID(guildID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.guildID = guildID
}

// Connect joins channelID, treating an existing connection to a different
// channel as a fresh connect per the Transport interface contract.
func (t *Transport) Connect(_ context.Context, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.vc != nil && t.vc.ChannelID == channelID {
		return nil
	}
	if t.vc != nil {
		_ = t.vc.Disconnect()
		t.vc = nil
	}

	vc, err := t.session.ChannelVoiceJoin(t.guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("voicetransport/discord: join channel %s: %w", channelID, err)
	}
	t.vc = vc
	t.channelID = channelID
	return nil
}

// Move transitions the existing connection to channelID.
func (t *Transport) Move(_ context.Context, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.vc == nil {
		return fmt.Errorf("voicetransport/discord: move requested with no active connection")
	}
	// discordgo re-joins in place when called again for the same guild with
	// a different channel, updating the existing VoiceConnection rather
	// than creating a second one.
	vc, err := t.session.ChannelVoiceJoin(t.guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("voicetransport/discord: move to channel %s: %w", channelID, err)
	}
	t.vc = vc
	t.channelID = channelID
	return nil
}

// Disconnect tears down the connection. Idempotent.
func (t *Transport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.vc == nil {
		return nil
	}
	err := t.vc.Disconnect()
	t.vc = nil
	t.channelID = ""
	if err != nil {
		return fmt.Errorf("voicetransport/discord: disconnect: %w", err)
	}
	return nil
}

// Unsuppress requests speaking permission on a stage channel via a raw PATCH
// to the current user's voice state, since discordgo has no typed helper
// for the stage "request to speak" flow.
func (t *Transport) Unsuppress(_ context.Context) error {
	t.mu.Lock()
	guildID := t.guildID
	channelID := t.channelID
	t.mu.Unlock()

	if channelID == "" {
		return fmt.Errorf("voicetransport/discord: unsuppress requested with no active channel")
	}

	kind, err := t.channelKindLocked(channelID)
	if err != nil {
		return err
	}
	if kind != voicetransport.ChannelKindStage {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	body, err := json.Marshal(map[string]any{
		"channel_id":                 channelID,
		"suppress":                   false,
		"request_to_speak_timestamp": now,
	})
	if err != nil {
		return fmt.Errorf("voicetransport/discord: marshal unsuppress body: %w", err)
	}

	endpoint := discordgo.EndpointAPI + "guilds/" + guildID + "/voice-states/@me"
	if _, err := t.session.Request(http.MethodPatch, endpoint, body); err != nil {
		return fmt.Errorf("voicetransport/discord: unsuppress request: %w", err)
	}
	return nil
}

// IsConnected reports whether a live voice connection is established.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vc != nil && t.vc.Ready
}

// CurrentChannelID returns the channel currently connected to, or "".
func (t *Transport) CurrentChannelID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

// ChannelKind reports whether channelID is an ordinary voice channel or a
// stage channel.
func (t *Transport) ChannelKind(channelID string) (voicetransport.ChannelKind, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelKindLocked(channelID)
}

func (t *Transport) channelKindLocked(channelID string) (voicetransport.ChannelKind, error) {
	ch, err := t.session.State.Channel(channelID)
	if err != nil || ch == nil {
		ch, err = t.session.Channel(channelID)
		if err != nil {
			return 0, fmt.Errorf("voicetransport/discord: resolve channel %s: %w", channelID, err)
		}
	}
	if ch.Type == discordgo.ChannelTypeGuildStageVoice {
		return voicetransport.ChannelKindStage, nil
	}
	return voicetransport.ChannelKindVoice, nil
}

// Play decodes wavBytes via the configured external decoder, Opus-encodes
// the resulting PCM, and streams it over the voice connection's OpusSend
// channel one 20 ms frame at a time.
func (t *Transport) Play(ctx context.Context, wavBytes []byte) error {
	t.mu.Lock()
	vc := t.vc
	if vc == nil {
		t.mu.Unlock()
		return fmt.Errorf("voicetransport/discord: play requested with no active connection")
	}
	playCtx, cancel := context.WithCancel(ctx)
	t.cancelPlay = cancel
	t.playing = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.playing = false
		t.cancelPlay = nil
		t.mu.Unlock()
	}()

	pcm, err := t.decoder.Decode(playCtx, wavBytes)
	if err != nil {
		return fmt.Errorf("voicetransport/discord: decode clip: %w", err)
	}

	enc, err := newOpusEncoder()
	if err != nil {
		return err
	}

	if err := vc.Speaking(true); err != nil {
		slog.Warn("voicetransport/discord: speaking(true) failed", "err", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			slog.Warn("voicetransport/discord: speaking(false) failed", "err", err)
		}
	}()

	buf := bytes.NewBuffer(pcm)
	frame := make([]byte, opusFrameBytes)
	for {
		select {
		case <-playCtx.Done():
			return playCtx.Err()
		default:
		}

		n, readErr := buf.Read(frame)
		if n == 0 {
			return nil
		}
		if n < opusFrameBytes {
			// Pad the final partial frame with silence.
			for i := n; i < opusFrameBytes; i++ {
				frame[i] = 0
			}
		}

		opusBytes, encErr := enc.encode(frame)
		if encErr != nil {
			return encErr
		}

		select {
		case vc.OpusSend <- opusBytes:
		case <-playCtx.Done():
			return playCtx.Err()
		case <-time.After(sendTimeout):
			return fmt.Errorf("voicetransport/discord: opus send timed out")
		}

		if readErr != nil {
			return nil
		}
	}
}

// Stop halts any playback currently in flight.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelPlay != nil {
		t.cancelPlay()
	}
}

// IsPlaying reports whether Play is currently streaming audio.
func (t *Transport) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// HealthProbe reports the transport's current self-assessed health.
func (t *Transport) HealthProbe() voicetransport.Health {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := voicetransport.Health{
		ClientExists: t.vc != nil,
	}
	if t.vc != nil {
		h.ClientConnected = t.vc.Ready
	}

	if t.channelID != "" {
		if kind, err := t.channelKindLocked(t.channelID); err != nil {
			h.Issues = append(h.Issues, "channel not accessible: "+err.Error())
		} else {
			h.ChannelAccessible = true
			if kind == voicetransport.ChannelKindStage && t.vc != nil && t.vc.Ready {
				h.AudioPlaybackReady = true
			} else if kind == voicetransport.ChannelKindVoice && t.vc != nil && t.vc.Ready {
				h.AudioPlaybackReady = true
			}
		}
	}

	if !h.ClientExists {
		h.Issues = append(h.Issues, "no voice client established")
		h.Recommendations = append(h.Recommendations, "reconnect to the target voice channel")
	} else if !h.ClientConnected {
		h.Issues = append(h.Issues, "voice client not ready")
		h.Recommendations = append(h.Recommendations, "wait for voice handshake or force a reconnect")
	}

	return h
}
