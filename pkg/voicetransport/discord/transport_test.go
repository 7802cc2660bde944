package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/Rokurolize/ttsrelay/internal/audiodecoder"
	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
)

func newTestSession(t *testing.T, guildID string, channels ...*discordgo.Channel) *discordgo.Session {
	t.Helper()
	s := &discordgo.Session{State: discordgo.NewState()}
	if err := s.State.GuildAdd(&discordgo.Guild{ID: guildID}); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	for _, ch := range channels {
		ch.GuildID = guildID
		if err := s.State.ChannelAdd(ch); err != nil {
			t.Fatalf("ChannelAdd: %v", err)
		}
	}
	return s
}

func TestTransport_ChannelKind_Voice(t *testing.T) {
	const guildID, channelID = "guild-1", "chan-voice"
	s := newTestSession(t, guildID, &discordgo.Channel{ID: channelID, Type: discordgo.ChannelTypeGuildVoice})

	tr := New(s, guildID, audiodecoder.New(48000, 2))
	kind, err := tr.ChannelKind(channelID)
	if err != nil {
		t.Fatalf("ChannelKind: %v", err)
	}
	if kind != voicetransport.ChannelKindVoice {
		t.Errorf("kind = %v, want ChannelKindVoice", kind)
	}
}

func TestTransport_ChannelKind_Stage(t *testing.T) {
	const guildID, channelID = "guild-1", "chan-stage"
	s := newTestSession(t, guildID, &discordgo.Channel{ID: channelID, Type: discordgo.ChannelTypeGuildStageVoice})

	tr := New(s, guildID, audiodecoder.New(48000, 2))
	kind, err := tr.ChannelKind(channelID)
	if err != nil {
		t.Fatalf("ChannelKind: %v", err)
	}
	if kind != voicetransport.ChannelKindStage {
		t.Errorf("kind = %v, want ChannelKindStage", kind)
	}
}

func TestTransport_DisconnectedDefaults(t *testing.T) {
	s := newTestSession(t, "guild-1")
	tr := New(s, "guild-1", audiodecoder.New(48000, 2))

	if tr.IsConnected() {
		t.Error("IsConnected() = true, want false before any Connect")
	}
	if got := tr.CurrentChannelID(); got != "" {
		t.Errorf("CurrentChannelID() = %q, want empty", got)
	}
	if tr.IsPlaying() {
		t.Error("IsPlaying() = true, want false before any Play")
	}
}

func TestTransport_HealthProbe_ReportsIssuesWhenDisconnected(t *testing.T) {
	s := newTestSession(t, "guild-1")
	tr := New(s, "guild-1", audiodecoder.New(48000, 2))

	h := tr.HealthProbe()
	if h.ClientExists {
		t.Error("ClientExists = true, want false")
	}
	if len(h.Issues) == 0 {
		t.Error("expected at least one issue when no client exists")
	}
	if len(h.Recommendations) == 0 {
		t.Error("expected at least one recommendation when no client exists")
	}
}

func TestTransport_Move_FailsWithoutConnection(t *testing.T) {
	s := newTestSession(t, "guild-1")
	tr := New(s, "guild-1", audiodecoder.New(48000, 2))

	if err := tr.Move(nil, "some-channel"); err == nil { //nolint:staticcheck // nil ctx unused on this error path
		t.Error("expected error moving without an active connection")
	}
}

func TestTransport_Disconnect_IdempotentWhenNeverConnected(t *testing.T) {
	s := newTestSession(t, "guild-1")
	tr := New(s, "guild-1", audiodecoder.New(48000, 2))

	if err := tr.Disconnect(nil); err != nil { //nolint:staticcheck // nil ctx unused on this error path
		t.Errorf("Disconnect() on never-connected transport = %v, want nil", err)
	}
}
