package relaybot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rokurolize/ttsrelay/internal/admission"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		member *discordgo.Member
		author *discordgo.User
		want   string
	}{
		{
			name:   "nickname wins",
			member: &discordgo.Member{Nick: "Nicky"},
			author: &discordgo.User{Username: "real-name", GlobalName: "Global"},
			want:   "Nicky",
		},
		{
			name:   "falls back to global name",
			member: &discordgo.Member{},
			author: &discordgo.User{Username: "real-name", GlobalName: "Global"},
			want:   "Global",
		},
		{
			name:   "falls back to username",
			member: nil,
			author: &discordgo.User{Username: "real-name"},
			want:   "real-name",
		},
		{
			name:   "no author",
			member: nil,
			author: nil,
			want:   "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := displayName(tc.member, tc.author); got != tc.want {
				t.Errorf("displayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMessageKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind discordgo.MessageType
		want admission.MessageKind
	}{
		{discordgo.MessageTypeDefault, admission.MessageKindDefault},
		{discordgo.MessageTypeReply, admission.MessageKindDefault},
		{discordgo.MessageTypeChannelPinnedMessage, admission.MessageKindSystem},
		{discordgo.MessageTypeGuildMemberJoin, admission.MessageKindSystem},
	}

	for _, tc := range cases {
		if got := messageKind(tc.kind); got != tc.want {
			t.Errorf("messageKind(%v) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestMessageTimestamp(t *testing.T) {
	t.Parallel()

	stamped := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &discordgo.Message{Timestamp: stamped}
	if got := messageTimestamp(m); !got.Equal(stamped) {
		t.Errorf("messageTimestamp() = %v, want %v", got, stamped)
	}

	zero := &discordgo.Message{}
	if got := messageTimestamp(zero); got.IsZero() {
		t.Error("messageTimestamp() with zero Message.Timestamp should fall back to time.Now, got zero value")
	}
}
