package relaybot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/Rokurolize/ttsrelay/internal/discord"
)

func newTestOrchestratorForCommands(t *testing.T) *Orchestrator {
	t.Helper()
	bot, err := discord.New(context.Background(), discord.Config{Token: "test-token"})
	if err != nil {
		t.Fatalf("discord.New: %v", err)
	}
	return &Orchestrator{bot: bot}
}

func TestRegisterCommands_Definitions(t *testing.T) {
	t.Parallel()

	o := newTestOrchestratorForCommands(t)
	o.registerCommands()

	cmds := o.bot.Router().ApplicationCommands()
	names := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		names[c.Name] = true
	}

	for _, want := range []string{"status", "skip", "clear", "voice", "voicecheck"} {
		if !names[want] {
			t.Errorf("expected %q command to be registered, got %v", want, names)
		}
	}
}

func TestRegisterCommands_VoiceSetOptions(t *testing.T) {
	t.Parallel()

	o := newTestOrchestratorForCommands(t)
	o.registerCommands()

	var voiceCmd *discordgo.ApplicationCommand
	for _, c := range o.bot.Router().ApplicationCommands() {
		if c.Name == "voice" {
			voiceCmd = c
		}
	}
	if voiceCmd == nil {
		t.Fatal("voice command not registered")
	}
	if len(voiceCmd.Options) != 1 || voiceCmd.Options[0].Name != "set" {
		t.Fatalf("expected a single 'set' subcommand, got %+v", voiceCmd.Options)
	}

	setOpts := voiceCmd.Options[0].Options
	wantRequired := map[string]bool{"speaker_id": true, "speaker_name": true, "engine": false}
	if len(setOpts) != len(wantRequired) {
		t.Fatalf("voice set option count = %d, want %d", len(setOpts), len(wantRequired))
	}
	for _, opt := range setOpts {
		want, ok := wantRequired[opt.Name]
		if !ok {
			t.Errorf("unexpected option %q", opt.Name)
			continue
		}
		if opt.Required != want {
			t.Errorf("option %q Required = %v, want %v", opt.Name, opt.Required, want)
		}
	}
}

func TestStatusColor(t *testing.T) {
	t.Parallel()

	if got := statusColor(true); got != 0x2ecc71 {
		t.Errorf("statusColor(true) = %#x, want %#x", got, 0x2ecc71)
	}
	if got := statusColor(false); got != 0xe74c3c {
		t.Errorf("statusColor(false) = %#x, want %#x", got, 0xe74c3c)
	}
}
