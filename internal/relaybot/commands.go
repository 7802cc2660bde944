package relaybot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rokurolize/ttsrelay/internal/discord"
	"github.com/Rokurolize/ttsrelay/internal/ttsengine"
)

// registerCommands wires the user-visible slash-command surface: /status
// (snapshot embed), /skip and /clear (pipeline control), and /voice set
// (per-author speaker preference), per spec.md §6's "text replies to
// commands" outbound interface.
func (o *Orchestrator) registerCommands() {
	router := o.bot.Router()

	router.RegisterCommand("status", &discordgo.ApplicationCommand{
		Name:        "status",
		Description: "Show the relay's current voice session, queue, and counter snapshot",
	}, o.handleStatus)

	router.RegisterCommand("skip", &discordgo.ApplicationCommand{
		Name:        "skip",
		Description: "Skip the currently playing (or given) message group",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "group_id",
				Description: "Group id to skip; defaults to the one currently playing",
				Required:    false,
			},
		},
	}, o.handleSkip)

	router.RegisterCommand("clear", &discordgo.ApplicationCommand{
		Name:        "clear",
		Description: "Clear all queued synthesis and playback work",
	}, o.handleClear)

	router.RegisterCommand("voice", &discordgo.ApplicationCommand{
		Name:        "voice",
		Description: "Manage your text-to-speech voice preference",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Set your preferred speaker",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "speaker_id",
						Description: "Numeric speaker id from the active TTS engine",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "speaker_name",
						Description: "Display name for the speaker",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "engine",
						Description: "TTS engine tag the speaker id belongs to (default: inferred)",
						Required:    false,
					},
				},
			},
		},
	}, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		// /voice has no top-level action; Discord always sends a subcommand.
	})
	router.RegisterHandler("voice/set", o.handleVoiceSet)

	router.RegisterCommand("voicecheck", &discordgo.ApplicationCommand{
		Name:        "voicecheck",
		Description: "Ping every configured TTS engine and report reachability",
	}, o.handleVoiceCheck)
}

func (o *Orchestrator) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	status := o.GetStatus()

	playback := "idle"
	if status.PlaybackActive {
		playback = fmt.Sprintf("playing (group %s)", status.CurrentGroupID)
	}

	embed := &discordgo.MessageEmbed{
		Title: "ttsrelay status",
		Color: statusColor(status.Healthy),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Voice session", Value: fmt.Sprintf("%s (channel %s)", status.VoiceState, status.VoiceChannelID), Inline: true},
			{Name: "Playback", Value: playback, Inline: true},
			{Name: "Queued", Value: fmt.Sprintf("%d synth / %d audio (%d bytes)", status.SynthesisQueued, status.AudioQueued, status.AudioBufferBytes), Inline: true},
			{Name: "Messages", Value: fmt.Sprintf("%d admitted / %d rejected", status.MessagesAdmitted, status.MessagesRejected), Inline: true},
			{Name: "Chunks", Value: fmt.Sprintf("%d synthesized / %d played", status.ChunksSynthesized, status.ChunksPlayed), Inline: true},
			{Name: "Errors", Value: fmt.Sprintf("%d", status.Errors), Inline: true},
			{Name: "Uptime", Value: status.Uptime.Round(time.Second).String(), Inline: true},
			{Name: "Round-trip p50/p95", Value: fmt.Sprintf("%s / %s", status.RoundTripP50, status.RoundTripP95), Inline: true},
		},
	}
	if !status.Healthy && len(status.HealthIssues) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Health issues",
			Value: strings.Join(status.HealthIssues, "; "),
		})
	}

	discord.RespondEmbed(s, i, embed)
}

func (o *Orchestrator) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var groupID string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "group_id" {
			groupID = opt.StringValue()
		}
	}

	removed := o.SkipGroup(groupID)
	if removed == 0 {
		discord.RespondEphemeral(s, i, "Nothing to skip.")
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Skipped %d queued item(s).", removed))
}

func (o *Orchestrator) handleClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	removed := o.ClearAll()
	discord.RespondEphemeral(s, i, fmt.Sprintf("Cleared %d queued item(s).", removed))
}

func (o *Orchestrator) handleVoiceSet(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var speakerID int64
	var speakerName, engine string
	for _, opt := range i.ApplicationCommandData().Options[0].Options {
		switch opt.Name {
		case "speaker_id":
			speakerID = opt.IntValue()
		case "speaker_name":
			speakerName = opt.StringValue()
		case "engine":
			engine = strings.ToLower(opt.StringValue())
		}
	}

	authorID := i.User.ID
	if i.Member != nil && i.Member.User != nil {
		authorID = i.Member.User.ID
	}

	if err := o.router.SetPreference(authorID, int(speakerID), speakerName, engine); err != nil {
		discord.RespondEphemeral(s, i, fmt.Sprintf("Could not set voice preference: %v", err))
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Voice preference saved: %s (id %d).", speakerName, speakerID))
}

// handleVoiceCheck pings every configured TTS engine (distinct from the
// generic /status snapshot) and reports per-engine reachability, per
// SPEC_FULL.md §10.6's supplemented `/voicecheck`-style connectivity check.
func (o *Orchestrator) handleVoiceCheck(s *discordgo.Session, i *discordgo.InteractionCreate) {
	tags := make([]string, 0, len(o.cfg.EngineURLs))
	for tag := range o.cfg.EngineURLs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	if len(tags) == 0 {
		discord.RespondEphemeral(s, i, "No TTS engines configured.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fields := make([]*discordgo.MessageEmbedField, 0, len(tags))
	allOK := true
	for _, tag := range tags {
		baseURL := o.cfg.EngineURLs[tag]
		result := o.tts.Ping(ctx, baseURL)
		if result != ttsengine.PingOK {
			allOK = false
		}
		label := tag
		if tag == o.cfg.TTSEngine {
			label += " (active)"
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   label,
			Value:  fmt.Sprintf("%s — %s", result, baseURL),
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:  "TTS engine connectivity",
		Color:  statusColor(allOK),
		Fields: fields,
	}
	discord.RespondEmbed(s, i, embed)
}

func statusColor(healthy bool) int {
	if healthy {
		return 0x2ecc71
	}
	return 0xe74c3c
}
