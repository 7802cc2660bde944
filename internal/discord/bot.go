// Package discord provides the Service gateway layer: it owns the
// discordgo.Session lifecycle and routes slash-command interactions to
// registered handlers. The orchestrator builds its own dependencies
// (voice transport, voice session controller) from [Bot.Session] and
// registers its gateway event handlers (message, voice-state-update,
// voice-server-update, ready, disconnect, resume) via [Bot.AddHandler]
// before calling [Bot.Open], so no event can race the orchestrator's wiring.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (e.g., "Bot MTIz...").
	Token string

	// GuildID is the target guild the bot serves.
	GuildID string
}

// Bot owns the Discord gateway connection and routes interactions to
// registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot and its discordgo.Session without connecting to the
// gateway. Callers should register any additional event handlers via
// [Bot.AddHandler] and then call [Bot.Open] to start the connection.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuilds

	router := NewCommandRouter()

	b := &Bot{
		session: session,
		router:  router,
		guildID: cfg.GuildID,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})

	return b, nil
}

// AddHandler registers an additional gateway event handler, with the same
// signature rules as discordgo.Session.AddHandler. Must be called before
// Open to guarantee no events are missed.
func (b *Bot) AddHandler(handler any) {
	b.session.AddHandler(handler)
}

// Open starts the gateway connection. Call after all handlers are
// registered.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

// GuildID returns the target guild ID.
func (b *Bot) GuildID() string {
	return b.guildID
}

// SetGuildID records the guild slash commands should be scoped to. The
// target guild is only known once the target voice channel is resolved
// against gateway state, so callers update it from the "ready" handler
// before [Bot.RegisterCommands] runs.
func (b *Bot) SetGuildID(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guildID = guildID
}

// Session returns the underlying discordgo session. The orchestrator uses
// this to register its own gateway event handlers and to make direct API
// calls (voice join, presence, message sends) outside the command surface.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering slash-command
// handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// RegisterCommands registers the router's accumulated slash commands with
// the Discord API for the target guild. Call once the session is ready.
func (b *Bot) RegisterCommands() error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) == 0 {
		return nil
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord commands registered", "count", len(registered))
	return nil
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
