// Package config provides the configuration schema, environment-variable
// loader, and file-watcher for ttsrelay.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// LogLevel controls slog verbosity. Valid values: debug, info, warn, error.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognized log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Slog converts l to its [slog.Level] equivalent. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// KnownEngines lists the TTS engine tags ttsrelay understands out of the box.
// Additional tags may still be configured via <TAG>_URL; they are simply
// unknown to the cross-engine speaker mapping table.
var KnownEngines = []string{"voicevox", "aivis"}

// Defaults mirror the original bot's fallback behaviour when an environment
// variable is unset.
const (
	DefaultCommandPrefix     = "!"
	DefaultMaxMessageLength  = 10000
	DefaultChunkLimit        = 500
	DefaultMessageQueueSize  = 50
	DefaultReconnectDelay    = 5 * time.Second
	DefaultRateLimitMessages = 10
	DefaultRateLimitPeriod   = 60 * time.Second
	DefaultLogLevel          = LogLevelInfo
	DefaultObservabilityAddr = ":9090"
)

// Config is the fully resolved, validated runtime configuration for
// ttsrelay. It is produced by [Load] from environment variables with an
// optional YAML file overlay.
type Config struct {
	// DiscordBotToken authenticates against the Service. Required.
	DiscordBotToken string

	// TargetVoiceChannelID is the voice channel ttsrelay joins and reads
	// text from.
	TargetVoiceChannelID string

	// TTSEngine is the default engine tag (e.g. "voicevox", "aivis") used
	// when a user has no stored preference.
	TTSEngine string

	// TTSSpeaker is the default speaker name within TTSEngine.
	TTSSpeaker string

	// EngineURLs maps an engine tag to its HTTP base URL, populated from
	// <TAG>_URL environment variables for every tag in [KnownEngines] plus
	// TTSEngine itself.
	EngineURLs map[string]string

	LogLevel LogLevel
	LogFile  string

	CommandPrefix    string
	MaxMessageLength int
	MessageQueueSize int
	ReconnectDelay   time.Duration

	RateLimitMessages int
	RateLimitPeriod   time.Duration

	Debug                       bool
	EnableSelfMessageProcessing bool

	// ObservabilityAddr is the listen address for the ambient /healthz,
	// /readyz, and /metrics HTTP endpoints. Empty disables the server.
	ObservabilityAddr string
}

// EngineURL returns the configured base URL for engine tag, and whether one
// was set.
func (c *Config) EngineURL(tag string) (string, bool) {
	u, ok := c.EngineURLs[tag]
	return u, ok
}

// Validate checks that cfg contains a coherent, runnable set of values. It
// returns a joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.DiscordBotToken == "" {
		errs = append(errs, fmt.Errorf("DISCORD_BOT_TOKEN is required"))
	}
	if cfg.TTSEngine == "" {
		errs = append(errs, fmt.Errorf("TTS_ENGINE is required"))
	} else if _, ok := cfg.EngineURLs[cfg.TTSEngine]; !ok {
		errs = append(errs, fmt.Errorf("TTS_ENGINE %q has no matching <ENGINE>_URL", cfg.TTSEngine))
	}
	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", cfg.MaxMessageLength))
	}
	if cfg.MessageQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("MESSAGE_QUEUE_SIZE must be positive, got %d", cfg.MessageQueueSize))
	}
	if cfg.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("RECONNECT_DELAY must be positive, got %s", cfg.ReconnectDelay))
	}
	if cfg.RateLimitMessages <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MESSAGES must be positive, got %d", cfg.RateLimitMessages))
	}
	if cfg.RateLimitPeriod <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PERIOD must be positive, got %s", cfg.RateLimitPeriod))
	}

	return errors.Join(errs...)
}
