package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envKeys lists every environment variable ttsrelay recognizes, per the
// external-interfaces CLI surface. <ENGINE>_URL is handled separately since
// its prefix varies with the configured engine tags.
var envKeys = []string{
	"DISCORD_BOT_TOKEN",
	"TARGET_VOICE_CHANNEL_ID",
	"TTS_ENGINE",
	"TTS_SPEAKER",
	"LOG_LEVEL",
	"LOG_FILE",
	"COMMAND_PREFIX",
	"MAX_MESSAGE_LENGTH",
	"MESSAGE_QUEUE_SIZE",
	"RECONNECT_DELAY",
	"RATE_LIMIT_MESSAGES",
	"RATE_LIMIT_PERIOD",
	"DEBUG",
	"ENABLE_SELF_MESSAGE_PROCESSING",
	"OBSERVABILITY_ADDR",
}

// Load builds a [Config] from the process environment, optionally layering
// a YAML override file underneath, and validates the result.
//
// configFile may be empty, in which case only the environment is consulted.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}
	v.SetDefault("COMMAND_PREFIX", DefaultCommandPrefix)
	v.SetDefault("MAX_MESSAGE_LENGTH", DefaultMaxMessageLength)
	v.SetDefault("MESSAGE_QUEUE_SIZE", DefaultMessageQueueSize)
	v.SetDefault("RECONNECT_DELAY", DefaultReconnectDelay.String())
	v.SetDefault("RATE_LIMIT_MESSAGES", DefaultRateLimitMessages)
	v.SetDefault("RATE_LIMIT_PERIOD", DefaultRateLimitPeriod.String())
	v.SetDefault("LOG_LEVEL", string(DefaultLogLevel))
	v.SetDefault("OBSERVABILITY_ADDR", DefaultObservabilityAddr)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configFile, err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromViper maps bound environment/file values onto a [Config]. Engine URLs
// are resolved separately because their keys are not static.
func fromViper(v *viper.Viper) (*Config, error) {
	reconnectDelay, err := parseDuration(v.GetString("RECONNECT_DELAY"), DefaultReconnectDelay)
	if err != nil {
		return nil, fmt.Errorf("config: RECONNECT_DELAY: %w", err)
	}
	rateLimitPeriod, err := parseDuration(v.GetString("RATE_LIMIT_PERIOD"), DefaultRateLimitPeriod)
	if err != nil {
		return nil, fmt.Errorf("config: RATE_LIMIT_PERIOD: %w", err)
	}

	cfg := &Config{
		DiscordBotToken:             v.GetString("DISCORD_BOT_TOKEN"),
		TargetVoiceChannelID:        v.GetString("TARGET_VOICE_CHANNEL_ID"),
		TTSEngine:                   strings.ToLower(v.GetString("TTS_ENGINE")),
		TTSSpeaker:                  v.GetString("TTS_SPEAKER"),
		EngineURLs:                  engineURLs(v, strings.ToLower(v.GetString("TTS_ENGINE"))),
		LogLevel:                    LogLevel(strings.ToLower(v.GetString("LOG_LEVEL"))),
		LogFile:                     v.GetString("LOG_FILE"),
		CommandPrefix:               v.GetString("COMMAND_PREFIX"),
		MaxMessageLength:            v.GetInt("MAX_MESSAGE_LENGTH"),
		MessageQueueSize:            v.GetInt("MESSAGE_QUEUE_SIZE"),
		ReconnectDelay:              reconnectDelay,
		RateLimitMessages:           v.GetInt("RATE_LIMIT_MESSAGES"),
		RateLimitPeriod:             rateLimitPeriod,
		Debug:                       v.GetBool("DEBUG"),
		EnableSelfMessageProcessing: v.GetBool("ENABLE_SELF_MESSAGE_PROCESSING"),
		ObservabilityAddr:           v.GetString("OBSERVABILITY_ADDR"),
	}
	return cfg, nil
}

// engineURLs scans the environment for <TAG>_URL entries, one per entry in
// [KnownEngines] plus the active engine tag (which may be a third-party
// addition not in KnownEngines).
func engineURLs(v *viper.Viper, activeEngine string) map[string]string {
	tags := append([]string{}, KnownEngines...)
	if activeEngine != "" && !contains(tags, activeEngine) {
		tags = append(tags, activeEngine)
	}

	urls := make(map[string]string, len(tags))
	for _, tag := range tags {
		key := strings.ToUpper(tag) + "_URL"
		if err := v.BindEnv(key); err != nil {
			continue
		}
		if u := v.GetString(key); u != "" {
			urls[tag] = u
		}
	}
	return urls
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// parseDuration accepts either a Go duration string ("5s") or a bare integer
// number of seconds, matching how the original bot reads its *_DELAY and
// *_PERIOD environment variables.
func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}
