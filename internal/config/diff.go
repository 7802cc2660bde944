package config

import "time"

// Diff describes what changed between two configs. Only the tunables that
// are safe to apply without a process restart are tracked — everything else
// (the Service token, target channel, engine wiring) requires a restart to
// take effect.
type Diff struct {
	RateLimitChanged bool
	NewRateLimit     int
	NewRatePeriod    time.Duration

	MaxMessageLengthChanged bool
	NewMaxMessageLength     int

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Changed reports whether any hot-reloadable field differs.
func (d Diff) Changed() bool {
	return d.RateLimitChanged || d.MaxMessageLengthChanged || d.LogLevelChanged
}

// DiffConfigs compares old and new and returns what changed.
func DiffConfigs(old, new *Config) Diff {
	var d Diff

	if old.RateLimitMessages != new.RateLimitMessages || old.RateLimitPeriod != new.RateLimitPeriod {
		d.RateLimitChanged = true
		d.NewRateLimit = new.RateLimitMessages
		d.NewRatePeriod = new.RateLimitPeriod
	}
	if old.MaxMessageLength != new.MaxMessageLength {
		d.MaxMessageLengthChanged = true
		d.NewMaxMessageLength = new.MaxMessageLength
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	return d
}
