package config

import "testing"

func TestDiffConfigs_RateLimitChanged(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.RateLimitMessages = old.RateLimitMessages + 1

	d := DiffConfigs(old, new)
	if !d.RateLimitChanged {
		t.Error("expected RateLimitChanged")
	}
	if !d.Changed() {
		t.Error("expected Changed() to be true")
	}
	if d.NewRateLimit != new.RateLimitMessages {
		t.Errorf("NewRateLimit = %d, want %d", d.NewRateLimit, new.RateLimitMessages)
	}
}

func TestDiffConfigs_MaxMessageLengthChanged(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.MaxMessageLength = old.MaxMessageLength + 50

	d := DiffConfigs(old, new)
	if !d.MaxMessageLengthChanged {
		t.Error("expected MaxMessageLengthChanged")
	}
	if d.NewMaxMessageLength != new.MaxMessageLength {
		t.Errorf("NewMaxMessageLength = %d, want %d", d.NewMaxMessageLength, new.MaxMessageLength)
	}
}

func TestDiffConfigs_LogLevelChanged(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.LogLevel = LogLevelDebug

	d := DiffConfigs(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged")
	}
	if d.NewLogLevel != LogLevelDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiffConfigs_NoChanges(t *testing.T) {
	old := validConfig()
	new := validConfig()

	d := DiffConfigs(old, new)
	if d.Changed() {
		t.Error("expected no changes")
	}
}

func TestDiffConfigs_IgnoresRestartOnlyFields(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.DiscordBotToken = "different-token"
	new.TargetVoiceChannelID = "different-channel"

	d := DiffConfigs(old, new)
	if d.Changed() {
		t.Error("restart-only fields should not be reported as hot-reloadable changes")
	}
}
