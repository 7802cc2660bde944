// Command ttsrelay starts the voice-channel text-to-speech relay bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rokurolize/ttsrelay/internal/config"
	"github.com/Rokurolize/ttsrelay/internal/relaybot"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return exitCode
}

// exitCode is set by runRelay so main can propagate a non-zero status
// without cobra's own error-printing path (errors here are already logged).
var exitCode int

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "ttsrelay",
		Short: "Voice-channel text-to-speech relay bot",
		Long: "ttsrelay watches a configured text channel, synthesizes each admitted\n" +
			"message via an external TTS engine, and streams the result into a\n" +
			"voice channel on the chat platform.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			exitCode = runRelay(configFile)
			if exitCode != 0 {
				return fmt.Errorf("ttsrelay: exit code %d", exitCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML file overlaying environment-variable configuration")
	return cmd
}

// runRelay loads configuration, constructs the orchestrator, and blocks
// until a termination signal or fatal condition ends the run. It returns
// the process exit code per spec.md §6 (0 clean, 1 startup/termination).
func runRelay(configFile string) int {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ttsrelay: %v\n", err)
		return 1
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	dataDir, err := preferenceDataDir()
	if err != nil {
		slog.Error("ttsrelay: resolve preference data directory", "err", err)
		return 1
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		slog.Error("ttsrelay: create preference data directory", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := relaybot.New(ctx, cfg, dataDir)
	if err != nil {
		slog.Error("ttsrelay: failed to initialize", "err", err)
		return 1
	}

	if configFile != "" {
		watcher, werr := config.NewWatcher(configFile, func(_, newCfg *config.Config, diff config.Diff) {
			orch.ApplyConfigDiff(newCfg, diff)
		})
		if werr != nil {
			slog.Warn("ttsrelay: config hot-reload watcher disabled", "err", werr)
		} else {
			defer watcher.Stop()
		}
	}

	if cfg.ObservabilityAddr != "" {
		obs, oerr := orch.NewObservabilityServer(cfg.ObservabilityAddr)
		if oerr != nil {
			slog.Warn("ttsrelay: observability server disabled", "err", oerr)
		} else {
			slog.Info("ttsrelay: observability server listening", "addr", obs.Addr())
			go func() {
				if rerr := obs.Run(ctx); rerr != nil {
					slog.Warn("ttsrelay: observability server stopped", "err", rerr)
				}
			}()
		}
	}

	slog.Info("ttsrelay: starting",
		"target_voice_channel", cfg.TargetVoiceChannelID,
		"tts_engine", cfg.TTSEngine,
		"log_level", string(cfg.LogLevel),
	)

	runErr := orch.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := orch.Shutdown(shutdownCtx); serr != nil {
		slog.Error("ttsrelay: shutdown error", "err", serr)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("ttsrelay: run error", "err", runErr)
		return 1
	}

	slog.Info("ttsrelay: goodbye")
	return 0
}

// preferenceDataDir resolves the platform-appropriate config directory for
// the durable user-voice-preferences file (XDG on POSIX, APPDATA on
// Windows), per spec.md §6.
func preferenceDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(base, "ttsrelay"), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	out := os.Stderr
	opts := &slog.HandlerOptions{Level: cfg.LogLevel.Slog()}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			return slog.New(slog.NewJSONHandler(f, opts))
		}
		fmt.Fprintf(os.Stderr, "ttsrelay: could not open LOG_FILE %q, logging to stderr: %v\n", cfg.LogFile, err)
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
