package relaybot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rokurolize/ttsrelay/internal/health"
)

// ObservabilityServer hosts the ambient /healthz, /readyz, and /metrics
// endpoints used by process supervisors and Prometheus scrapers. It has no
// effect on the voice-relay pipeline itself; it only reflects the
// orchestrator's status.
type ObservabilityServer struct {
	srv *http.Server
	ln  net.Listener
}

// NewObservabilityServer builds the HTTP mux: /healthz (liveness, always
// 200), /readyz (readiness, gated on the voice session, TTS engine, and
// health monitor checkers registered below), and /metrics (the Prometheus
// exporter bridged from internal/observe).
func (o *Orchestrator) NewObservabilityServer(addr string) (*ObservabilityServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("relaybot: listen on %q: %w", addr, err)
	}

	handler := health.New(
		health.Checker{
			Name: health.CheckVoiceSession,
			Check: func(_ context.Context) error {
				h := o.session.HealthProbe()
				if len(h.Issues) > 0 {
					return fmt.Errorf("%s", joinIssues(h.Issues))
				}
				return nil
			},
		},
		health.Checker{
			Name: health.CheckTTSEngine,
			Check: func(ctx context.Context) error {
				for _, base := range o.cfg.EngineURLs {
					if o.tts.Ping(ctx, base) == "ok" {
						return nil
					}
				}
				return fmt.Errorf("no configured TTS engine responded")
			},
		},
		health.Checker{
			Name: health.CheckTermination,
			Check: func(_ context.Context) error {
				status := o.monitor.Status()
				if !status.Healthy {
					return fmt.Errorf("%s", joinIssues(status.Issues))
				}
				return nil
			},
		},
	)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &ObservabilityServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

// Addr returns the bound listener address (useful when addr was ":0").
func (s *ObservabilityServer) Addr() string {
	return s.ln.Addr().String()
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *ObservabilityServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("relaybot: observability server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
