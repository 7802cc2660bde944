// Package ttsengine implements the stateless HTTP client for the two
// VOICEVOX-style TTS engines, including the audio-query tuning the spec
// mandates before synthesis.
package ttsengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Rokurolize/ttsrelay/internal/governor"
)

// Ping result tags, matching spec.md §4.2's enumerated return values.
const (
	PingOK               = "ok"
	PingConnectionRefused = "connection_refused"
	PingTimeout          = "timeout"
	PingUnexpected       = "unexpected"
)

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient overrides the pooled http.Client. Useful in tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSampleRate sets the PCM sample rate forced into every audio query.
// Default: 48000 (the Service's native frame rate).
func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

// Client is a stateless HTTP client shared across every outbound call to
// either configured TTS engine. It holds no per-request state; engine base
// URLs are supplied by the caller on every call.
type Client struct {
	http       *http.Client
	sampleRate int
}

const defaultSampleRate = 48000

// New creates a [Client] with a long-lived pooled transport.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ping calls baseURL's /version endpoint for a liveness check.
func (c *Client) Ping(ctx context.Context, baseURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/version", nil)
	if err != nil {
		return PingUnexpected
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyDialError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return PingOK
	}
	return fmt.Sprintf("http_%d", resp.StatusCode)
}

// Query calls the engine's /audio_query endpoint through gov, applies the
// client's tuning rules, and returns the result. On any failure it logs and
// returns (nil, false) — callers never see transport errors directly.
func (c *Client) Query(ctx context.Context, gov *governor.Governor, baseURL, text string, speakerID int) (AudioQuery, bool) {
	var query AudioQuery
	err := gov.Execute(ctx, func(ctx context.Context) error {
		q, err := c.doQuery(ctx, baseURL, text, speakerID)
		if err != nil {
			return err
		}
		query = q
		return nil
	})
	if err != nil {
		slog.Warn("ttsengine: audio_query failed", "base_url", baseURL, "err", err)
		return nil, false
	}
	tune(query, c.sampleRate)
	return query, true
}

func (c *Client) doQuery(ctx context.Context, baseURL, text string, speakerID int) (AudioQuery, error) {
	u := strings.TrimRight(baseURL, "/") + "/audio_query?" + url.Values{
		"text":    {text},
		"speaker": {strconv.Itoa(speakerID)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := rejectIfRateLimited(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ttsengine: audio_query: unexpected status %d", resp.StatusCode)
	}

	var q AudioQuery
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("ttsengine: audio_query: decode response: %w", err)
	}
	return q, nil
}

// Synthesize calls the engine's /synthesis endpoint through gov with the
// (already tuned) query as the JSON body, and validates the returned bytes
// are a well-formed WAV file.
func (c *Client) Synthesize(ctx context.Context, gov *governor.Governor, baseURL string, query AudioQuery, speakerID int) ([]byte, bool) {
	var wavBytes []byte
	err := gov.Execute(ctx, func(ctx context.Context) error {
		b, err := c.doSynthesize(ctx, baseURL, query, speakerID)
		if err != nil {
			return err
		}
		wavBytes = b
		return nil
	})
	if err != nil {
		slog.Warn("ttsengine: synthesis failed", "base_url", baseURL, "err", err)
		return nil, false
	}
	return wavBytes, true
}

func (c *Client) doSynthesize(ctx context.Context, baseURL string, query AudioQuery, speakerID int) ([]byte, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("ttsengine: marshal query: %w", err)
	}

	u := strings.TrimRight(baseURL, "/") + "/synthesis?speaker=" + strconv.Itoa(speakerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := rejectIfRateLimited(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ttsengine: synthesis: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ttsengine: synthesis: read response: %w", err)
	}
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}
	return data, nil
}

// SynthesizeText is the composed happy-path helper: query then synthesize
// against a single engine.
func (c *Client) SynthesizeText(ctx context.Context, gov *governor.Governor, baseURL, text string, speakerID int) ([]byte, bool) {
	query, ok := c.Query(ctx, gov, baseURL, text, speakerID)
	if !ok {
		return nil, false
	}
	return c.Synthesize(ctx, gov, baseURL, query, speakerID)
}

// rejectIfRateLimited converts a 429-equivalent response into a
// *governor.RateLimitError carrying the Service-indicated Retry-After, and
// drains+closes nothing (caller's defer handles the body).
func rejectIfRateLimited(resp *http.Response) error {
	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	return &governor.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
}

func parseRetryAfter(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func classifyDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return PingTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return PingTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return PingConnectionRefused
	}
	return PingUnexpected
}
