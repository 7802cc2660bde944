// Package audiodecoder wraps the external audio decoder subprocess: given a
// synthesized WAV clip it produces raw interleaved s16-LE PCM at the
// transport's configured sample rate and channel count, ready for Opus
// encoding. The decoder itself (ffmpeg by default) is an out-of-process
// collaborator; this package only owns the temp file plumbing and the
// stdout pipe.
package audiodecoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Decoder invokes an external decoder binary against a temp file holding
// WAV bytes and returns raw PCM read from its stdout.
type Decoder struct {
	// Command is the decoder executable. Default: "ffmpeg".
	Command string

	// SampleRate and Channels describe the PCM output format requested from
	// the decoder (48 kHz stereo for the Service's voice transport).
	SampleRate int
	Channels   int
}

// New builds a Decoder targeting sampleRate/channels output, invoking
// "ffmpeg" unless overridden.
func New(sampleRate, channels int) *Decoder {
	return &Decoder{
		Command:    "ffmpeg",
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Decode writes wavBytes to a temp file, invokes the decoder against it,
// and returns the raw s16-LE PCM bytes produced on stdout. The temp file is
// removed before returning, regardless of outcome.
func (d *Decoder) Decode(ctx context.Context, wavBytes []byte) ([]byte, error) {
	f, err := os.CreateTemp("", "ttsrelay-clip-*.wav")
	if err != nil {
		return nil, fmt.Errorf("audiodecoder: create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(wavBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("audiodecoder: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("audiodecoder: close temp file: %w", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(d.SampleRate),
		"-ac", strconv.Itoa(d.Channels),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("audiodecoder: %s: %w: %s", d.Command, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// DecodeStream is like Decode but streams PCM to w as the decoder produces
// it, for callers that want to start encoding before decode completes.
func (d *Decoder) DecodeStream(ctx context.Context, wavBytes []byte, w io.Writer) error {
	f, err := os.CreateTemp("", "ttsrelay-clip-*.wav")
	if err != nil {
		return fmt.Errorf("audiodecoder: create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(wavBytes); err != nil {
		f.Close()
		return fmt.Errorf("audiodecoder: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audiodecoder: close temp file: %w", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(d.SampleRate),
		"-ac", strconv.Itoa(d.Channels),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.Command, args...)
	cmd.Stdout = w
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audiodecoder: %s: %w: %s", d.Command, err, stderr.String())
	}
	return nil
}
