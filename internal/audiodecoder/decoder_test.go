package audiodecoder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeDecoderScript writes an executable shell script to dir that ignores
// its arguments and either prints body to stdout or exits non-zero writing
// body to stderr.
func fakeDecoderScript(t *testing.T, dir, body string, fail bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake decoder script requires a POSIX shell")
	}

	path := filepath.Join(dir, "fake-ffmpeg.sh")
	script := "#!/bin/sh\n"
	if fail {
		script += "printf '%s' '" + body + "' 1>&2\nexit 1\n"
	} else {
		script += "printf '%s' '" + body + "'\n"
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake decoder script: %v", err)
	}
	return path
}

func TestDecoder_Decode_ReturnsStdout(t *testing.T) {
	dir := t.TempDir()
	script := fakeDecoderScript(t, dir, "PCMDATA", false)

	d := New(48000, 2)
	d.Command = script

	out, err := d.Decode(context.Background(), []byte("RIFF....WAVEfmt "))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(out) != "PCMDATA" {
		t.Errorf("Decode output = %q, want %q", out, "PCMDATA")
	}
}

func TestDecoder_Decode_PropagatesFailure(t *testing.T) {
	dir := t.TempDir()
	script := fakeDecoderScript(t, dir, "boom", true)

	d := New(48000, 2)
	d.Command = script

	_, err := d.Decode(context.Background(), []byte("not a real wav"))
	if err == nil {
		t.Fatal("expected error from failing decoder")
	}
}

func TestDecoder_Decode_CleansUpTempFile(t *testing.T) {
	dir := t.TempDir()
	script := fakeDecoderScript(t, dir, "x", false)

	d := New(48000, 2)
	d.Command = script

	if _, err := d.Decode(context.Background(), []byte("payload")); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" && len(e.Name()) > len("ttsrelay-clip-") &&
			e.Name()[:len("ttsrelay-clip-")] == "ttsrelay-clip-" {
			t.Errorf("temp file %q was not cleaned up", e.Name())
		}
	}
}
