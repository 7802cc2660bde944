package ttsengine

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// pcmFormatCode is the WAVE "audio format" tag for uncompressed PCM.
const pcmFormatCode = 1

// ValidateWAV confirms data begins with a well-formed RIFF/WAVE PCM header,
// as an engine's /synthesis endpoint is contracted to return.
func ValidateWAV(data []byte) error {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return fmt.Errorf("ttsengine: response is not a valid RIFF/WAVE file")
	}
	if dec.WavAudioFormat != pcmFormatCode {
		return fmt.Errorf("ttsengine: wav audio format %d is not PCM", dec.WavAudioFormat)
	}
	return nil
}
