package synthpipeline

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

var (
	allowedChannels   = map[int]bool{1: true, 2: true}
	allowedSampleRate = map[int]bool{8000: true, 16000: true, 22050: true, 44100: true, 48000: true}
	allowedBitDepth   = map[int]bool{8: true, 16: true, 24: true, 32: true}
)

// gateAudioFormat rejects a synthesized clip whose RIFF/WAVE header reports
// an unreasonable channel count, sample rate, or bit depth — a broader
// sanity check than ttsengine.ValidateWAV's PCM-only gate, applied just
// before the clip is handed to the AudioQueue.
func gateAudioFormat(data []byte) error {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return fmt.Errorf("synthpipeline: not a valid RIFF/WAVE file")
	}

	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	bitDepth := int(dec.BitDepth)

	if !allowedChannels[channels] {
		return fmt.Errorf("synthpipeline: unsupported channel count %d", channels)
	}
	if !allowedSampleRate[sampleRate] {
		return fmt.Errorf("synthpipeline: unsupported sample rate %d", sampleRate)
	}
	if !allowedBitDepth[bitDepth] {
		return fmt.Errorf("synthpipeline: unsupported bit depth %d", bitDepth)
	}
	return nil
}
