package discord

import (
	"fmt"

	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel x 2 channels x 2 bytes/sample = 3840 bytes.
	opusFrameBytes = opusFrameSize * opusChannels * 2
)

// opusEncoder wraps a gopus Opus encoder for the single outbound stream this
// transport ever produces.
type opusEncoder struct {
	enc *gopus.Encoder
}

// newOpusEncoder creates a new Opus encoder configured for the Service's
// voice transport.
func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("voicetransport/discord: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// encode encodes one exact-size frame of interleaved PCM int16 data (as
// little-endian bytes) into an Opus packet.
func (e *opusEncoder) encode(pcmBytes []byte) ([]byte, error) {
	pcm := bytesToInt16s(pcmBytes)
	opusBytes, err := e.enc.Encode(pcm, opusFrameSize, len(pcmBytes))
	if err != nil {
		return nil, fmt.Errorf("voicetransport/discord: opus encode: %w", err)
	}
	return opusBytes, nil
}

// bytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
