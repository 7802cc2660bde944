package ttsengine

// AudioQuery is the JSON object returned by an engine's /audio_query
// endpoint. It is treated opaquely except for the four fields the client
// tunes before synthesis; every other engine-specific key (accentPhrases,
// prePhonemeLength, …) round-trips unmodified.
type AudioQuery map[string]any

const (
	fieldOutputSamplingRate = "outputSamplingRate"
	fieldVolumeScale        = "volumeScale"
	fieldSpeedScale         = "speedScale"
	fieldPitchScale         = "pitchScale"

	// volumeHeadroom keeps the tuned volume below engine clipping.
	volumeHeadroom = 0.8

	minSpeedScale = 0.8
	maxSpeedScale = 1.2
)

// tune applies the client's audio-query tuning rules in place: force the
// sample rate, clamp and attenuate volume, clamp speed. pitchScale is never
// touched — the engine's native pitch is authoritative.
func tune(q AudioQuery, sampleRate int) {
	q[fieldOutputSamplingRate] = sampleRate

	if v, ok := asFloat(q[fieldVolumeScale]); ok {
		q[fieldVolumeScale] = clamp(v, 0, 1) * volumeHeadroom
	}
	if v, ok := asFloat(q[fieldSpeedScale]); ok {
		q[fieldSpeedScale] = clamp(v, minSpeedScale, maxSpeedScale)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
