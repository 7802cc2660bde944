// Package synthpipeline implements the two-stage synthesis/playback
// pipeline: a bounded SynthesisQueue feeding a single synthesizer worker,
// and a priority AudioQueue feeding a single playback worker.
package synthpipeline

// SynthesisJob is one chunk of an AdmittedMessage, queued for the
// synthesizer worker.
type SynthesisJob struct {
	Text              string
	AuthorID          string
	AuthorDisplayName string
	GroupID           string
	ChunkIndex        int
	ChunkCount        int
	ContentHash       string

	// Priority is computed once per AdmittedMessage from its full sanitized
	// text (see [AssignPriority]) and shared by every chunk of that message,
	// so chunks within a group are popped in enqueue order (spec.md §5).
	Priority int
}

// AudioArtifact is a synthesized clip waiting for (or undergoing) playback.
// Ownership is exclusive: it is held by exactly one queue, or by the
// playback worker while in flight.
type AudioArtifact struct {
	WAVBytes   []byte
	GroupID    string
	ChunkIndex int
	Priority   int
	SizeBytes  int
}
