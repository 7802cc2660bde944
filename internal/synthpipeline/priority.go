package synthpipeline

import "strings"

const (
	basePriority = 5
	minPriority  = 1
	maxPriority  = 10

	shortTextThreshold = 50
	longTextThreshold  = 200
)

// AssignPriority computes an AdmittedMessage's queue priority from its full
// sanitized source text, clamped to [minPriority, maxPriority]. Lower values
// are dispatched first. Callers must compute this once per message (not per
// chunk) and stamp the same value onto every chunk's [SynthesisJob]: chunks
// of one message share a priority so they are popped in enqueue order
// (spec.md §5), and computing it per-chunk would let differently-sized
// chunks of the same message diverge in priority and reorder within the
// group.
func AssignPriority(sourceText string) int {
	p := basePriority
	if len(sourceText) < shortTextThreshold {
		p -= 1
	}
	if strings.HasPrefix(sourceText, "!") {
		p -= 2
	}
	if len(sourceText) > longTextThreshold {
		p += 2
	}
	return clampPriority(p)
}

func clampPriority(p int) int {
	if p < minPriority {
		return minPriority
	}
	if p > maxPriority {
		return maxPriority
	}
	return p
}
