package admission

import "strings"

// sentenceTerminators are preferred chunk-boundary runes, checked in the
// order given: ASCII terminators first, then their Japanese equivalents.
var sentenceTerminators = []rune{'.', '!', '?', '\n', '。', '！', '？'}

// chunk splits text into ordered pieces of at most limit runes each,
// preferring to break at the last sentence terminator within the window. If
// no terminator is found, it breaks at the hard limit.
func chunk(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}

		window := runes[:limit]
		splitAt := lastTerminatorIndex(window)
		if splitAt == -1 {
			splitAt = limit
		} else {
			splitAt++ // include the terminator itself in this chunk
		}

		piece := strings.TrimSpace(string(runes[:splitAt]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		runes = runes[splitAt:]
	}
	return chunks
}

func lastTerminatorIndex(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if isSentenceTerminator(window[i]) {
			return i
		}
	}
	return -1
}

func isSentenceTerminator(r rune) bool {
	for _, t := range sentenceTerminators {
		if r == t {
			return true
		}
	}
	return false
}
