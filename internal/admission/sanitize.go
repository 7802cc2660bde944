package admission

import (
	"regexp"
	"strings"
	"unicode"
)

const sanitizedCeiling = 500

var (
	urlPattern           = regexp.MustCompile(`https?://\S+`)
	userMentionPattern   = regexp.MustCompile(`<@!?[0-9]+>`)
	channelMentionPattern = regexp.MustCompile(`<#[0-9]+>`)
	roleMentionPattern   = regexp.MustCompile(`<@&[0-9]+>`)
	customEmojiPattern   = regexp.MustCompile(`<a?:[a-zA-Z0-9_]+:[0-9]+>`)
	codeFencePattern     = regexp.MustCompile("```[\\s\\S]*?```")
	blockQuotePattern    = regexp.MustCompile(`(?m)^>>>\s?|^>\s?`)
	whitespaceRunPattern = regexp.MustCompile(`[ \t]+`)

	markdownTokens = []string{"**", "__", "~~", "||", "*", "_", "`"}

	decorativeReplacer = strings.NewReplacer(
		"…", "...",
		"–", "-",
		"—", "-",
		"‘", "'",
		"’", "'",
		"“", `"`,
		"”", `"`,
	)
)

// sanitize applies C4's sanitization rules in order: decorative-character
// normalization, mention/URL/emoji replacement, markup stripping,
// non-printable stripping, whitespace collapse, then ceiling truncation.
func sanitize(content string) string {
	s := decorativeReplacer.Replace(content)

	s = urlPattern.ReplaceAllString(s, "link")
	s = userMentionPattern.ReplaceAllString(s, "someone")
	s = channelMentionPattern.ReplaceAllString(s, "channel")
	s = roleMentionPattern.ReplaceAllString(s, "role")
	s = customEmojiPattern.ReplaceAllString(s, "emoji")

	s = codeFencePattern.ReplaceAllString(s, "")
	s = blockQuotePattern.ReplaceAllString(s, "")
	for _, tok := range markdownTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.ReplaceAll(s, "\\", "")

	s = stripNonPrintable(s)

	s = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	s = whitespaceRunPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return truncateToCeiling(s, sanitizedCeiling)
}

// stripNonPrintable removes control characters other than space, tab, and
// newline, which sanitize later turns into spaces and collapses.
func stripNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' {
			return r
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}

// truncateToCeiling cuts s to at most limit runes, appending an ellipsis if
// truncated. Truncation respects rune boundaries.
func truncateToCeiling(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
