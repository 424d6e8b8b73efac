package script

import "strings"

// DefaultFence is the language tag that marks a script block.
const DefaultFence = "neo"

// Recognize extracts the script embedded in a message body. The trimmed body
// must open with "```neo" and close with "```"; the returned code is the
// exact text between the two fences.
func Recognize(raw string) (string, bool) {
	return RecognizeFence(raw, DefaultFence)
}

// RecognizeFence is Recognize with a custom language tag.
func RecognizeFence(raw, tag string) (string, bool) {
	open := "```" + tag
	const closing = "```"

	text := strings.TrimSpace(raw)
	if len(text) < len(open)+len(closing) {
		return "", false
	}
	if !strings.HasPrefix(text, open) || !strings.HasSuffix(text, closing) {
		return "", false
	}
	return text[len(open) : len(text)-len(closing)], true
}
