package utils

import (
	"regexp"
	"strings"
)

// MaxAlertTextLength bounds titles and messages accepted from callers
const MaxAlertTextLength = 10000

// Control characters (except tab, newline and carriage return)
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// SanitizeAlertText strips control characters and caps the length of
// caller supplied alert text. Modified reports whether anything changed.
func SanitizeAlertText(text string) (clean string, modified bool) {
	clean = text
	if controlCharPattern.MatchString(clean) {
		clean = controlCharPattern.ReplaceAllString(clean, "")
		modified = true
	}
	if len([]rune(clean)) > MaxAlertTextLength {
		clean = Prefix(clean, MaxAlertTextLength)
		modified = true
	}
	return clean, modified
}

// EscapeForLogging escapes text for single-line logging
func EscapeForLogging(text string, maxLen int) string {
	text = Prefix(text, maxLen)
	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")
	return text
}
