package util

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds error text persisted on entities.
const MaxMessageLength = 500

// SanitizeMessage flattens msg onto one line and truncates it to
// MaxMessageLength runes.
func SanitizeMessage(msg string) string {
	s := strings.Join(strings.Fields(msg), " ")
	if utf8.RuneCountInString(s) <= MaxMessageLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxMessageLength-3]) + "..."
}
