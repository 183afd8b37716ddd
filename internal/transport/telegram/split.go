package telegram

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the Bot API limit for one text message.
const MaxMessageLength = 4096

// SplitMessage splits text into parts of at most max runes, preferring
// paragraph, then line, then word boundaries.
func SplitMessage(text string, max int) []string {
	if max <= 0 {
		max = MaxMessageLength
	}
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var parts []string
	rest := text
	for utf8.RuneCountInString(rest) > max {
		window := prefixRunes(rest, max)
		end := len(window)
		for _, sep := range []string{"\n\n", "\n", " "} {
			if i := strings.LastIndex(window, sep); i > len(window)/2 {
				end = i + len(sep)
				break
			}
		}
		parts = append(parts, strings.TrimRight(rest[:end], "\n "))
		rest = rest[end:]
	}
	if strings.TrimSpace(rest) != "" {
		parts = append(parts, rest)
	}
	return parts
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
