package channel

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage breaks text into chunks of at most max runes, preferring line
// breaks, then spaces, and cutting mid-word only when a single word is too long.
// max <= 0 disables splitting.
func SplitMessage(text string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var chunks []string
	rest := []rune(text)
	for len(rest) > max {
		cut := lastIndex(rest[:max+1], '\n')
		if cut <= 0 {
			cut = lastIndex(rest[:max+1], ' ')
		}
		if cut <= 0 {
			cut = max
		}
		chunk := strings.TrimRight(string(rest[:cut]), " \n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = trimLeadingBreaks(rest[cut:])
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

func trimLeadingBreaks(rs []rune) []rune {
	for len(rs) > 0 && (rs[0] == '\n' || rs[0] == ' ') {
		rs = rs[1:]
	}
	return rs
}
