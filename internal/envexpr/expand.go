// Package envexpr substitutes ${env.NAME} references in configuration text.
package envexpr

import (
	"strings"
	"unicode"
)

const prefix = "${env."

// Expand replaces every ${env.NAME} in text with lookup(NAME); unset names
// expand to "". A reference whose name holds anything other than letters,
// digits or '_' is copied as is, and so is an unterminated one.
func Expand(text string, lookup func(name string) (string, bool)) string {
	if !strings.Contains(text, prefix) {
		return text
	}
	var sb strings.Builder
	for {
		start := strings.Index(text, prefix)
		if start < 0 {
			sb.WriteString(text)
			return sb.String()
		}
		sb.WriteString(text[:start])
		rest := text[start+len(prefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			sb.WriteString(text[start:])
			return sb.String()
		}
		name := rest[:end]
		if !isName(name) {
			// rescan after the prefix so a nested reference still expands
			sb.WriteString(prefix)
			text = rest
			continue
		}
		value, _ := lookup(name)
		sb.WriteString(value)
		text = rest[end+1:]
	}
}

func isName(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
