package conversation

import (
	"strconv"
	"strings"
)

// normalize lowercases and trims a message and folds the Spanish accented
// vowels so "Sí" and "si" compare equal.
func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u")
	return replacer.Replace(s)
}

// isYes reports whether the message is an affirmative answer.
func isYes(text string) bool {
	switch normalize(text) {
	case "si", "s", "yes", "claro", "ok", "dale":
		return true
	}
	return false
}

// isNo reports whether the message is a negative answer.
func isNo(text string) bool {
	switch normalize(text) {
	case "no", "n":
		return true
	}
	return false
}

// parseIndex parses a bare positive integer, as used for numbered selections.
// Only digits are accepted; Atoi alone would let "+2" through.
func parseIndex(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
