package pipeline

import (
	"strings"
	"unicode"
)

var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"for": true, "to": true, "with": true, "that": true, "which": true, "in": true,
	"on": true, "me": true, "my": true, "please": true, "make": true, "build": true,
	"create": true, "write": true, "generate": true, "simple": true, "small": true,
}

const nameWords = 4

// DeriveName turns a prompt into a kebab-case app name from its first
// significant words.
func DeriveName(prompt string) string {
	words := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var picked []string
	for _, w := range words {
		if fillerWords[w] {
			continue
		}
		picked = append(picked, w)
		if len(picked) == nameWords {
			break
		}
	}
	if len(picked) == 0 {
		return "app"
	}
	return strings.Join(picked, "-")
}

// SanitizeName keeps a caller-supplied name usable as a directory name.
func SanitizeName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
