package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// strips spaces, collapses inner whitespace, uppercase first letter
func CleanupString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
