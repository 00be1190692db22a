package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxLineOctets is the RFC 5545 limit for one physical content line,
	// excluding the CRLF terminator.
	MaxLineOctets = 75
	CRLF          = "\r\n"
)

// Fold a single logical content line (without terminator) into physical lines
// of at most 75 octets. Continuation lines start with a single space, which
// counts toward their limit. A cut never lands inside a multi-byte UTF-8
// sequence nor between a backslash and the character it escapes.
//
//	FoldLine("DESCRIPTION:" + strings.Repeat("a", 70))
//
// Output:
//
//	"DESCRIPTION:aaa...a\r\n aaaaaaa"
func FoldLine(line string) string {
	if len(line) <= MaxLineOctets {
		return line
	}

	var sb strings.Builder
	sb.Grow(len(line) + len(line)/MaxLineOctets*3)

	limit := MaxLineOctets
	width := 0
	for i := 0; i < len(line); {
		n := unitLen(line, i)
		if width+n > limit {
			sb.WriteString(CRLF)
			sb.WriteByte(' ')
			limit = MaxLineOctets - 1
			width = 0
		}
		sb.WriteString(line[i : i+n])
		width += n
		i += n
	}
	return sb.String()
}

// unitLen returns the length of the indivisible unit starting at line[i]:
// an escape pair, or one UTF-8 encoded rune.
func unitLen(line string, i int) int {
	if line[i] == '\\' && i+1 < len(line) {
		_, size := utf8.DecodeRuneInString(line[i+1:])
		return 1 + size
	}
	_, size := utf8.DecodeRuneInString(line[i:])
	return size
}

// Transform a normal writer into a writer that folds every content line it
// receives. Each call must carry exactly one logical line without its
// terminator; the CRLF is appended by the wrapper. Example:
//
//	var sb strings.Builder
//	writer := Split75wrapper(sb.WriteString)
//	writer("SUMMARY:Hello")
//	fmt.Print(sb.String())
//
// Output:
//
//	"SUMMARY:Hello\r\n"
func Split75wrapper(writer func(string) (int, error)) func(string) (int, error) {
	return func(line string) (int, error) {
		if strings.ContainsAny(line, "\r\n") {
			return 0, fmt.Errorf("content line contains a raw line break: %q", line)
		}
		folded := FoldLine(line)
		if _, err := writer(folded + CRLF); err != nil {
			return 0, err
		}
		return len(line), nil
	}
}

// Check that every physical line of a folded document respects the 75 octet
// limit and does not end in the middle of an escape pair. Returns the 1-based
// number of the first offending physical line, or 0.
func CheckFolded(doc string) (int, error) {
	lines := strings.Split(strings.TrimSuffix(doc, CRLF), CRLF)
	for idx, line := range lines {
		if len(line) > MaxLineOctets {
			return idx + 1, fmt.Errorf("line is %d octets long", len(line))
		}
		if !utf8.ValidString(line) {
			return idx + 1, fmt.Errorf("line is not valid UTF-8")
		}
		if idx+1 < len(lines) && strings.HasPrefix(lines[idx+1], " ") && endsInOpenEscape(line) {
			return idx + 1, fmt.Errorf("fold splits an escape sequence")
		}
	}
	return 0, nil
}

func endsInOpenEscape(line string) bool {
	trailing := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		trailing++
	}
	return trailing%2 == 1
}
