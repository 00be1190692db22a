package utils

import "strings"

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", "",
)

// Escape a TEXT property value (RFC 5545 section 3.3.11). Carriage returns are
// dropped; CRLF and LF both become the two characters `\n`.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// Reverse EscapeText. `\N` is accepted as a newline; an unknown escape keeps
// the escaped character and drops the backslash; a trailing lone backslash is
// kept as is.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// Split a document into logical content lines. Both CRLF and bare LF are
// accepted as terminators; a line starting with a space or a tab continues the
// previous one and loses exactly that one leading character. Empty lines are
// dropped.
func UnfoldLines(doc string) []string {
	raw := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Reverse FoldLine on a whole document: remove every CRLF that is followed by
// a single space or tab, keeping all other bytes.
func Unfold(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n ", "")
	return strings.ReplaceAll(doc, "\r\n\t", "")
}
