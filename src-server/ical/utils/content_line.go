package utils

import (
	"fmt"
	"strings"
)

// A content line broken into its three parts, e.g.
//
//	DTSTART;TZID=Europe/Paris:20220101T000000
//
// gives Name "DTSTART", Params {"TZID": "Europe/Paris"} and Value
// "20220101T000000". Names and parameter names are upper-cased; quoted
// parameter values are unquoted.
type ContentLine struct {
	Name   string
	Params map[string]string
	Value  string
}

// Get a parameter value by its case-insensitive name.
func (cl ContentLine) Param(name string) string {
	return cl.Params[strings.ToUpper(name)]
}

// Split an unfolded content line. Colons and semicolons inside double-quoted
// parameter values do not terminate the name/parameter section.
func SplitContentLine(line string) (ContentLine, error) {
	cl := ContentLine{Params: make(map[string]string)}

	inQuotes := false
	colon := -1
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon < 0 {
		return cl, fmt.Errorf("must be splitable by ':', got %s", line)
	}

	head := line[:colon]
	cl.Value = line[colon+1:]

	parts := splitParams(head)
	cl.Name = strings.ToUpper(strings.TrimSpace(parts[0]))
	if cl.Name == "" {
		return cl, fmt.Errorf("missing property name in %s", line)
	}
	for _, part := range parts[1:] {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		cl.Params[strings.ToUpper(strings.TrimSpace(kv[0]))] = strings.Trim(kv[1], `"`)
	}
	return cl, nil
}

func splitParams(head string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(head); i++ {
		switch head[i] {
		case '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				parts = append(parts, head[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, head[start:])
}
