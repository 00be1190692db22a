package utils

import (
	"fmt"
	"strings"
)

// Create the parameter and value part of an ORGANIZER property, e.g.
//
//	;CN=Jane Doe:mailto:jane@example.com
//
// The common name is double-quoted when it contains `:`, `;` or `,`. Double
// quotes and control characters are not representable in a parameter value
// and are removed. An empty name omits the CN parameter.
func NewCommonName(name string, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email must not be empty")
	}
	if strings.ContainsAny(email, " \t\r\n:;,\"") {
		return "", fmt.Errorf("email contains a forbidden character: %q", email)
	}

	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	if name == "" {
		return ":mailto:" + email, nil
	}
	if strings.ContainsAny(name, ":;,") {
		name = `"` + name + `"`
	}
	return fmt.Sprintf(";CN=%s:mailto:%s", name, email), nil
}
