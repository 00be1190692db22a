package ical

import (
	"fmt"
	"strings"
	"unicode"
)

// Name of the attachment when no summary gives a better one.
const DefaultAttachmentFilename = "event.ics"

// Create the subject line of the mail carrying the invite:
// "Calendar Invite: <summary>" for one event, "Calendar Invites: <n> events"
// otherwise.
func EmailSubject(events []EventRecord) string {
	switch len(events) {
	case 0:
		return "Calendar Invite"
	case 1:
		return "Calendar Invite: " + strings.Join(strings.Fields(events[0].Summary), " ")
	default:
		return fmt.Sprintf("Calendar Invites: %d events", len(events))
	}
}

// Create the attachment filename: a lowercase slug of the first summary, or
// event.ics when nothing usable is left.
func AttachmentFilename(events []EventRecord) string {
	if len(events) == 0 {
		return DefaultAttachmentFilename
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(events[0].Summary) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
		if sb.Len() >= 60 {
			break
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return DefaultAttachmentFilename
	}
	return slug + ".ics"
}
