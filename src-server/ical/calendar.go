// The `ical` package serializes event records into iCalendar documents, checks
// their structure and parses them back.
//
// # References:
// - RFC5545: https://datatracker.ietf.org/doc/html/rfc5545
//
// # Notes:
//   - Only the properties this service emits are understood when parsing;
//     everything else, including VALARM and VTIMEZONE blocks, is skipped.
//   - Timed events are written with a TZID parameter and local wall time; a
//     `Z` suffix is reserved for real UTC instants.
//   - No VTIMEZONE block is embedded; TZID values are IANA ids.
//   - RRULE, attendees and diffing are not supported.
//
// # Example usage:
//
// Build an engine
//
//	engine, _ := ical.NewEngine(ical.Config{DefaultTimezone: "America/New_York"})
//
// Validate a record
//
//	start := ical.NewDateTime(2024, 1, 15, 14, 0, 0)
//	record, _ := engine.NewEventRecord(ical.EventRecord{Summary: "Team Sync", DTStart: &start})
//
// Serialize
//
//	text, _ := engine.Serialize(ical.Document{Events: []ical.EventRecord{record}})
//
// Check and read back
//
//	report := ical.Validate(text)
//	events, _ := engine.Parse(text)
package ical

import (
	"strings"

	"emailtoics/src-server/ical/utils"
)

type Method string

const (
	MethodPublish Method = "PUBLISH"
	MethodRequest Method = "REQUEST"
)

// ContentType of a serialized document.
const ContentType = "text/calendar; charset=utf-8"

// An ordered, non-empty list of events plus the document-level attributes.
type Document struct {
	ProdID string        `json:"prod_id,omitempty"`
	Method Method        `json:"method,omitempty"`
	Events []EventRecord `json:"events"`

	// Organizer for events that don't carry one, with CN "Email-to-ICS".
	// Not written when empty.
	FromEmail string `json:"from_email,omitempty"`
}

// CN of the organizer derived from Document.FromEmail.
const FallbackOrganizerName = "Email-to-ICS"

// Marshal a Document into an iCalendar string.
//
// Every record is resolved with NewEventRecord first. Missing DTEND values are
// filled by the duration policy and missing UIDs by the UID generator. The
// result is either a complete CRLF-terminated document or an error.
func (e *Engine) Serialize(doc Document) (string, error) {
	if len(doc.Events) == 0 {
		return "", NewValidationError("document has no events", "events")
	}

	method := Method(strings.ToUpper(strings.TrimSpace(string(doc.Method))))
	switch method {
	case "":
		method = MethodPublish
	case MethodPublish, MethodRequest:
	default:
		return "", NewValidationError("unsupported method "+string(doc.Method), "method")
	}

	prodID := strings.TrimSpace(doc.ProdID)
	if prodID == "" {
		prodID = e.cfg.ProdID
	}
	if strings.ContainsAny(prodID, "\r\n") {
		return "", NewValidationError("prod_id contains a line break", "prod_id")
	}

	records := make([]EventRecord, len(doc.Events))
	for i, in := range doc.Events {
		r, err := e.NewEventRecord(in)
		if err != nil {
			return "", err
		}
		records[i] = r
	}
	uids, err := e.assignUIDs(records)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	writer := utils.Split75wrapper(sb.WriteString)
	var writeErr error
	write := func(line string) {
		if writeErr != nil {
			return
		}
		if _, err := writer(line); err != nil {
			writeErr = err
		}
	}

	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:" + prodID)
	write("CALSCALE:GREGORIAN")
	write("METHOD:" + string(method))

	stamp, err := utils.FormatUTC(e.cfg.Now())
	if err != nil {
		return "", NewSerializationError("can't format DTSTAMP", map[string]any{"err": err})
	}

	for i, r := range records {
		lines, err := e.eventLines(r, uids[i], stamp, doc.FromEmail)
		if err != nil {
			return "", err
		}
		for _, line := range lines {
			write(line)
		}
	}
	write("END:VCALENDAR")

	if writeErr != nil {
		return "", NewSerializationError("can't write content line", map[string]any{"err": writeErr})
	}

	out := sb.String()
	if line, err := utils.CheckFolded(out); err != nil {
		return "", NewSerializationError("folded output is invalid", map[string]any{
			"line": line,
			"err":  err,
		})
	}
	return out, nil
}

// Build the unfolded content lines of one VEVENT.
func (e *Engine) eventLines(r EventRecord, uid, stamp, fromEmail string) ([]string, error) {
	lines := make([]string, 0, 14)
	lines = append(lines,
		"BEGIN:VEVENT",
		"UID:"+uid,
		"DTSTAMP:"+stamp,
		"SUMMARY:"+utils.EscapeText(r.Summary),
	)
	if r.Description != "" {
		lines = append(lines, "DESCRIPTION:"+utils.EscapeText(r.Description))
	}
	if r.Location != "" {
		lines = append(lines, "LOCATION:"+utils.EscapeText(r.Location))
	}
	if r.URL != "" {
		if strings.ContainsAny(r.URL, "\r\n") {
			return nil, NewValidationError("url contains a line break", "url")
		}
		lines = append(lines, "URL:"+r.URL)
	}

	start, err := e.dateProperty("DTSTART", r, *r.DTStart)
	if err != nil {
		return nil, err
	}
	end, err := e.dateProperty("DTEND", r, e.EffectiveEnd(r))
	if err != nil {
		return nil, err
	}
	lines = append(lines, start, end)
	lines = append(lines, "STATUS:"+strings.ToUpper(string(r.Status)))

	organizer := r.Organizer
	if organizer == nil && strings.TrimSpace(fromEmail) != "" {
		organizer = &Organizer{Email: fromEmail, Name: FallbackOrganizerName}
	}
	if organizer != nil {
		cn, err := utils.NewCommonName(organizer.Name, organizer.Email)
		if err != nil {
			return nil, NewValidationError(err.Error(), "organizer.email")
		}
		lines = append(lines, "ORGANIZER"+cn)
	}

	if r.HTMLDescription != "" {
		lines = append(lines, "X-ALT-DESC;FMTTYPE=text/html:"+utils.EscapeText(r.HTMLDescription))
	}
	lines = append(lines, "END:VEVENT")
	return lines, nil
}

// Format DTSTART/DTEND:
//   - all-day: NAME;VALUE=DATE:YYYYMMDD
//   - UTC instant or UTC zone: NAME:YYYYMMDDTHHMMSSZ
//   - otherwise: NAME;TZID=zone:YYYYMMDDTHHMMSS
func (e *Engine) dateProperty(name string, r EventRecord, d DateTime) (string, error) {
	switch {
	case r.IsAllDay:
		v, err := utils.FormatDate(d.Wall())
		if err != nil {
			return "", NewSerializationError("can't format date", map[string]any{"property": name, "err": err})
		}
		return name + ";VALUE=DATE:" + v, nil
	case d.IsUTC() || isUTCZone(r.Timezone):
		v, err := utils.FormatUTC(d.Wall())
		if err != nil {
			return "", NewSerializationError("can't format date-time", map[string]any{"property": name, "err": err})
		}
		return name + ":" + v, nil
	default:
		v, err := utils.FormatLocal(d.Wall())
		if err != nil {
			return "", NewSerializationError("can't format date-time", map[string]any{"property": name, "err": err})
		}
		return name + ";TZID=" + r.Timezone + ":" + v, nil
	}
}
