package ical

import (
	"strings"
	"time"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusTentative Status = "tentative"
)

type Organizer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// One calendar event.
//
// A record built by hand is not trusted: Engine.NewEventRecord validates and
// resolves it, and Engine.Serialize does the same for every record it is given.
// Resolving is idempotent.
type EventRecord struct {
	UID             string     `json:"uid,omitempty"`
	Summary         string     `json:"summary"`
	Description     string     `json:"description,omitempty"`
	HTMLDescription string     `json:"html_description,omitempty"`
	Location        string     `json:"location,omitempty"`
	URL             string     `json:"url,omitempty"`
	DTStart         *DateTime  `json:"dtstart"`
	DTEnd           *DateTime  `json:"dtend,omitempty"`
	Timezone        string     `json:"timezone"`
	IsAllDay        bool       `json:"is_all_day"`
	Status          Status     `json:"status"`
	Organizer       *Organizer `json:"organizer,omitempty"`

	// Set when Timezone was empty or not a valid IANA id and got replaced by
	// the engine default.
	TimezoneSubstituted bool `json:"timezone_substituted,omitempty"`
}

// Validate and resolve a record:
//   - summary and dtstart are required; all missing fields are reported at once
//   - an unknown or empty timezone becomes the default, flagged in
//     TimezoneSubstituted
//   - a date-only dtstart makes the event all-day; an all-day event drops the
//     time of day from dtstart and dtend
//   - dtend must not precede dtstart
//   - an empty status means confirmed
func (e *Engine) NewEventRecord(in EventRecord) (EventRecord, error) {
	out := in
	out.Summary = strings.TrimSpace(in.Summary)

	var missing []string
	if out.Summary == "" {
		missing = append(missing, "summary")
	}
	if in.DTStart == nil || in.DTStart.IsZero() {
		missing = append(missing, "dtstart")
	}
	if len(missing) > 0 {
		return EventRecord{}, NewValidationError("missing required field", missing...)
	}

	out.Timezone, out.TimezoneSubstituted = e.resolveTimezone(in.Timezone)
	if in.TimezoneSubstituted {
		out.TimezoneSubstituted = true
	}

	start := *in.DTStart
	if start.IsDate() {
		out.IsAllDay = true
	}
	if out.IsAllDay {
		start = start.DateOnly()
	}
	out.DTStart = &start

	if in.DTEnd != nil && !in.DTEnd.IsZero() {
		end := *in.DTEnd
		if out.IsAllDay {
			end = end.DateOnly()
		}
		loc := e.location(out.Timezone)
		if end.In(loc).Before(start.In(loc)) {
			return EventRecord{}, NewValidationError("dtend precedes dtstart", "dtend")
		}
		out.DTEnd = &end
	} else {
		out.DTEnd = nil
	}

	switch Status(strings.ToLower(string(in.Status))) {
	case "", StatusConfirmed:
		out.Status = StatusConfirmed
	case StatusTentative:
		out.Status = StatusTentative
	default:
		return EventRecord{}, NewValidationError("unknown status "+string(in.Status), "status")
	}

	if in.Organizer != nil {
		org := *in.Organizer
		org.Email = strings.TrimSpace(org.Email)
		org.Name = strings.TrimSpace(org.Name)
		if org.Email == "" {
			return EventRecord{}, NewValidationError("organizer without email", "organizer.email")
		}
		out.Organizer = &org
	}

	if strings.ContainsAny(in.UID, "\r\n") {
		return EventRecord{}, NewValidationError("uid contains a line break", "uid")
	}

	return out, nil
}

// Return the IANA id to use and whether the input had to be replaced.
func (e *Engine) resolveTimezone(tz string) (string, bool) {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "local") {
		return e.cfg.DefaultTimezone, true
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return e.cfg.DefaultTimezone, true
	}
	return tz, false
}

func (e *Engine) location(tz string) *time.Location {
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc
	}
	return e.defaultLoc
}

func isUTCZone(tz string) bool {
	switch strings.ToUpper(tz) {
	case "UTC", "ETC/UTC", "ZULU", "ETC/ZULU", "GMT", "ETC/GMT", "UCT", "ETC/UCT":
		return true
	}
	return false
}
