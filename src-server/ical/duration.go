package ical

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const (
	DefaultEventDuration     = 2 * time.Hour
	OperaEventDuration       = 3 * time.Hour
	AppointmentEventDuration = 30 * time.Minute
)

var (
	shortEventKeywords = []string{"doctor", "appointment"}
	longEventKeywords  = []string{"opera"}
)

// Pick the duration of a timed event that came without an end, from its
// summary. Matching is a case-folded substring search; the short appointment
// rule is checked before the opera rule.
func DefaultDuration(summary string) time.Duration {
	folded := cases.Fold().String(summary)
	for _, kw := range shortEventKeywords {
		if strings.Contains(folded, kw) {
			return AppointmentEventDuration
		}
	}
	for _, kw := range longEventKeywords {
		if strings.Contains(folded, kw) {
			return OperaEventDuration
		}
	}
	return DefaultEventDuration
}

// Get the DTEND to emit for a resolved record: its own, or the default.
func (e *Engine) EffectiveEnd(r EventRecord) DateTime {
	if r.DTEnd != nil && !r.DTEnd.IsZero() {
		return *r.DTEnd
	}
	start := *r.DTStart
	if r.IsAllDay {
		if e.cfg.AllDayEnd == AllDayEndSameDay {
			return start
		}
		return start.AddDays(1)
	}
	return start.Add(DefaultDuration(r.Summary))
}
