package ical_test

import (
	"strings"
	"testing"

	"emailtoics/src-server/ical"
)

func codes(r ical.Report) []ical.ViolationCode {
	out := make([]ical.ViolationCode, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Code)
	}
	return out
}

func hasCode(r ical.Report, code ical.ViolationCode) bool {
	for _, v := range r.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	valid := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Email-to-ICS//EN",
		"BEGIN:VEVENT",
		"UID:1@x",
		"DTSTART;VALUE=DATE:20240704",
		"SUMMARY:Holiday",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	// case: valid document
	func() {
		r := ical.Validate(valid)
		if !r.Valid || len(r.Violations) != 0 {
			t.Errorf("expected valid, got %v", codes(r))
		}
	}()

	// case: empty input
	func() {
		r := ical.Validate("")
		if r.Valid {
			t.Error("empty input reported valid")
		}
		for _, code := range []ical.ViolationCode{
			ical.ViolationUnbalancedCalendar,
			ical.ViolationMissingVersion,
			ical.ViolationNoEvents,
		} {
			if !hasCode(r, code) {
				t.Errorf("missing %s in %v", code, codes(r))
			}
		}
	}()

	// case: missing END:VCALENDAR
	func() {
		r := ical.Validate(strings.TrimSuffix(valid, "END:VCALENDAR\r\n"))
		if r.Valid || !hasCode(r, ical.ViolationUnbalancedCalendar) {
			t.Errorf("expected unbalanced calendar, got %v", codes(r))
		}
	}()

	// case: wrong version
	func() {
		r := ical.Validate(strings.Replace(valid, "VERSION:2.0", "VERSION:1.0", 1))
		if !hasCode(r, ical.ViolationMissingVersion) {
			t.Errorf("expected missing version, got %v", codes(r))
		}
	}()

	// case: unterminated event
	func() {
		r := ical.Validate(strings.Replace(valid, "END:VEVENT\r\n", "", 1))
		if !hasCode(r, ical.ViolationUnbalancedEvent) {
			t.Errorf("expected unbalanced event, got %v", codes(r))
		}
	}()

	// case: event without required properties; the alarm's properties
	// don't count
	func() {
		text := strings.Join([]string{
			"BEGIN:VCALENDAR",
			"VERSION:2.0",
			"BEGIN:VEVENT",
			"BEGIN:VALARM",
			"UID:alarm",
			"SUMMARY:alarm",
			"DTSTART:20240101T000000Z",
			"END:VALARM",
			"END:VEVENT",
			"END:VCALENDAR",
		}, "\r\n")
		r := ical.Validate(text)
		for _, code := range []ical.ViolationCode{
			ical.ViolationMissingUID,
			ical.ViolationMissingDTStart,
			ical.ViolationMissingSummary,
		} {
			if !hasCode(r, code) {
				t.Errorf("missing %s in %v", code, codes(r))
			}
		}
		for _, v := range r.Violations {
			if v.Code == ical.ViolationMissingUID && v.Line != 3 {
				t.Errorf("expected line 3, got %d", v.Line)
			}
		}
	}()

	// case: folded lines are unfolded first
	func() {
		folded := strings.Replace(valid, "SUMMARY:Holiday", "SUMM\r\n ARY:Holiday", 1)
		if r := ical.Validate(folded); !r.Valid {
			t.Errorf("folded SUMMARY not recognized: %v", codes(r))
		}
	}()
}
