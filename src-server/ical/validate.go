package ical

import (
	"fmt"
	"strings"

	"emailtoics/src-server/ical/utils"
)

type ViolationCode string

const (
	ViolationUnbalancedCalendar ViolationCode = "unbalanced_vcalendar"
	ViolationMissingVersion     ViolationCode = "missing_version"
	ViolationUnbalancedEvent    ViolationCode = "unbalanced_vevent"
	ViolationNoEvents           ViolationCode = "no_events"
	ViolationMissingUID         ViolationCode = "missing_uid"
	ViolationMissingDTStart     ViolationCode = "missing_dtstart"
	ViolationMissingSummary     ViolationCode = "missing_summary"
)

type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
	// 1-based unfolded line the violation refers to, 0 for the whole document.
	Line int `json:"line,omitempty"`
}

type Report struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Check the structure of a serialized document. This is a necessary, not a
// sufficient, correctness check: values and date arithmetic are not looked at.
func Validate(text string) Report {
	lines := utils.UnfoldLines(text)
	violations := []Violation{}
	add := func(code ViolationCode, line int, format string, args ...any) {
		violations = append(violations, Violation{
			Code:    code,
			Message: fmt.Sprintf(format, args...),
			Line:    line,
		})
	}

	calBegin, calEnd := 0, 0
	evBegin, evEnd := 0, 0
	hasVersion := false

	// state of the event block being scanned
	inEvent := false
	eventLine := 0
	var hasUID, hasStart, hasSummary bool
	depth := 0 // nested components inside the event

	for idx, line := range lines {
		lineNo := idx + 1
		name, value := splitNameValue(line)

		switch {
		case name == "BEGIN" && value == "VCALENDAR":
			calBegin++
		case name == "END" && value == "VCALENDAR":
			calEnd++
		case name == "VERSION" && value == "2.0":
			hasVersion = true
		case name == "BEGIN" && value == "VEVENT":
			evBegin++
			if inEvent {
				add(ViolationUnbalancedEvent, lineNo, "BEGIN:VEVENT inside an open event block")
			}
			inEvent, eventLine, depth = true, lineNo, 0
			hasUID, hasStart, hasSummary = false, false, false
		case name == "END" && value == "VEVENT":
			evEnd++
			if !inEvent {
				add(ViolationUnbalancedEvent, lineNo, "END:VEVENT without BEGIN:VEVENT")
				continue
			}
			if !hasUID {
				add(ViolationMissingUID, eventLine, "event has no UID")
			}
			if !hasStart {
				add(ViolationMissingDTStart, eventLine, "event has no DTSTART")
			}
			if !hasSummary {
				add(ViolationMissingSummary, eventLine, "event has no SUMMARY")
			}
			inEvent = false
		case inEvent && name == "BEGIN":
			depth++
		case inEvent && name == "END":
			depth--
		case inEvent && depth == 0:
			switch name {
			case "UID":
				hasUID = value != ""
			case "DTSTART":
				hasStart = value != ""
			case "SUMMARY":
				hasSummary = true
			}
		}
	}

	if calBegin == 0 || calBegin != calEnd {
		add(ViolationUnbalancedCalendar, 0, "BEGIN:VCALENDAR x%d, END:VCALENDAR x%d", calBegin, calEnd)
	}
	if !hasVersion {
		add(ViolationMissingVersion, 0, "VERSION:2.0 not found")
	}
	if evBegin != evEnd {
		add(ViolationUnbalancedEvent, 0, "BEGIN:VEVENT x%d, END:VEVENT x%d", evBegin, evEnd)
	}
	if evBegin == 0 {
		add(ViolationNoEvents, 0, "document has no events")
	}

	return Report{Valid: len(violations) == 0, Violations: violations}
}

// Split an unfolded line into its upper-cased name (parameters dropped) and
// its trimmed value. BEGIN/END values are upper-cased too.
func splitNameValue(line string) (string, string) {
	cl, err := utils.SplitContentLine(line)
	if err != nil {
		return "", ""
	}
	value := strings.TrimSpace(cl.Value)
	if cl.Name == "BEGIN" || cl.Name == "END" {
		value = strings.ToUpper(value)
	}
	return cl.Name, value
}
