// The `intake` package turns the loosely typed events produced by the upstream
// extractor (an LLM reading an email) into ical.EventRecord values.
//
// The extractor is not trusted: every object is checked with struct tags,
// dates are read strictly first and then as natural language, and a single
// object is accepted where an array is expected.
package intake

import (
	"bytes"
	"encoding/json"
	"fmt"

	"emailtoics/src-server/ical"
)

type Organizer struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// One event as the extractor reports it. Dates and times are separate strings
// and may be ISO formatted or free text ("next friday", "3pm").
type ExtractedEvent struct {
	Summary         string     `json:"summary" validate:"required"`
	Location        string     `json:"location,omitempty"`
	StartDate       string     `json:"start_date" validate:"required"`
	StartTime       string     `json:"start_time,omitempty"`
	EndDate         string     `json:"end_date,omitempty"`
	EndTime         string     `json:"end_time,omitempty"`
	Description     string     `json:"description,omitempty"`
	HTMLDescription string     `json:"html_description,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	URL             string     `json:"url,omitempty" validate:"omitempty,url"`
	IsAllDay        bool       `json:"is_all_day,omitempty"`
	Status          string     `json:"status,omitempty" validate:"omitempty,oneof=confirmed tentative CONFIRMED TENTATIVE"`
	Organizer       *Organizer `json:"organizer,omitempty"`
	UID             string     `json:"uid,omitempty"`
}

// Decode either one event object or an array of them. The result is never
// empty when err is nil.
func DecodeEvents(raw []byte) ([]ExtractedEvent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ical.NewValidationError("no events", "events")
	}

	var events []ExtractedEvent
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, ical.NewMalformedInputError("events", string(raw), fmt.Errorf("can't decode event array: %w", err))
		}
	case '{':
		var single ExtractedEvent
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, ical.NewMalformedInputError("events", string(raw), fmt.Errorf("can't decode event: %w", err))
		}
		events = []ExtractedEvent{single}
	default:
		return nil, ical.NewMalformedInputError("events", string(raw), fmt.Errorf("expected an object or an array"))
	}

	if len(events) == 0 {
		return nil, ical.NewValidationError("no events", "events")
	}
	return events, nil
}
