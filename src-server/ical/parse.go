package ical

import (
	"strings"

	"emailtoics/src-server/ical/utils"
)

// Unmarshal an iCalendar document into event records. See ParseDocument.
func (e *Engine) Parse(text string) ([]EventRecord, error) {
	doc, err := e.ParseDocument(text)
	if err != nil {
		return nil, err
	}
	return doc.Events, nil
}

// Unmarshal an iCalendar document into a Document.
//
// Only the properties Serialize writes are read back; unknown properties and
// nested components (VALARM, VTIMEZONE, ...) are skipped. An event without a
// usable SUMMARY or DTSTART is dropped instead of failing the whole parse.
// A missing DTEND is left nil. The only hard failure is a text that has no
// BEGIN:VCALENDAR line.
func (e *Engine) ParseDocument(text string) (Document, error) {
	lines := utils.UnfoldLines(text)

	begin := -1
	for i, line := range lines {
		if isMarker(line, "BEGIN", "VCALENDAR") {
			begin = i
			break
		}
	}
	if begin < 0 {
		return Document{}, NewParseError("missing BEGIN:VCALENDAR", 0)
	}

	var doc Document
	// component names below VCALENDAR, innermost last
	var stack []string
	var current *eventBuilder

	for _, line := range lines[begin+1:] {
		cl, err := utils.SplitContentLine(line)
		if err != nil {
			continue
		}

		switch cl.Name {
		case "BEGIN":
			name := strings.ToUpper(strings.TrimSpace(cl.Value))
			if name == "VEVENT" && len(stack) == 0 {
				current = &eventBuilder{}
			}
			stack = append(stack, name)
			continue
		case "END":
			name := strings.ToUpper(strings.TrimSpace(cl.Value))
			if len(stack) == 0 {
				if name == "VCALENDAR" {
					return doc, nil
				}
				continue
			}
			if stack[len(stack)-1] != name {
				// unbalanced foreign input; close up to the matching block
				for len(stack) > 0 && stack[len(stack)-1] != name {
					stack = stack[:len(stack)-1]
				}
				if len(stack) == 0 {
					continue
				}
			}
			stack = stack[:len(stack)-1]
			if name == "VEVENT" && len(stack) == 0 && current != nil {
				if r, ok := current.build(e); ok {
					doc.Events = append(doc.Events, r)
				}
				current = nil
			}
			continue
		}

		switch {
		case len(stack) == 0:
			switch cl.Name {
			case "PRODID":
				doc.ProdID = cl.Value
			case "METHOD":
				doc.Method = Method(strings.ToUpper(cl.Value))
			}
		case len(stack) == 1 && stack[0] == "VEVENT" && current != nil:
			current.add(cl)
		}
	}

	return doc, nil
}

func isMarker(line, key, value string) bool {
	k, v, ok := strings.Cut(line, ":")
	return ok && strings.EqualFold(strings.TrimSpace(k), key) && strings.EqualFold(strings.TrimSpace(v), value)
}

// Collects the properties of one VEVENT.
type eventBuilder struct {
	record EventRecord
	start  *utils.PropertyTime
	end    *utils.PropertyTime
}

func (b *eventBuilder) add(cl utils.ContentLine) {
	switch cl.Name {
	case "UID":
		b.record.UID = strings.TrimSpace(cl.Value)
	case "SUMMARY":
		b.record.Summary = utils.UnescapeText(cl.Value)
	case "DESCRIPTION":
		b.record.Description = utils.UnescapeText(cl.Value)
	case "LOCATION":
		b.record.Location = utils.UnescapeText(cl.Value)
	case "URL":
		b.record.URL = strings.TrimSpace(cl.Value)
	case "STATUS":
		if strings.EqualFold(strings.TrimSpace(cl.Value), "TENTATIVE") {
			b.record.Status = StatusTentative
		} else {
			b.record.Status = StatusConfirmed
		}
	case "ORGANIZER":
		email := strings.TrimSpace(cl.Value)
		if len(email) >= 7 && strings.EqualFold(email[:7], "mailto:") {
			email = email[7:]
		}
		if email != "" {
			b.record.Organizer = &Organizer{Email: email, Name: cl.Param("CN")}
		}
	case "X-ALT-DESC":
		fmtType := cl.Param("FMTTYPE")
		if fmtType == "" || strings.EqualFold(fmtType, "text/html") {
			b.record.HTMLDescription = utils.UnescapeText(cl.Value)
		}
	case "DTSTART":
		if pt, err := utils.ParsePropertyTime(cl); err == nil {
			b.start = &pt
		}
	case "DTEND":
		if pt, err := utils.ParsePropertyTime(cl); err == nil {
			b.end = &pt
		}
	}
}

// Turn the collected properties into a record; false drops the event.
func (b *eventBuilder) build(e *Engine) (EventRecord, bool) {
	r := b.record
	r.Summary = strings.TrimSpace(r.Summary)
	if r.Summary == "" || b.start == nil {
		return EventRecord{}, false
	}

	start := fromPropertyTime(*b.start)
	r.DTStart = &start
	r.IsAllDay = b.start.Kind == utils.KindDate

	switch {
	case b.start.TZID != "":
		r.Timezone = b.start.TZID
	case b.start.Kind == utils.KindUTC:
		r.Timezone = "UTC"
	}

	if b.end != nil {
		end := fromPropertyTime(*b.end)
		if r.IsAllDay {
			end = end.DateOnly()
		}
		r.DTEnd = &end
	}

	resolved, err := e.NewEventRecord(r)
	if err != nil {
		// only an inverted DTEND can fail here; keep the event without it
		r.DTEnd = nil
		if resolved, err = e.NewEventRecord(r); err != nil {
			return EventRecord{}, false
		}
	}
	return resolved, true
}

func fromPropertyTime(pt utils.PropertyTime) DateTime {
	w := pt.Wall
	switch pt.Kind {
	case utils.KindDate:
		return NewDate(w.Year(), w.Month(), w.Day())
	case utils.KindUTC:
		return NewUTCDateTime(w)
	default:
		return NewLocalDateTime(w)
	}
}
