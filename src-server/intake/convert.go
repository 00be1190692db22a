package intake

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"emailtoics/src-server/ical"

	"github.com/go-playground/validator/v10"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Create the natural language date parser used for free text dates.
func NewWhenParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Converts extracted events into resolved event records. Safe for concurrent
// use.
type Converter struct {
	engine   *ical.Engine
	when     *when.Parser
	validate *validator.Validate
}

// Create a converter. A nil parser means NewWhenParser().
func NewConverter(engine *ical.Engine, w *when.Parser) *Converter {
	if w == nil {
		w = NewWhenParser()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Converter{engine: engine, when: w, validate: v}
}

func (c *Converter) Engine() *ical.Engine {
	return c.engine
}

// Convert every event in order. The first failure aborts the whole batch.
func (c *Converter) ToRecords(events []ExtractedEvent, ref time.Time) ([]ical.EventRecord, error) {
	if len(events) == 0 {
		return nil, ical.NewValidationError("no events", "events")
	}
	records := make([]ical.EventRecord, 0, len(events))
	for i, ev := range events {
		r, err := c.ToRecord(ev, ref)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Convert one extracted event. ref anchors relative dates such as "tomorrow".
//
//   - start_date without start_time makes an all-day event, unless start_date
//     itself carries a time of day
//   - an all-day end_date is the last day of the event; it becomes the
//     exclusive next day unless the engine uses the same-day policy
//   - a timed end without end_date that falls before the start is moved to
//     the next day
func (c *Converter) ToRecord(ev ExtractedEvent, ref time.Time) (ical.EventRecord, error) {
	if err := c.validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldPath(fe.Namespace()))
			}
			return ical.EventRecord{}, ical.NewValidationError("invalid extracted event", fields...)
		}
		return ical.EventRecord{}, fmt.Errorf("can't validate extracted event: %w", err)
	}

	start, err := c.parseDate("start_date", ev.StartDate, ref)
	if err != nil {
		return ical.EventRecord{}, err
	}

	allDay := ev.IsAllDay
	switch {
	case allDay:
		start = start.DateOnly()
	case strings.TrimSpace(ev.StartTime) != "":
		h, m, s, err := c.parseClock("start_time", ev.StartTime, ref)
		if err != nil {
			return ical.EventRecord{}, err
		}
		start = withClock(start, h, m, s)
	case start.IsDate():
		allDay = true
	}

	end, err := c.endOf(ev, start, allDay, ref)
	if err != nil {
		return ical.EventRecord{}, err
	}

	in := ical.EventRecord{
		UID:             strings.TrimSpace(ev.UID),
		Summary:         ev.Summary,
		Description:     ev.Description,
		HTMLDescription: ev.HTMLDescription,
		Location:        strings.TrimSpace(ev.Location),
		URL:             strings.TrimSpace(ev.URL),
		DTStart:         &start,
		DTEnd:           end,
		Timezone:        ev.Timezone,
		IsAllDay:        allDay,
		Status:          ical.Status(strings.ToLower(ev.Status)),
	}
	if ev.Organizer != nil {
		in.Organizer = &ical.Organizer{Email: ev.Organizer.Email, Name: ev.Organizer.Name}
	}
	return c.engine.NewEventRecord(in)
}

func (c *Converter) endOf(ev ExtractedEvent, start ical.DateTime, allDay bool, ref time.Time) (*ical.DateTime, error) {
	endDate := strings.TrimSpace(ev.EndDate)
	endTime := strings.TrimSpace(ev.EndTime)

	if allDay {
		if endDate == "" {
			return nil, nil
		}
		d, err := c.parseDate("end_date", endDate, ref)
		if err != nil {
			return nil, err
		}
		d = d.DateOnly()
		if c.engine.Config().AllDayEnd == ical.AllDayEndNextDay {
			d = d.AddDays(1)
		}
		return &d, nil
	}

	if endDate == "" && endTime == "" {
		return nil, nil
	}

	day := start
	if endDate != "" {
		d, err := c.parseDate("end_date", endDate, ref)
		if err != nil {
			return nil, err
		}
		if !d.IsDate() && endTime == "" {
			return &d, nil
		}
		day = d
	}

	h, m, s := start.Wall().Clock()
	if endTime != "" {
		var err error
		if h, m, s, err = c.parseClock("end_time", endTime, ref); err != nil {
			return nil, err
		}
	}

	end := withClock(day, h, m, s)
	if start.IsUTC() && !end.IsUTC() {
		end = ical.NewUTCDateTime(end.Wall())
	}
	if endDate == "" && end.Wall().Before(start.Wall()) {
		end = end.AddDays(1)
	}
	return &end, nil
}

// Read a date, strictly first, then as natural language relative to ref.
// The natural language result keeps only its calendar date.
func (c *Converter) parseDate(field, value string, ref time.Time) (ical.DateTime, error) {
	value = strings.TrimSpace(value)
	if d, err := ical.ParseDateTime(value); err == nil {
		return d, nil
	}
	result, err := c.when.Parse(value, ref)
	if err != nil {
		return ical.DateTime{}, ical.NewMalformedInputError(field, value, err)
	}
	if result == nil {
		return ical.DateTime{}, ical.NewMalformedInputError(field, value, nil)
	}
	t := result.Time
	return ical.NewDate(t.Year(), t.Month(), t.Day()), nil
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04:05PM",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

// Read a time of day, strictly first, then as natural language.
func (c *Converter) parseClock(field, value string, ref time.Time) (int, int, int, error) {
	value = strings.TrimSpace(value)
	upper := strings.ToUpper(value)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			h, m, s := t.Clock()
			return h, m, s, nil
		}
	}
	result, err := c.when.Parse(value, ref)
	if err != nil {
		return 0, 0, 0, ical.NewMalformedInputError(field, value, err)
	}
	if result == nil {
		return 0, 0, 0, ical.NewMalformedInputError(field, value, nil)
	}
	h, m, s := result.Time.Clock()
	return h, m, s, nil
}

// Put a clock time on the calendar date of d.
func withClock(d ical.DateTime, h, m, s int) ical.DateTime {
	w := d.Wall()
	if d.IsUTC() {
		return ical.NewUTCDateTime(time.Date(w.Year(), w.Month(), w.Day(), h, m, s, 0, time.UTC))
	}
	return ical.NewDateTime(w.Year(), w.Month(), w.Day(), h, m, s)
}

// "ExtractedEvent.organizer.email" -> "organizer.email"
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
