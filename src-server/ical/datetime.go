package ical

import (
	"encoding/json"
	"strings"
	"time"
)

// A calendar date or a wall-clock date+time.
//
// The value carries no location of its own: a local date-time is interpreted
// in the EventRecord's Timezone. A UTC date-time is an absolute instant.
type DateTime struct {
	wall   time.Time // civil fields, always in time.UTC
	isDate bool
	isUTC  bool
}

func NewDate(year int, month time.Month, day int) DateTime {
	return DateTime{
		wall:   time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		isDate: true,
	}
}

func NewDateTime(year int, month time.Month, day, hour, min, sec int) DateTime {
	return DateTime{wall: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// Take the wall clock of t, dropping its location.
func NewLocalDateTime(t time.Time) DateTime {
	return NewDateTime(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

func NewUTCDateTime(t time.Time) DateTime {
	t = t.UTC().Truncate(time.Second)
	return DateTime{wall: t, isUTC: true}
}

var dateTimeLayouts = []struct {
	layout string
	isDate bool
	isUTC  bool
}{
	{"2006-01-02", true, false},
	{"20060102", true, false},
	{"2006-01-02T15:04:05Z", false, true},
	{"2006-01-02T15:04Z", false, true},
	{"20060102T150405Z", false, true},
	{"2006-01-02T15:04:05", false, false},
	{"2006-01-02T15:04", false, false},
	{"2006-01-02 15:04:05", false, false},
	{"2006-01-02 15:04", false, false},
	{"20060102T150405", false, false},
}

// Parse a date or date-time in one of the ISO 8601 or iCalendar basic forms:
// 2024-01-15, 20240115, 2024-01-15T14:00[:00][Z], 20240115T140000[Z].
// An RFC 3339 value with a numeric offset is converted to a UTC instant.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateTimeLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		switch {
		case l.isDate:
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		case l.isUTC:
			return NewUTCDateTime(t), nil
		default:
			return NewLocalDateTime(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewUTCDateTime(t), nil
	}
	return DateTime{}, NewMalformedInputError("datetime", s, nil)
}

func (d DateTime) IsZero() bool {
	return d.wall.IsZero()
}

// Report whether the value is a calendar date without time of day.
func (d DateTime) IsDate() bool {
	return d.isDate
}

// Report whether the value is an absolute UTC instant.
func (d DateTime) IsUTC() bool {
	return d.isUTC
}

// Get the civil date and time in the UTC location.
func (d DateTime) Wall() time.Time {
	return d.wall
}

// Get the instant this value denotes when its local parts are read in loc.
func (d DateTime) In(loc *time.Location) time.Time {
	if d.isUTC || loc == nil {
		return d.wall
	}
	return time.Date(d.wall.Year(), d.wall.Month(), d.wall.Day(),
		d.wall.Hour(), d.wall.Minute(), d.wall.Second(), 0, loc)
}

// Drop the time of day.
func (d DateTime) DateOnly() DateTime {
	return NewDate(d.wall.Year(), d.wall.Month(), d.wall.Day())
}

// Add a duration to the wall clock, so a 2 hour event spanning a DST change
// still ends two hours later on the clock face.
func (d DateTime) Add(dur time.Duration) DateTime {
	out := d
	out.wall = d.wall.Add(dur)
	return out
}

func (d DateTime) AddDays(days int) DateTime {
	out := d
	out.wall = d.wall.AddDate(0, 0, days)
	return out
}

// Format as ISO 8601: 2024-01-15, 2024-01-15T14:00:00 or 2024-01-15T14:00:00Z.
func (d DateTime) String() string {
	switch {
	case d.IsZero():
		return ""
	case d.isDate:
		return d.wall.Format("2006-01-02")
	case d.isUTC:
		return d.wall.Format("2006-01-02T15:04:05Z")
	default:
		return d.wall.Format("2006-01-02T15:04:05")
	}
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
