package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	datePattern     = regexp.MustCompile(`^\d{4}\d{2}\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}\d{2}\d{2}T\d{2}\d{2}\d{2}`)
	fractionPattern = regexp.MustCompile(`^\.\d+`)
)

type ValueKind int

const (
	KindDate  ValueKind = iota // YYYYMMDD
	KindLocal                  // YYYYMMDDTHHMMSS, optionally qualified by TZID
	KindUTC                    // YYYYMMDDTHHMMSSZ
)

// The decoded value of a DTSTART/DTEND-like property.
//
// Wall carries the civil date and time in the UTC location; for KindUTC it is
// also the instant. TZID is the raw parameter, if any, and is not validated.
type PropertyTime struct {
	Kind ValueKind
	Wall time.Time
	TZID string
}

// Parse the value of a date or date-time property. For example:
//   - DTSTART;TZID=Europe/Paris:20220101T000000
//   - DTEND:20220101T000000Z
//   - DTSTART;VALUE=DATE:20220101
//
// A date-time only needs its first 15 characters to be YYYYMMDDTHHMMSS.
// Fractional seconds are dropped; the value is UTC when what is left starts
// with Z, local otherwise (20240115T140000.000Z is UTC, 20240115T140000+01 is
// local).
func ParsePropertyTime(cl ContentLine) (PropertyTime, error) {
	value := strings.TrimSpace(cl.Value)
	out := PropertyTime{TZID: cl.Param("TZID")}

	switch {
	case datePattern.MatchString(value):
		result, err := time.Parse("20060102", value)
		if err != nil {
			return PropertyTime{}, err
		}
		out.Kind = KindDate
		out.Wall = result
	case strings.EqualFold(cl.Param("VALUE"), "DATE") && len(value) >= 8 && datePattern.MatchString(value[:8]):
		result, err := time.Parse("20060102", value[:8])
		if err != nil {
			return PropertyTime{}, err
		}
		out.Kind = KindDate
		out.Wall = result
	case dateTimePattern.MatchString(value):
		result, err := time.Parse("20060102T150405", value[:15])
		if err != nil {
			return PropertyTime{}, err
		}
		out.Wall = result
		out.Kind = KindLocal
		rest := fractionPattern.ReplaceAllString(value[15:], "")
		if strings.HasPrefix(rest, "Z") || strings.HasPrefix(rest, "z") {
			out.Kind = KindUTC
			out.TZID = ""
		}
	default:
		return PropertyTime{}, fmt.Errorf("invalid date-time format: %q", value)
	}
	return out, nil
}
