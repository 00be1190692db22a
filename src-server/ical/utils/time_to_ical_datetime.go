package utils

import (
	"fmt"
	"time"
)

// Convert a time to a DATE value: YYYYMMDD
func FormatDate(t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("time is zero")
	}
	return t.Format("20060102"), nil
}

// Convert a wall-clock time to a local DATE-TIME value without any zone
// suffix: YYYYMMDDTHHMMSS. The location of t is ignored.
func FormatLocal(t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("time is zero")
	}
	return t.Format("20060102T150405"), nil
}

// Convert an instant to a UTC DATE-TIME value: YYYYMMDDTHHMMSSZ
func FormatUTC(t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("time is zero")
	}
	return t.UTC().Format("20060102T150405Z"), nil
}
