package ical

import (
	"fmt"
	"strings"
	"time"
)

// Where a missing DTEND of an all-day event lands.
type AllDayEndPolicy string

const (
	// DTEND is the day after DTSTART; DTEND is exclusive (RFC 5545 convention).
	AllDayEndNextDay AllDayEndPolicy = "next-day"
	// DTEND equals DTSTART.
	AllDayEndSameDay AllDayEndPolicy = "same-day"
)

// How a UID is generated when the caller didn't supply one.
type UIDPolicy string

const (
	// Stable across resubmissions of the same summary, start and location.
	UIDContentHash UIDPolicy = "hash"
	// A new random UUID every time.
	UIDRandom UIDPolicy = "random"
)

const (
	DefaultTimezone        = "America/Los_Angeles"
	DefaultProdID          = "-//Email-to-ICS//EN"
	DefaultUIDDomainSuffix = "email-to-ics.local"
)

// Engine configuration. Everything the engine needs is passed here, nothing is
// read from the environment.
type Config struct {
	DefaultTimezone string
	ProdID          string
	UIDDomainSuffix string
	AllDayEnd       AllDayEndPolicy
	UIDPolicy       UIDPolicy

	// Clock for DTSTAMP; time.Now when nil.
	Now func() time.Time
}

// Fill in the zero values.
func (c Config) withDefaults() Config {
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = DefaultTimezone
	}
	if c.ProdID == "" {
		c.ProdID = DefaultProdID
	}
	if c.UIDDomainSuffix == "" {
		c.UIDDomainSuffix = DefaultUIDDomainSuffix
	}
	if c.AllDayEnd == "" {
		c.AllDayEnd = AllDayEndNextDay
	}
	if c.UIDPolicy == "" {
		c.UIDPolicy = UIDContentHash
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Parse an all-day end policy name as used in config files.
func ParseAllDayEndPolicy(s string) (AllDayEndPolicy, error) {
	switch p := AllDayEndPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case AllDayEndNextDay, AllDayEndSameDay:
		return p, nil
	case "":
		return AllDayEndNextDay, nil
	default:
		return "", fmt.Errorf("unknown all-day end policy %q", s)
	}
}

// Parse a UID policy name as used in config files.
func ParseUIDPolicy(s string) (UIDPolicy, error) {
	switch p := UIDPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case UIDContentHash, UIDRandom:
		return p, nil
	case "":
		return UIDContentHash, nil
	default:
		return "", fmt.Errorf("unknown uid policy %q", s)
	}
}

// The calendar engine: serialize, validate, parse and generate UIDs.
//
// An Engine holds only immutable configuration; all of its methods are safe
// for concurrent use.
type Engine struct {
	cfg        Config
	defaultLoc *time.Location
}

// Create an engine. The default timezone must be a loadable IANA zone.
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, NewMalformedInputError("default_timezone", cfg.DefaultTimezone, err)
	}
	if _, err := ParseAllDayEndPolicy(string(cfg.AllDayEnd)); err != nil {
		return nil, NewMalformedInputError("all_day_end", string(cfg.AllDayEnd), err)
	}
	if _, err := ParseUIDPolicy(string(cfg.UIDPolicy)); err != nil {
		return nil, NewMalformedInputError("uid_policy", string(cfg.UIDPolicy), err)
	}
	if strings.ContainsAny(cfg.ProdID, "\r\n") {
		return nil, NewMalformedInputError("prod_id", cfg.ProdID, nil)
	}

	return &Engine{cfg: cfg, defaultLoc: loc}, nil
}

// Get the effective configuration, defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}
