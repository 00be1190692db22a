package ical

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// Produce a UID for a resolved record, ignoring any UID it already carries.
//
// With UIDContentHash the result is the first 128 bits of
// SHA-256(summary|dtstart|location), hex encoded, followed by "@" and the
// configured domain suffix, so resubmitting the same event yields the same UID.
// With UIDRandom it is a fresh UUID.
func (e *Engine) GenerateUID(r EventRecord) string {
	return e.generateUID(r, 1)
}

// ordinal > 1 disambiguates logically identical events in one document.
func (e *Engine) generateUID(r EventRecord, ordinal int) string {
	if e.cfg.UIDPolicy == UIDRandom {
		return uuid.NewString() + "@" + e.cfg.UIDDomainSuffix
	}

	var start string
	if r.DTStart != nil {
		start = r.DTStart.String()
	}
	content := r.Summary + "|" + start + "|" + r.Location
	if ordinal > 1 {
		content += "#" + strconv.Itoa(ordinal)
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16]) + "@" + e.cfg.UIDDomainSuffix
}

// Assign UIDs to resolved records in document order. Caller UIDs pass through
// unchanged and must be unique; generated UIDs never collide with them or
// with each other.
func (e *Engine) assignUIDs(records []EventRecord) ([]string, error) {
	uids := make([]string, len(records))
	seen := make(map[string]struct{}, len(records))

	for i, r := range records {
		if r.UID == "" {
			continue
		}
		if _, dup := seen[r.UID]; dup {
			return nil, NewValidationError("duplicate uid "+r.UID, "uid")
		}
		seen[r.UID] = struct{}{}
		uids[i] = r.UID
	}

	for i, r := range records {
		if uids[i] != "" {
			continue
		}
		for ordinal := 1; ; ordinal++ {
			uid := e.generateUID(r, ordinal)
			if _, dup := seen[uid]; !dup {
				seen[uid] = struct{}{}
				uids[i] = uid
				break
			}
		}
	}
	return uids, nil
}
