package ical_test

import (
	"regexp"
	"strings"
	"testing"

	"emailtoics/src-server/ical"
)

var hashUID = regexp.MustCompile(`^[0-9a-f]{32}@email-to-ics\.local$`)

func TestGenerateUID(t *testing.T) {
	engine := newEngine(t, ical.Config{})
	base := ical.EventRecord{
		Summary:  "Team Sync",
		Location: "Room 4",
		DTStart:  dt(2024, 1, 15, 14, 0),
	}

	// case: content hash is stable and well formed
	func() {
		a := engine.GenerateUID(base)
		b := engine.GenerateUID(base)
		if a != b {
			t.Errorf("hash uid not stable: %s != %s", a, b)
		}
		if !hashUID.MatchString(a) {
			t.Errorf("malformed uid %q", a)
		}
	}()

	// case: every hashed field matters
	func() {
		uid := engine.GenerateUID(base)
		for name, change := range map[string]func(r *ical.EventRecord){
			"summary":  func(r *ical.EventRecord) { r.Summary = "Team Sync 2" },
			"location": func(r *ical.EventRecord) { r.Location = "Room 5" },
			"dtstart":  func(r *ical.EventRecord) { r.DTStart = dt(2024, 1, 15, 15, 0) },
		} {
			r := base
			change(&r)
			if engine.GenerateUID(r) == uid {
				t.Errorf("changing %s kept the uid", name)
			}
		}
	}()

	// case: domain suffix is configurable
	func() {
		other := newEngine(t, ical.Config{UIDDomainSuffix: "invites.example.com"})
		if uid := other.GenerateUID(base); !strings.HasSuffix(uid, "@invites.example.com") {
			t.Errorf("unexpected suffix in %q", uid)
		}
	}()

	// case: random policy
	func() {
		random := newEngine(t, ical.Config{UIDPolicy: ical.UIDRandom})
		a, b := random.GenerateUID(base), random.GenerateUID(base)
		if a == b {
			t.Error("random uids repeat")
		}
		if !strings.HasSuffix(a, "@email-to-ics.local") {
			t.Errorf("unexpected suffix in %q", a)
		}
	}()
}

func TestSerializeIdenticalEvents(t *testing.T) {
	engine := newEngine(t, ical.Config{})
	r := ical.EventRecord{Summary: "Standup", DTStart: dt(2024, 1, 15, 9, 0)}

	out, err := engine.Serialize(ical.Document{Events: []ical.EventRecord{r, r, r}})
	if err != nil {
		t.Fatal(err)
	}
	again, err := engine.Serialize(ical.Document{Events: []ical.EventRecord{r, r, r}})
	if err != nil {
		t.Fatal(err)
	}
	if out != again {
		t.Error("hash uids are not deterministic across calls")
	}

	seen := map[string]struct{}{}
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, "UID:") {
			seen[line] = struct{}{}
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct uids, got %d", len(seen))
	}
	if !strings.Contains(out, "UID:"+engine.GenerateUID(r)+"\r\n") {
		t.Error("first event should carry the plain content hash")
	}
}
