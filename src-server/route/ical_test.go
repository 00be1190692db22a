package route_test

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"emailtoics/src-server/route"
	"emailtoics/src-server/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const teamSync = `{"summary":"Team sync","start_date":"2024-06-03","start_time":"14:00","timezone":"America/New_York","location":"Room 4"}`

func newServer(t *testing.T, env map[string]string) *httptest.Server {
	t.Helper()
	cfg, err := utils.LoadConfig(func(key string) string { return env[key] })
	if err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	as, err := utils.NewAppStateWith(cfg, bun.NewDB(db, sqlitedialect.New()))
	if err != nil {
		t.Fatal(err)
	}

	muxer := http.NewServeMux()
	route.Ical(muxer, as)
	srv := httptest.NewServer(muxer)
	t.Cleanup(func() {
		srv.Close()
		as.GracefulShutdown()
	})
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(data)
}

func TestPostIcs(t *testing.T) {
	srv := newServer(t, nil)

	// case: request wrapper
	func() {
		resp, body := post(t, srv.URL+"/api/ics", `{"events":`+teamSync+`,"from_email":"bot@example.com","method":"request"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "text/calendar; charset=utf-8" {
			t.Errorf("unexpected content type %q", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="team-sync.ics"` {
			t.Errorf("unexpected content disposition %q", cd)
		}
		for _, want := range []string{
			"BEGIN:VCALENDAR\r\n",
			"METHOD:REQUEST\r\n",
			"SUMMARY:Team sync\r\n",
			"DTSTART;TZID=America/New_York:20240603T140000\r\n",
			"mailto:bot@example.com",
			"END:VCALENDAR\r\n",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("%q missing from\n%s", want, body)
			}
		}
	}()

	// case: bare event array
	func() {
		resp, body := post(t, srv.URL+"/api/ics", `[`+teamSync+`,{"summary":"Offsite","start_date":"2024-06-10"}]`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if n := strings.Count(body, "BEGIN:VEVENT\r\n"); n != 2 {
			t.Errorf("expected 2 events, got %d", n)
		}
		if !strings.Contains(body, "DTSTART;VALUE=DATE:20240610\r\n") {
			t.Errorf("all-day event not serialized as a date:\n%s", body)
		}
	}()

	// case: errors
	for _, tc := range []struct {
		name   string
		body   string
		status int
	}{
		{"missing summary", `{"start_date":"2024-06-03"}`, http.StatusBadRequest},
		{"no events", `[]`, http.StatusBadRequest},
		{"not json", `summary: lunch`, http.StatusBadRequest},
		{"bad date", `{"summary":"Lunch","start_date":"zzz qqq"}`, http.StatusBadRequest},
		{"bad method", `{"events":` + teamSync + `,"method":"CANCEL"}`, http.StatusBadRequest},
	} {
		resp, body := post(t, srv.URL+"/api/ics", tc.body)
		if resp.StatusCode != tc.status {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.status, resp.StatusCode, body)
		}
	}
}

func TestPostIcsBodyLimit(t *testing.T) {
	srv := newServer(t, map[string]string{"MAX_BODY_BYTES": "32"})
	resp, body := post(t, srv.URL+"/api/ics", teamSync)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", resp.StatusCode, body)
	}
}

func TestReviewConfirm(t *testing.T) {
	srv := newServer(t, nil)

	// case: recipient is required
	resp, body := post(t, srv.URL+"/api/ics/review", `{"events":`+teamSync+`}`)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "recipient_email") {
		t.Errorf("expected 400 naming recipient_email, got %d: %s", resp.StatusCode, body)
	}

	resp, body = post(t, srv.URL+"/api/ics/review", `{"events":`+teamSync+`,"recipient_email":"me@example.com"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var review struct {
		Token    string `json:"token"`
		Subject  string `json:"subject"`
		Filename string `json:"filename"`
		Events   []struct {
			Summary  string `json:"summary"`
			Location string `json:"location"`
		} `json:"events"`
		ICS string `json:"ics"`
	}
	if err := json.Unmarshal([]byte(body), &review); err != nil {
		t.Fatal(err)
	}
	if review.Token == "" || review.Subject != "Calendar Invite: Team sync" || review.Filename != "team-sync.ics" {
		t.Errorf("unexpected review %+v", review)
	}
	if len(review.Events) != 1 || review.Events[0].Summary != "Team sync" || review.Events[0].Location != "Room 4" {
		t.Errorf("unexpected preview %+v", review.Events)
	}

	resp, body = post(t, srv.URL+"/api/ics/confirm/"+review.Token, "")
	if resp.StatusCode != http.StatusOK || body != review.ICS {
		t.Errorf("confirm returned %d:\n%s", resp.StatusCode, body)
	}

	// case: single use
	resp, _ = post(t, srv.URL+"/api/ics/confirm/"+review.Token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second confirm, got %d", resp.StatusCode)
	}
}

func TestValidateAndParse(t *testing.T) {
	srv := newServer(t, nil)
	_, ics := post(t, srv.URL+"/api/ics", teamSync)

	// case: our own output is valid
	resp, body := post(t, srv.URL+"/api/ics/validate", ics)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"valid":true`) {
		t.Errorf("unexpected report %d: %s", resp.StatusCode, body)
	}

	// case: violations are reported, not rejected
	resp, body = post(t, srv.URL+"/api/ics/validate", "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nEND:VCALENDAR\r\n")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"valid":false`) || !strings.Contains(body, "unbalanced_vevent") {
		t.Errorf("unexpected report %d: %s", resp.StatusCode, body)
	}

	resp, body = post(t, srv.URL+"/api/ics/parse", ics)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"summary":"Team sync"`) {
		t.Errorf("unexpected parse result %d: %s", resp.StatusCode, body)
	}

	// case: not a calendar
	resp, body = post(t, srv.URL+"/api/ics/parse", "hello")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", resp.StatusCode, body)
	}
}
