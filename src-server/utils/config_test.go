package utils_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emailtoics/src-server/ical"
	"emailtoics/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func env(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadConfig(t *testing.T) {
	// case: defaults
	func() {
		cfg, err := utils.LoadConfig(env(nil))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.GetPort() != "8080" || cfg.GetPendingTTL() != 30*time.Minute ||
			cfg.GetPendingSweepCron() != "*/5 * * * *" || cfg.GetDiscordAppToken() != "" {
			t.Errorf("unexpected defaults %+v", cfg)
		}
		ec := cfg.GetEngineConfig()
		if ec.DefaultTimezone != ical.DefaultTimezone || ec.AllDayEnd != ical.AllDayEndNextDay || ec.UIDPolicy != ical.UIDContentHash {
			t.Errorf("unexpected engine defaults %+v", ec)
		}
	}()

	// case: file values, overridden by env
	func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := strings.Join([]string{
			"port: \"9000\"",
			"engine:",
			"  default_timezone: Europe/Paris",
			"  all_day_end: same-day",
			"  uid_policy: random",
			"pending:",
			"  ttl: 1h",
		}, "\n")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := utils.LoadConfig(env(map[string]string{
			"CONFIG_FILE":      path,
			"DEFAULT_TIMEZONE": "Asia/Tokyo",
		}))
		if err != nil {
			t.Fatal(err)
		}
		ec := cfg.GetEngineConfig()
		if cfg.GetPort() != "9000" || cfg.GetPendingTTL() != time.Hour {
			t.Errorf("file values ignored: %s %s", cfg.GetPort(), cfg.GetPendingTTL())
		}
		if ec.DefaultTimezone != "Asia/Tokyo" || ec.AllDayEnd != ical.AllDayEndSameDay || ec.UIDPolicy != ical.UIDRandom {
			t.Errorf("unexpected engine config %+v", ec)
		}
	}()

	// case: every invalid value is reported
	func() {
		_, err := utils.LoadConfig(env(map[string]string{
			"DEFAULT_TIMEZONE":   "Mars/Olympus",
			"PENDING_TTL":        "soon",
			"PENDING_SWEEP_CRON": "every minute",
			"UID_POLICY":         "sequential",
			"DISCORD_APP_TOKEN":  "abcdef",
		}))
		if err == nil {
			t.Fatal("expected an error")
		}
		for _, want := range []string{"DEFAULT_TIMEZONE", "PENDING_TTL", "PENDING_SWEEP_CRON", "UID_POLICY", "DISCORD_CLIENT_ID"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("%s not reported in %v", want, err)
			}
		}
	}()
}

func newTestAppState(t *testing.T) *utils.AppState {
	t.Helper()
	cfg, err := utils.LoadConfig(env(nil))
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
	return as
}

func TestAppState(t *testing.T) {
	as := newTestAppState(t)
	if as.Engine == nil || as.Converter == nil || as.When == nil || as.DgSession != nil {
		t.Fatalf("incomplete app state %+v", as)
	}

	// case: command registry
	func() {
		as.AddAppCmdInfo("ping", &discordgo.ApplicationCommand{Name: "ping"})
		as.AddAppCmdHandler("ping", func(s *discordgo.Session, i *discordgo.InteractionCreate) error { return nil })

		count := 0
		as.IterateAppCmdInfo(func(k string, v *discordgo.ApplicationCommand) { count++ })
		if count != 1 {
			t.Errorf("expected 1 command, got %d", count)
		}
		as.NukeAppCmdInfo()
		count = 0
		as.IterateAppCmdInfo(func(k string, v *discordgo.ApplicationCommand) { count++ })
		if count != 0 {
			t.Error("command info not cleared")
		}

		if _, ok := as.GetAppCmdHandler("ping"); !ok {
			t.Error("handler missing")
		}
		as.RemoveAppCmdHandler("ping")
		if _, ok := as.GetAppCmdHandler("ping"); ok {
			t.Error("handler not removed")
		}
	}()

	// case: metric reports never block
	func() {
		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				as.MetricChans.Report(as.MetricChans.Serialize, float64(i))
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("Report blocked")
		}
	}()

	// case: shutdown closes every shutdown channel
	func() {
		ch := as.CreateGracefulShutdownChan()
		as.GracefulShutdown()
		select {
		case <-*ch:
		default:
			t.Error("shutdown channel still open")
		}
	}()
}

func TestCleanupString(t *testing.T) {
	cases := map[string]string{
		"  team   sync \n":  "Team sync",
		"SF Opera: Carmen": "SF Opera: Carmen",
		"élan":             "Élan",
		"":                 "",
	}
	for in, want := range cases {
		if got := utils.CleanupString(in); got != want {
			t.Errorf("CleanupString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetchAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.ics":
			w.Write([]byte("BEGIN:VCALENDAR\r\n"))
		case "/big.ics":
			w.Write([]byte(strings.Repeat("x", 100)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	if got, err := utils.FetchAttachment(ctx, srv.URL+"/ok.ics", 64); err != nil || got != "BEGIN:VCALENDAR\r\n" {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := utils.FetchAttachment(ctx, srv.URL+"/big.ics", 64); err == nil {
		t.Error("oversized attachment accepted")
	}
	if _, err := utils.FetchAttachment(ctx, srv.URL+"/missing.ics", 64); err == nil {
		t.Error("404 accepted")
	}
}
