package model_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"emailtoics/src-server/model"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a new database
	db.SetMaxOpenConns(1)
	bundb := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })

	if err := model.CreateSchema(bundb); err != nil {
		t.Fatal(err)
	}
	return bundb
}

const ttl = 30 * time.Minute

func TestPendingInvite(t *testing.T) {
	ctx := context.Background()
	bundb := newTestDB(t)

	invite := model.PendingInvite{
		ICSContent:     "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n",
		RecipientEmail: "jane@example.com",
		EmailSubject:   "Calendar Invite: Team Sync",
		Filename:       "team-sync.ics",
	}
	token, err := invite.Put(ctx, bundb)
	if err != nil {
		t.Fatal(err)
	}
	if token == "" || token != invite.Token {
		t.Fatalf("unexpected token %q", token)
	}

	// case: stored
	func() {
		n, err := model.CountPendingInvites(ctx, bundb)
		if err != nil {
			t.Error(err)
		}
		if n != 1 {
			t.Errorf("expected 1 invite, got %d", n)
		}
	}()

	// case: take returns the invite once
	func() {
		got, err := model.TakePendingInvite(ctx, bundb, token, ttl, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if got.ICSContent != invite.ICSContent || got.RecipientEmail != invite.RecipientEmail ||
			got.EmailSubject != invite.EmailSubject || got.Filename != invite.Filename {
			t.Errorf("unexpected invite %+v", got)
		}

		_, err = model.TakePendingInvite(ctx, bundb, token, ttl, time.Now())
		if !errors.Is(err, model.ErrPendingInviteNotFound) {
			t.Errorf("second take: expected ErrPendingInviteNotFound, got %v", err)
		}
	}()

	// case: unknown token
	func() {
		_, err := model.TakePendingInvite(ctx, bundb, "nope", ttl, time.Now())
		if !errors.Is(err, model.ErrPendingInviteNotFound) {
			t.Errorf("expected ErrPendingInviteNotFound, got %v", err)
		}
	}()

	// case: expired but not yet swept
	func() {
		now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		stale := model.PendingInvite{
			ICSContent:     "x",
			RecipientEmail: "jane@example.com",
			EmailSubject:   "s",
			CreatedAt:      now.Add(-ttl - time.Second),
		}
		token, err := stale.Put(ctx, bundb)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := model.TakePendingInvite(ctx, bundb, token, ttl, now); !errors.Is(err, model.ErrPendingInviteExpired) {
			t.Errorf("expected ErrPendingInviteExpired, got %v", err)
		}
		if _, err := model.TakePendingInvite(ctx, bundb, token, ttl, now); !errors.Is(err, model.ErrPendingInviteNotFound) {
			t.Errorf("expired invite was not removed, got %v", err)
		}
	}()
}

func TestDeleteExpiredPendingInvites(t *testing.T) {
	ctx := context.Background()
	bundb := newTestDB(t)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{time.Hour, 45 * time.Minute, 10 * time.Minute, 0} {
		invite := model.PendingInvite{
			ICSContent:     "x",
			RecipientEmail: "jane@example.com",
			EmailSubject:   "s",
			CreatedAt:      now.Add(-age),
		}
		if _, err := invite.Put(ctx, bundb); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := model.DeleteExpiredPendingInvites(ctx, bundb, 30*time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	n, err := model.CountPendingInvites(ctx, bundb)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 left, got %d", n)
	}
}
