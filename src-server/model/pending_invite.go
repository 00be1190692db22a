package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// A serialized invite waiting for the user to confirm it. It is consumed by
// Take and never served twice.
type PendingInvite struct {
	bun.BaseModel `bun:"table:pending_invites"`

	Token          string    `bun:"token,pk"`                    // required
	ICSContent     string    `bun:"ics_content,notnull"`         // required
	RecipientEmail string    `bun:"recipient_email,notnull"`     // required
	EmailSubject   string    `bun:"email_subject,notnull"`       // required
	Filename       string    `bun:"filename,notnull,default:''"` // optional
	CreatedAt      time.Time `bun:"created_at,notnull"`          // required
}

var (
	ErrPendingInviteNotFound = errors.New("pending invite not found")
	ErrPendingInviteExpired  = errors.New("pending invite expired")
)

// Store an invite. A missing Token is generated and a zero CreatedAt is set to
// now; the final token is returned.
func (p *PendingInvite) Put(ctx context.Context, db bun.IDB) (string, error) {
	if p.Token == "" {
		p.Token = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := db.NewInsert().
		Model(p).
		Exec(ctx); err != nil {
		return "", fmt.Errorf("PendingInvite.Put: %w", err)
	}
	return p.Token, nil
}

// Load and delete an invite in one transaction, so a token works once.
// ErrPendingInviteNotFound means the token is unknown or already used.
// ErrPendingInviteExpired means it was created before now - ttl; it is deleted
// all the same.
func TakePendingInvite(ctx context.Context, db *bun.DB, token string, ttl time.Duration, now time.Time) (PendingInvite, error) {
	var invite PendingInvite
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model(&invite).
			Where("token = ?", token).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPendingInviteNotFound
			}
			return err
		}
		res, err := tx.NewDelete().
			Model((*PendingInvite)(nil)).
			Where("token = ?", token).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrPendingInviteNotFound
		}
		return nil
	}); err != nil {
		if errors.Is(err, ErrPendingInviteNotFound) {
			return PendingInvite{}, err
		}
		return PendingInvite{}, fmt.Errorf("TakePendingInvite: %w", err)
	}
	if invite.CreatedAt.Before(now.Add(-ttl)) {
		return PendingInvite{}, ErrPendingInviteExpired
	}
	return invite, nil
}

// Delete invites created before now - ttl; returns how many were removed.
func DeleteExpiredPendingInvites(ctx context.Context, db bun.IDB, ttl time.Duration, now time.Time) (int64, error) {
	res, err := db.NewDelete().
		Model((*PendingInvite)(nil)).
		Where("created_at < ?", now.Add(-ttl).UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredPendingInvites: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredPendingInvites: %w", err)
	}
	return n, nil
}

func CountPendingInvites(ctx context.Context, db bun.IDB) (int, error) {
	n, err := db.NewSelect().
		Model((*PendingInvite)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountPendingInvites: %w", err)
	}
	return n, nil
}
