package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sara-platform/portal/internal/presence"
)

const (
	touchQuery       = `UPDATE users SET last_activity = ? WHERE id = ?`
	activeSinceQuery = `SELECT id FROM users WHERE is_active = TRUE AND last_activity > ? ORDER BY id`
)

type PresenceRepository struct {
	db *sqlx.DB
}

func NewPresenceRepository(db *sqlx.DB) presence.RepositoryAPI {
	return &PresenceRepository{db: db}
}

func (r *PresenceRepository) TouchLastActivity(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(touchQuery), at, userID)
	return err
}

func (r *PresenceRepository) ActiveSince(ctx context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(activeSinceQuery), since); err != nil {
		return nil, err
	}
	return ids, nil
}
