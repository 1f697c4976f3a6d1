package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/rollbox/internal/history"
)

// HistoryRepository is a history.Store backed by the roll_history table.
//
// Invariant: after every Add, each owner has at most capacity rows.
type HistoryRepository struct {
	db       *pgxpool.Pool
	capacity int
}

var _ history.Store = (*HistoryRepository)(nil)

// NewHistoryRepository creates a HistoryRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool; capacity >= 1.
func NewHistoryRepository(db *pgxpool.Pool, capacity int) *HistoryRepository {
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryRepository{db: db, capacity: capacity}
}

// Add inserts e and trims the owner's overflow rows in one transaction.
//
// Precondition: e.Owner must be non-empty.
func (r *HistoryRepository) Add(ctx context.Context, e history.Entry) error {
	if e.Owner == "" {
		return history.ErrInvalidOwner
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning history tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines := e.Breakdown
	if lines == nil {
		lines = []history.Line{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO roll_history
			(id, owner, expression, roll_type, breakdown, modifier, total, rolled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.Owner, e.Expression, e.RollType, lines, e.Modifier, e.Total, e.RolledAt,
	)
	if err != nil {
		return fmt.Errorf("inserting roll: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM roll_history
		WHERE owner = $1 AND seq NOT IN (
			SELECT seq FROM roll_history WHERE owner = $1 ORDER BY seq DESC LIMIT $2
		)`,
		e.Owner, r.capacity,
	)
	if err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing history tx: %w", err)
	}
	return nil
}

// List returns up to limit rolls for owner, newest first. limit <= 0 returns
// every retained row.
func (r *HistoryRepository) List(ctx context.Context, owner string, limit int) ([]history.Entry, error) {
	if owner == "" {
		return nil, history.ErrInvalidOwner
	}
	if limit <= 0 || limit > r.capacity {
		limit = r.capacity
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, owner, expression, roll_type, breakdown, modifier, total, rolled_at
		FROM roll_history WHERE owner = $1 ORDER BY seq DESC LIMIT $2`,
		owner, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Entry, error) {
		var e history.Entry
		err := row.Scan(&e.ID, &e.Owner, &e.Expression, &e.RollType, &e.Breakdown, &e.Modifier, &e.Total, &e.RolledAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning history row: %w", err)
	}
	return entries, nil
}

// Clear deletes every roll for owner.
func (r *HistoryRepository) Clear(ctx context.Context, owner string) error {
	if owner == "" {
		return history.ErrInvalidOwner
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM roll_history WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
