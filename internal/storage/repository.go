// Package storage keeps an offline snapshot of the last good dashboard
// data and the exported ledger rows in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"wallet/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when nothing was saved yet for an owner.
var ErrNoSnapshot = errors.New("no snapshot")

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveList replaces the owner's snapshot of the expense list, keeping the
// order the API returned.
func (r *SQLiteRepository) SaveList(ctx context.Context, owner string, records []core.Expense, takenAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_snapshot WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO expense_snapshot
			(owner, id, title, category, amount, rating, purchase_date, description, created_at, updated_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range records {
		if _, err := stmt.ExecContext(ctx,
			owner, e.ID, e.Title, string(e.Category), e.Amount, int(e.Rating),
			e.PurchaseDate.String(), e.Description,
			nullTime(e.CreatedAt), nullTime(e.UpdatedAt), i,
		); err != nil {
			return fmt.Errorf("insert snapshot row %d: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (owner, list_taken_at) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET list_taken_at = excluded.list_taken_at`,
		owner, takenAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("update snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "List snapshot saved", "owner", owner, "count", len(records))
	return nil
}

// LoadList returns the snapshot rows in their saved order. Rows are
// validated again so a corrupted file never reaches the presenter.
func (r *SQLiteRepository) LoadList(ctx context.Context, owner string) ([]core.Expense, time.Time, error) {
	var taken sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT list_taken_at FROM snapshot_meta WHERE owner = ?`, owner).Scan(&taken)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !taken.Valid) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read snapshot meta: %w", err)
	}
	takenAt, err := time.Parse(timeLayout, taken.String)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse snapshot time: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, category, amount, rating, purchase_date, description, created_at, updated_at
		FROM expense_snapshot WHERE owner = ? ORDER BY position`, owner)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e                core.Expense
			category, date   string
			rating           int
			created, updated sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &category, &e.Amount, &rating, &date, &e.Description, &created, &updated); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		e.Category = core.Category(category)
		e.Rating = core.Rating(rating)
		if e.PurchaseDate, err = core.ParseDate(date); err != nil {
			return nil, time.Time{}, &core.InvalidRecordError{ID: e.ID, Field: "purchaseDate", Value: date}
		}
		e.CreatedAt = parseNullTime(created)
		e.UpdatedAt = parseNullTime(updated)
		if err := e.Validate(); err != nil {
			return nil, time.Time{}, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, takenAt, nil
}

func (r *SQLiteRepository) SaveStatistics(ctx context.Context, owner string, st core.Statistics, takenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshot_meta
			(owner, stats_taken_at, total_amount, display_amount, saved_amount, satisfied_count, total_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			stats_taken_at  = excluded.stats_taken_at,
			total_amount    = excluded.total_amount,
			display_amount  = excluded.display_amount,
			saved_amount    = excluded.saved_amount,
			satisfied_count = excluded.satisfied_count,
			total_count     = excluded.total_count`,
		owner, takenAt.UTC().Format(timeLayout),
		st.TotalAmount, st.DisplayAmount, st.SavedAmount, st.SatisfiedCount, st.TotalCount)
	if err != nil {
		return fmt.Errorf("save statistics snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LoadStatistics(ctx context.Context, owner string) (core.Statistics, time.Time, error) {
	var (
		st    core.Statistics
		taken sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT stats_taken_at, total_amount, display_amount, saved_amount, satisfied_count, total_count
		FROM snapshot_meta WHERE owner = ?`, owner).
		Scan(&taken, &st.TotalAmount, &st.DisplayAmount, &st.SavedAmount, &st.SatisfiedCount, &st.TotalCount)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !taken.Valid) {
		return core.Statistics{}, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return core.Statistics{}, time.Time{}, fmt.Errorf("read statistics snapshot: %w", err)
	}
	takenAt, err := time.Parse(timeLayout, taken.String)
	if err != nil {
		return core.Statistics{}, time.Time{}, fmt.Errorf("parse snapshot time: %w", err)
	}
	return st.Normalize(), takenAt, nil
}

// DropOwner forgets everything saved for one owner.
func (r *SQLiteRepository) DropOwner(ctx context.Context, owner string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_snapshot WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("drop snapshot rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_meta WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("drop snapshot meta: %w", err)
	}
	return tx.Commit()
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseNullTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
