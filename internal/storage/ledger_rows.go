package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wallet/internal/core"
	"wallet/internal/ledger"
)

// LedgerRows is the worker's durable copy of exported rows. Reconcile
// rewrites the external sheet from it.
type LedgerRows struct {
	db *sql.DB
}

var (
	_ ledger.Writer = (*LedgerRows)(nil)
	_ ledger.Reader = (*LedgerRows)(nil)
)

func (r *SQLiteRepository) Ledger() *LedgerRows {
	return &LedgerRows{db: r.db}
}

const upsertLedgerRow = `
	INSERT INTO ledger_rows
		(owner, id, purchase_date, title, category, rating, real_amount, display_amount, masked, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(owner, id) DO UPDATE SET
		purchase_date  = excluded.purchase_date,
		title          = excluded.title,
		category       = excluded.category,
		rating         = excluded.rating,
		real_amount    = excluded.real_amount,
		display_amount = excluded.display_amount,
		masked         = excluded.masked,
		updated_at     = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRow(ctx context.Context, db execer, row ledger.Row) error {
	_, err := db.ExecContext(ctx, upsertLedgerRow,
		row.Owner, row.ID, row.Date.String(), row.Title, string(row.Category), int(row.Rating),
		row.RealAmount, row.DisplayAmount, row.Masked, row.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert ledger row %s/%d: %w", row.Owner, row.ID, err)
	}
	return nil
}

func (l *LedgerRows) Upsert(ctx context.Context, row ledger.Row) error {
	return upsertRow(ctx, l.db, row)
}

func (l *LedgerRows) Delete(ctx context.Context, owner string, id int64) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM ledger_rows WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete ledger row %s/%d: %w", owner, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrRowNotFound
	}
	return nil
}

func (l *LedgerRows) ReplaceAll(ctx context.Context, rows []ledger.Row) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_rows`); err != nil {
		return fmt.Errorf("clear ledger rows: %w", err)
	}
	for _, row := range rows {
		if err := upsertRow(ctx, tx, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Rows returns every row ordered by purchase date, owner and id.
func (l *LedgerRows) Rows(ctx context.Context) ([]ledger.Row, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT owner, id, purchase_date, title, category, rating, real_amount, display_amount, masked, updated_at
		FROM ledger_rows ORDER BY purchase_date, owner, id`)
	if err != nil {
		return nil, fmt.Errorf("query ledger rows: %w", err)
	}
	defer rows.Close()

	var out []ledger.Row
	for rows.Next() {
		var (
			row            ledger.Row
			date, category string
			rating         int
			updated        string
		)
		if err := rows.Scan(&row.Owner, &row.ID, &date, &row.Title, &category, &rating,
			&row.RealAmount, &row.DisplayAmount, &row.Masked, &updated); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		row.Date, _ = core.ParseDate(date)
		row.Category = core.Category(category)
		row.Rating = core.Rating(rating)
		row.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return out, nil
}
