// Package ledger exports rendered expense rows to an external spreadsheet.
package ledger

import (
	"context"
	"errors"
	"time"

	"wallet/internal/core"
	"wallet/internal/masking"
)

// ErrRowNotFound is returned by Delete when the row is unknown.
var ErrRowNotFound = errors.New("ledger row not found")

// Row is one exported expense with both its real and displayed amount.
type Row struct {
	Owner         string
	ID            int64
	Date          core.Date
	Title         string
	Category      core.Category
	Rating        core.Rating
	RealAmount    int64
	DisplayAmount int64
	Masked        bool
	UpdatedAt     time.Time
}

// Ports for outbound adapters.
type (
	Writer interface {
		Upsert(ctx context.Context, row Row) error
		Delete(ctx context.Context, owner string, id int64) error
		ReplaceAll(ctx context.Context, rows []Row) error
	}

	// Reader lists the rows a writer currently holds.
	Reader interface {
		Rows(ctx context.Context) ([]Row, error)
	}
)

// RowFor derives the exported row through the masking rules, so the sheet
// shows the same display amount as the dashboard.
func RowFor(owner string, e core.Expense, now time.Time) (Row, error) {
	d, err := masking.ForExpense(e)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Owner:         owner,
		ID:            e.ID,
		Date:          e.PurchaseDate,
		Title:         e.Title,
		Category:      e.Category,
		Rating:        e.Rating,
		RealAmount:    d.Real,
		DisplayAmount: d.Value,
		Masked:        d.Maskable,
		UpdatedAt:     now,
	}, nil
}

// Less orders rows by purchase date, then owner and id.
func Less(a, b Row) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.Before(b.Date.Time)
	}
	if a.Owner != b.Owner {
		return a.Owner < b.Owner
	}
	return a.ID < b.ID
}
