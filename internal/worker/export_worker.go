// Package worker keeps the external ledger in step with expense changes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"wallet/internal/amqp"
	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
)

// Store is the worker's own durable copy of the exported rows.
type Store interface {
	ledger.Writer
	ledger.Reader
}

// Observer is implemented by the metrics package.
type Observer interface {
	ObserveConsume(consumer string, err error)
	ObserveExport(op string, err error)
}

type ExportWorker struct {
	store    Store
	sink     ledger.Writer
	logger   *log.Logger
	observer Observer
	now      func() time.Time
}

type Option func(*ExportWorker)

func WithObserver(o Observer) Option {
	return func(w *ExportWorker) { w.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(w *ExportWorker) { w.now = now }
}

func NewExportWorker(store Store, sink ledger.Writer, logger *log.Logger, opts ...Option) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	w := &ExportWorker{
		store:  store,
		sink:   sink,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleMessage applies one change event to the store, then to the sink.
// Records that break the data contract are logged and dropped.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	err := w.handle(ctx, msg)
	if w.observer != nil {
		w.observer.ObserveConsume("export", err)
	}

	var ire *core.InvalidRecordError
	if errors.As(err, &ire) {
		w.logger.ErrorContext(ctx, "Dropping change with invalid record",
			log.FieldExpenseID, msg.ID,
			log.FieldAction, string(msg.Action),
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDataIntegrity)
		return nil
	}
	return err
}

func (w *ExportWorker) handle(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	switch msg.Action {
	case amqp.ActionDeleted:
		if err := ignoreMissing(w.store.Delete(ctx, msg.Owner, msg.ID)); err != nil {
			return fmt.Errorf("delete stored row: %w", err)
		}
		err := ignoreMissing(w.sink.Delete(ctx, msg.Owner, msg.ID))
		w.observeExport(log.OpDelete, err)
		if err != nil {
			return fmt.Errorf("delete exported row: %w", err)
		}
		w.logger.InfoContext(ctx, "Ledger row deleted", log.FieldExpenseID, msg.ID)
		return nil

	case amqp.ActionCreated, amqp.ActionUpdated:
		rec, err := msg.Record()
		if err != nil {
			return err
		}
		row, err := ledger.RowFor(msg.Owner, rec, w.now())
		if err != nil {
			return err
		}
		if err := w.store.Upsert(ctx, row); err != nil {
			return fmt.Errorf("store row: %w", err)
		}
		err = w.sink.Upsert(ctx, row)
		w.observeExport(log.OpExport, err)
		if err != nil {
			return fmt.Errorf("export row: %w", err)
		}
		w.logger.InfoContext(ctx, "Ledger row exported",
			log.FieldExpenseID, row.ID,
			log.FieldRating, int(row.Rating),
			log.FieldAmount, row.DisplayAmount)
		return nil

	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

// Reconcile rewrites the sink from the store.
func (w *ExportWorker) Reconcile(ctx context.Context) error {
	rows, err := w.store.Rows(ctx)
	if err != nil {
		w.observeExport(log.OpReconcile, err)
		return fmt.Errorf("read stored rows: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return ledger.Less(rows[i], rows[j]) })

	err = w.sink.ReplaceAll(ctx, rows)
	w.observeExport(log.OpReconcile, err)
	if err != nil {
		return fmt.Errorf("replace exported rows: %w", err)
	}
	w.logger.InfoContext(ctx, "Ledger reconciled", log.FieldCount, len(rows))
	return nil
}

func (w *ExportWorker) observeExport(op string, err error) {
	if w.observer != nil {
		w.observer.ObserveExport(op, err)
	}
}

func ignoreMissing(err error) error {
	if errors.Is(err, ledger.ErrRowNotFound) {
		return nil
	}
	return err
}
