package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/obs"
)

// unit is one logical operation spanning both tables. On the transactional
// path compensate is never needed; on the fallback path each completed step
// registers its undo.
type unit struct {
	store Store
	undo  []func(context.Context) error
}

func (u *unit) compensate(fn func(context.Context) error) {
	u.undo = append(u.undo, fn)
}

// atomically runs fn as one unit. With a Transactor it is a real transaction.
// Without one, fn runs directly and on failure the registered compensations
// run in reverse order on a context detached from cancellation, so a client
// hanging up mid-request cannot leave a note in both tables.
func (s *Service) atomically(ctx context.Context, op string, fn func(*unit) error) error {
	if s.tx != nil {
		return s.tx.InTx(ctx, func(store Store) error {
			return fn(&unit{store: store})
		})
	}

	u := &unit{store: s.store}
	err := fn(u)
	if err == nil {
		return nil
	}

	undoCtx := context.WithoutCancel(ctx)
	var undoErrs []error
	for i := len(u.undo) - 1; i >= 0; i-- {
		if uerr := u.undo[i](undoCtx); uerr != nil {
			undoErrs = append(undoErrs, uerr)
		}
	}
	if len(undoErrs) > 0 {
		obs.From(ctx).With("pkg", "notes").Error("compensation_failed",
			"op", op,
			"error", err.Error(),
			"undo_error", errors.Join(undoErrs...).Error(),
		)
		return fmt.Errorf("%s: %w (compensation failed: %w)", op, err, errors.Join(undoErrs...))
	}
	return err
}

type dbTransactor struct {
	db *db.DB
}

// TransactorFor adapts a *db.DB so the lifecycle runs bin moves in a genuine
// transaction.
func TransactorFor(d *db.DB) Transactor {
	return dbTransactor{db: d}
}

func (t dbTransactor) InTx(ctx context.Context, fn func(Store) error) error {
	return t.db.InTx(ctx, func(q *db.Queries) error {
		return fn(q)
	})
}
