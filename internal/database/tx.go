package database

import (
	"context"

	"github.com/koustreak/relschema/internal/errs"
)

// RunInTx runs fn inside a transaction on db. The transaction is committed
// when fn returns nil and rolled back otherwise (including on panic, which
// is re-raised).
func RunInTx(ctx context.Context, db DB, fn func(tx Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	var success bool
	defer func() {
		if !success {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if errs.KindOf(err) == errs.ErrKindUnknown {
			return errs.Wrap(errs.ErrKindQueryFailed, "commit failed", err)
		}
		return err
	}
	success = true
	return nil
}
