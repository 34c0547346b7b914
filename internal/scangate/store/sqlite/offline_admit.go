package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

// RecordOfflineAdmit commits the whole offline admit as one transaction:
// mark the ticket used, save the validation record, enqueue the replay item.
// A crash can therefore never leave the ticket consumed without its durable
// admit record, or an admit record without its queue entry.
//
// The mark-used UPDATE is conditional on status still being 'valid'. If the
// ticket was consumed between the engine's read and this transaction (a
// second scan racing through), zero rows are affected, the transaction is
// rolled back, and ErrTicketAlreadyUsed is returned.
func (s *Store) RecordOfflineAdmit(ctx context.Context, v store.ValidationRecord, item store.SyncQueueItem) error {
	now := time.Now().UTC()
	if v.Timestamp.IsZero() {
		v.Timestamp = now
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = now
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = v.Timestamp
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE tickets SET status = ? WHERE scan_code = ? AND status = ?;
`, "used", v.Code, "valid")
		if err != nil {
			return fmt.Errorf("RecordOfflineAdmit mark used: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("RecordOfflineAdmit rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrTicketAlreadyUsed
		}

		if err := insertValidation(ctx, tx, v); err != nil {
			return err
		}
		return insertQueueItem(ctx, tx, item)
	})
}
