package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

func (s *Store) EnqueueSync(ctx context.Context, item store.SyncQueueItem) error {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insertQueueItem(ctx, tx, item)
	})
}

func (s *Store) ListSyncQueue(ctx context.Context) ([]store.SyncQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, validation_id, scan_code, session_id, original_ts_ms, enqueued_at_ms, retry_count
FROM sync_queue
ORDER BY enqueued_at_ms ASC, id ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("ListSyncQueue query: %w", err)
	}
	defer rows.Close()

	var out []store.SyncQueueItem
	for rows.Next() {
		var (
			item       store.SyncQueueItem
			originalMs int64
			enqueuedMs int64
		)
		if err := rows.Scan(
			&item.ID, &item.Kind, &item.ValidationID, &item.Code, &item.SessionID,
			&originalMs, &enqueuedMs, &item.RetryCount,
		); err != nil {
			return nil, fmt.Errorf("scan sync_queue row: %w", err)
		}
		item.Timestamp = time.UnixMilli(originalMs).UTC()
		item.EnqueuedAt = time.UnixMilli(enqueuedMs).UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) DequeueSync(ctx context.Context, id string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?;`, id); err != nil {
			return fmt.Errorf("DequeueSync %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) IncrementSyncRetry(ctx context.Context, id string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE sync_queue SET retry_count = retry_count + 1 WHERE id = ?;
`, id); err != nil {
			return fmt.Errorf("IncrementSyncRetry %s: %w", id, err)
		}
		return nil
	})
}

func insertQueueItem(ctx context.Context, tx *sql.Tx, item store.SyncQueueItem) error {
	if item.Kind == "" {
		item.Kind = "validation"
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sync_queue(id, kind, validation_id, scan_code, session_id, original_ts_ms, enqueued_at_ms, retry_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
		item.ID, item.Kind, item.ValidationID, item.Code, item.SessionID,
		item.Timestamp.UTC().UnixMilli(), item.EnqueuedAt.UTC().UnixMilli(),
		item.RetryCount,
	); err != nil {
		return fmt.Errorf("insert sync_queue item %s: %w", item.ID, err)
	}
	return nil
}
