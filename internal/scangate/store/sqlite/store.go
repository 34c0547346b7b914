// Package sqlite implements the local scanner store on an embedded SQLite
// database. All writes go through the serialized db.Worker, so every store
// operation is a single committed transaction and durable when it returns.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "github.com/ticketeer/scangate/internal/db"
	"github.com/ticketeer/scangate/internal/scangate/store"
)

type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

var _ store.Store = (*Store)(nil)

// ClearAll wipes all three tables in one transaction. Logout/reset only.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, table := range []string{"tickets", "validations", "sync_queue"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+";"); err != nil {
				return fmt.Errorf("ClearAll %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats

	row := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM tickets),
  (SELECT COUNT(*) FROM validations),
  (SELECT COUNT(*) FROM validations WHERE synced = 0),
  (SELECT COUNT(*) FROM sync_queue),
  (SELECT COALESCE(MAX(retry_count), 0) FROM sync_queue);
`)
	if err := row.Scan(
		&st.CachedTickets,
		&st.TotalValidations,
		&st.Unsynced,
		&st.QueueDepth,
		&st.MaxQueueRetry,
	); err != nil {
		return store.Stats{}, fmt.Errorf("Stats query: %w", err)
	}
	return st, nil
}
