package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

func (s *Store) PutTicket(ctx context.Context, t store.CachedTicket) error {
	t.Code = strings.TrimSpace(t.Code)
	if t.Code == "" {
		return nil
	}
	if t.CachedAt.IsZero() {
		t.CachedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return upsertTicket(ctx, tx, t)
	})
}

// PutTicketsBulk writes the whole batch in one transaction: either every
// ticket lands or none do. A half-loaded cache before an offline shift is
// worse than a clean, retryable failure.
func (s *Store) PutTicketsBulk(ctx context.Context, ts []store.CachedTicket) error {
	if len(ts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, t := range ts {
			t.Code = strings.TrimSpace(t.Code)
			if t.Code == "" {
				continue
			}
			if t.CachedAt.IsZero() {
				t.CachedAt = now
			}
			if err := upsertTicket(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetTicket(ctx context.Context, code string) (store.CachedTicket, error) {
	code = strings.TrimSpace(code)

	var (
		t        store.CachedTicket
		cachedMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT scan_code, ticket_id, event_id, tier, holder, status, cached_at_ms
FROM tickets
WHERE scan_code = ?;
`, code).Scan(&t.Code, &t.TicketID, &t.EventID, &t.Tier, &t.Holder, &t.Status, &cachedMs)

	if err == sql.ErrNoRows {
		return store.CachedTicket{}, store.ErrTicketNotFound
	}
	if err != nil {
		return store.CachedTicket{}, fmt.Errorf("GetTicket query: %w", err)
	}

	t.CachedAt = time.UnixMilli(cachedMs).UTC()
	return t, nil
}

func upsertTicket(ctx context.Context, tx *sql.Tx, t store.CachedTicket) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO tickets(scan_code, ticket_id, event_id, tier, holder, status, cached_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(scan_code) DO UPDATE SET
  ticket_id    = excluded.ticket_id,
  event_id     = excluded.event_id,
  tier         = excluded.tier,
  holder       = excluded.holder,
  status       = excluded.status,
  cached_at_ms = excluded.cached_at_ms;
`,
		t.Code, t.TicketID, t.EventID, t.Tier, t.Holder, t.Status,
		t.CachedAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert ticket %s: %w", t.Code, err)
	}
	return nil
}
