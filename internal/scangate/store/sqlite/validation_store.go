package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

func (s *Store) SaveValidation(ctx context.Context, v store.ValidationRecord) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insertValidation(ctx, tx, v)
	})
}

func (s *Store) UnsyncedValidations(ctx context.Context) ([]store.ValidationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, scan_code, session_id, validated_at_ms, success, message, synced
FROM validations
WHERE synced = 0
ORDER BY validated_at_ms ASC, id ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("UnsyncedValidations query: %w", err)
	}
	defer rows.Close()

	var out []store.ValidationRecord
	for rows.Next() {
		v, err := scanValidation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MarkValidationSynced flips synced to 1. The flag is monotonic: this is the
// only statement that touches it after insert, and it never writes 0. Unknown
// ids affect zero rows, which is a no-op by contract.
func (s *Store) MarkValidationSynced(ctx context.Context, id string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE validations SET synced = 1 WHERE id = ?;
`, id); err != nil {
			return fmt.Errorf("MarkValidationSynced %s: %w", id, err)
		}
		return nil
	})
}

func insertValidation(ctx context.Context, tx *sql.Tx, v store.ValidationRecord) error {
	var success, synced int
	if v.Success {
		success = 1
	}
	if v.Synced {
		synced = 1
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO validations(id, scan_code, session_id, validated_at_ms, success, message, synced)
VALUES (?, ?, ?, ?, ?, ?, ?);
`,
		v.ID, v.Code, v.SessionID, v.Timestamp.UTC().UnixMilli(),
		success, v.Message, synced,
	); err != nil {
		return fmt.Errorf("insert validation %s: %w", v.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanValidation(r rowScanner) (store.ValidationRecord, error) {
	var (
		v               store.ValidationRecord
		validatedMs     int64
		success, synced int
	)
	if err := r.Scan(&v.ID, &v.Code, &v.SessionID, &validatedMs, &success, &v.Message, &synced); err != nil {
		return store.ValidationRecord{}, fmt.Errorf("scan validation: %w", err)
	}
	v.Timestamp = time.UnixMilli(validatedMs).UTC()
	v.Success = success == 1
	v.Synced = synced == 1
	return v, nil
}
