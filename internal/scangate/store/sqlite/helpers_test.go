package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ticketeer/scangate/internal/db"
	"github.com/ticketeer/scangate/internal/scangate/store"
	sqlitestore "github.com/ticketeer/scangate/internal/scangate/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each call gets a unique in-memory database. The shared-cache URI
	// keeps the database alive for the lifetime of the connection pool
	// (important because sql.DB may close/reopen the underlying conn).
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	// Match production: single connection for SQLite safety.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	// Apply the same migrations as production.
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore returns a sqlite store backed by a fresh in-memory database.
// The write worker is closed automatically when the test finishes.
func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()

	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return sqlitestore.New(conn, w), conn
}

// assertTicketEqual compares tickets field by field, using time.Time.Equal
// for the cache timestamp.
func assertTicketEqual(t *testing.T, got, want store.CachedTicket) {
	t.Helper()

	if got.Code != want.Code || got.TicketID != want.TicketID ||
		got.EventID != want.EventID || got.Tier != want.Tier ||
		got.Holder != want.Holder || got.Status != want.Status {
		t.Errorf("ticket mismatch:\n got %+v\nwant %+v", got, want)
	}
	if !got.CachedAt.Equal(want.CachedAt) {
		t.Errorf("cached_at mismatch: got %v, want %v", got.CachedAt, want.CachedAt)
	}
}

// validTicket builds a cached ticket in status valid.
func validTicket(code string) store.CachedTicket {
	return store.CachedTicket{
		Code:     code,
		TicketID: "t-" + code,
		EventID:  "ev-1",
		Tier:     "GA",
		Holder:   "Dana Holder",
		Status:   "valid",
		CachedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}
