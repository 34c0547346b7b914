package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTicketNotFound is returned by GetTicket when no ticket is cached
	// under the scan code. Absence is a normal outcome (it drives the
	// NOT_CACHED deny path), distinct from a storage failure.
	ErrTicketNotFound = errors.New("ticket not cached")

	// ErrTicketAlreadyUsed is returned by RecordOfflineAdmit when the
	// ticket's status changed away from valid between the caller's read and
	// the admit transaction.
	ErrTicketAlreadyUsed = errors.New("ticket already used")
)

// CachedTicket is a snapshot of a ticket's authoritative state as of the last
// cache refresh. Keyed by scan code; at most one row per code.
type CachedTicket struct {
	Code     string
	TicketID string
	EventID  string
	Tier     string
	Holder   string
	Status   string // valid | used | invalid
	CachedAt time.Time
}

// ValidationRecord is a durable local record of one validation attempt,
// successful or not. History is retained indefinitely; only the Synced flag
// ever changes, and only from false to true.
type ValidationRecord struct {
	ID        string
	Code      string
	SessionID string
	Timestamp time.Time
	Success   bool
	Message   string
	Synced    bool
}

// SyncQueueItem is one unit of deferred replay work for an offline admit.
// Presence in the queue means pending; removal is the only terminal state.
type SyncQueueItem struct {
	ID           string
	Kind         string // currently always "validation"
	ValidationID string
	Code         string
	SessionID    string
	Timestamp    time.Time // original validation time
	EnqueuedAt   time.Time
	RetryCount   int
}

// Stats is an operator-visibility snapshot. Not used for control flow.
type Stats struct {
	CachedTickets    int `json:"cached_tickets"`
	TotalValidations int `json:"total_validations"`
	Unsynced         int `json:"unsynced_validations"`
	QueueDepth       int `json:"queue_depth"`
	MaxQueueRetry    int `json:"max_queue_retry"`
}

// TicketStore holds the local ticket cache.
type TicketStore interface {
	// PutTicket inserts or overwrites a ticket by scan code.
	PutTicket(ctx context.Context, t CachedTicket) error

	// PutTicketsBulk writes a batch of tickets in a single transaction:
	// either every ticket lands or none do. An empty batch is a no-op
	// success.
	PutTicketsBulk(ctx context.Context, ts []CachedTicket) error

	// GetTicket returns the cached ticket for code, or ErrTicketNotFound.
	GetTicket(ctx context.Context, code string) (CachedTicket, error)
}

// ValidationStore holds the validation history.
type ValidationStore interface {
	SaveValidation(ctx context.Context, v ValidationRecord) error

	// UnsyncedValidations returns records with synced=false, oldest first.
	UnsyncedValidations(ctx context.Context) ([]ValidationRecord, error)

	// MarkValidationSynced flips synced to true. Unknown ids are a no-op,
	// not an error, so replays are idempotent.
	MarkValidationSynced(ctx context.Context, id string) error
}

// SyncQueueStore holds pending replay work.
type SyncQueueStore interface {
	EnqueueSync(ctx context.Context, item SyncQueueItem) error

	// ListSyncQueue returns pending items in enqueue order.
	ListSyncQueue(ctx context.Context) ([]SyncQueueItem, error)

	// DequeueSync removes an item. Unknown ids are a no-op.
	DequeueSync(ctx context.Context, id string) error

	// IncrementSyncRetry bumps the retry counter on a failed replay.
	IncrementSyncRetry(ctx context.Context, id string) error
}

// Store is the full local store consumed by the validation engine and the
// sync reconciler.
type Store interface {
	TicketStore
	ValidationStore
	SyncQueueStore

	// RecordOfflineAdmit atomically marks the ticket used, saves the
	// validation record, and enqueues the sync item — one transaction
	// across all three tables, so a crash cannot leave a ticket consumed
	// without its durable admit record. The mark-used step is conditional
	// on the ticket still being valid; if it is not, nothing is written
	// and ErrTicketAlreadyUsed is returned.
	RecordOfflineAdmit(ctx context.Context, v ValidationRecord, item SyncQueueItem) error

	// ClearAll wipes tickets, validations, and the sync queue. Logout/reset
	// path only.
	ClearAll(ctx context.Context) error

	Stats(ctx context.Context) (Stats, error)
}
