package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

var ErrInvalidEventID = errors.New("event_id is required")

// TicketFetcher pulls the full ticket list for an event from the remote
// authority, used to pre-cache before going offline.
type TicketFetcher func(ctx context.Context, eventID string) ([]store.CachedTicket, error)

// PrecacheService loads an event's tickets into the local cache and exposes
// operator-facing store maintenance (stats, full reset).
type PrecacheService struct {
	store  store.Store
	fetch  TicketFetcher
	logger *log.Logger
}

func NewPrecacheService(st store.Store, fetch TicketFetcher, logger *log.Logger) *PrecacheService {
	return &PrecacheService{store: st, fetch: fetch, logger: logger}
}

// Preload fetches the event's tickets and writes them to the cache in one
// atomic batch, overwriting any previously cached copies by scan code.
// Returns the number of tickets fetched.
func (p *PrecacheService) Preload(ctx context.Context, eventID string) (int, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return 0, ErrInvalidEventID
	}

	tickets, err := p.fetch(ctx, eventID)
	if err != nil {
		return 0, err
	}

	if err := p.store.PutTicketsBulk(ctx, tickets); err != nil {
		return 0, err
	}

	p.logger.Printf("precache: cached %d tickets for event %s", len(tickets), eventID)
	return len(tickets), nil
}

// Reset wipes the ticket cache, validation history, and sync queue. Used on
// operator logout. Unsynced offline admits are destroyed with it — callers
// are expected to check Stats and sync first.
func (p *PrecacheService) Reset(ctx context.Context) error {
	return p.store.ClearAll(ctx)
}

func (p *PrecacheService) Stats(ctx context.Context) (store.Stats, error) {
	return p.store.Stats(ctx)
}
