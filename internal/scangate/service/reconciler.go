package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

// SyncSummary reports the outcome of one reconciliation pass.
type SyncSummary struct {
	Synced   int      `json:"synced"`
	Failed   int      `json:"failed"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors"`
}

// SyncReconciler replays offline admits against the remote authority. The
// authoritative worklist is the set of validation records with synced=false;
// the queue rows carry retry bookkeeping and mirror the same work.
type SyncReconciler struct {
	store  store.Store
	logger *log.Logger
}

func NewSyncReconciler(st store.Store, logger *log.Logger) *SyncReconciler {
	return &SyncReconciler{store: st, logger: logger}
}

// Sync replays every unsynced validation through remote, oldest first.
//
// Per-item semantics:
//   - transport failure: the record and its queue item stay put, the item's
//     retry count is bumped, and the pass continues with the next item.
//   - any response from the authority settles the item, accepted or not: the
//     record is marked synced and the queue item removed. A rejection (e.g.
//     another scanner admitted the ticket online first) is counted in
//     Rejected and logged — it is the authority exercising its final say,
//     not a reconciler error.
//
// Safe to call repeatedly: a pass over zero unsynced records does nothing.
// A non-nil error means local storage failed; the summary still reflects
// whatever progress was made before that.
func (r *SyncReconciler) Sync(ctx context.Context, remote RemoteValidator) (SyncSummary, error) {
	var summary SyncSummary
	summary.Errors = []string{}

	worklist, err := r.store.UnsyncedValidations(ctx)
	if err != nil {
		return summary, err
	}
	if len(worklist) == 0 {
		return summary, nil
	}

	queue, err := r.store.ListSyncQueue(ctx)
	if err != nil {
		return summary, err
	}
	itemByValidation := make(map[string]store.SyncQueueItem, len(queue))
	for _, item := range queue {
		itemByValidation[item.ValidationID] = item
	}

	for _, v := range worklist {
		// A validation without a queue item can exist after a partial
		// ClearAll-era crash on old databases; the worklist is
		// authoritative, so replay proceeds regardless.
		item, hasItem := itemByValidation[v.ID]

		resp, remoteErr := remote(ctx, v.Code, v.SessionID)
		if remoteErr != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: %v", v.Code, remoteErr))
			if hasItem {
				if err := r.store.IncrementSyncRetry(ctx, item.ID); err != nil {
					return summary, err
				}
			}
			continue
		}

		if err := r.store.MarkValidationSynced(ctx, v.ID); err != nil {
			return summary, err
		}
		if hasItem {
			if err := r.store.DequeueSync(ctx, item.ID); err != nil {
				return summary, err
			}
		}

		summary.Synced++
		if !(resp.Success && resp.Valid) {
			summary.Rejected++
			r.logger.Printf("sync: authority rejected replay of %s (session %s): %s",
				v.Code, v.SessionID, resp.Message)
		}
	}

	return summary, nil
}
