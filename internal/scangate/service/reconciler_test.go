package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketeer/scangate/internal/scangate/service"
	"github.com/ticketeer/scangate/internal/scangate/store"
	"github.com/ticketeer/scangate/internal/scangate/store/memory"
	"github.com/ticketeer/scangate/internal/scangate/types"
)

// offlineAdmit runs one offline validation so the store holds exactly one
// unsynced record plus its queue item.
func offlineAdmit(t *testing.T, st store.Store, code string) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, st.PutTicket(ctx, cachedTicket(code, "valid")))

	engine := service.NewValidationEngine(st, staticOnline(false), unreachableRemote(t), discard())
	res, err := engine.Validate(ctx, code, "s1")
	require.NoError(t, err)
	require.True(t, res.Success)
}

func acceptingRemote() service.RemoteValidator {
	return staticRemote(types.RemoteValidateResponse{Success: true, Valid: true, Message: "ok"}, nil)
}

func TestSync_NothingToDo(t *testing.T) {
	st := memory.New()
	rec := service.NewSyncReconciler(st, discard())

	calls := 0
	summary, err := rec.Sync(context.Background(), func(context.Context, string, string) (types.RemoteValidateResponse, error) {
		calls++
		return types.RemoteValidateResponse{}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Synced)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Errors)
	assert.Zero(t, calls, "remote must not be called with an empty worklist")
}

func TestSync_ReplaysOfflineAdmit(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	offlineAdmit(t, st, "ABC123")

	rec := service.NewSyncReconciler(st, discard())

	summary, err := rec.Sync(ctx, acceptingRemote())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.Rejected)

	unsynced, err := st.UnsyncedValidations(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	queue, err := st.ListSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

// Calling sync again with no new offline activity is a no-op.
func TestSync_Idempotent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	offlineAdmit(t, st, "ABC123")

	rec := service.NewSyncReconciler(st, discard())

	_, err := rec.Sync(ctx, acceptingRemote())
	require.NoError(t, err)

	second, err := rec.Sync(ctx, acceptingRemote())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Synced)
	assert.Equal(t, 0, second.Failed)
	assert.Empty(t, second.Errors)
}

func TestSync_TransportFailureThenSuccess(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	offlineAdmit(t, st, "ABC123")

	rec := service.NewSyncReconciler(st, discard())

	// First pass: remote unreachable. Record and queue item stay, retry
	// count is bumped.
	first, err := rec.Sync(ctx, staticRemote(types.RemoteValidateResponse{}, errors.New("timeout")))
	require.NoError(t, err)
	assert.Equal(t, 0, first.Synced)
	assert.Equal(t, 1, first.Failed)
	require.Len(t, first.Errors, 1)
	assert.Contains(t, first.Errors[0], "ABC123")

	queue, err := st.ListSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].RetryCount)

	unsynced, err := st.UnsyncedValidations(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)

	// Second pass: remote back. Everything settles.
	second, err := rec.Sync(ctx, acceptingRemote())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Synced)
	assert.Equal(t, 0, second.Failed)

	queue, err = st.ListSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	unsynced, err = st.UnsyncedValidations(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

// Another scanner admitted the same ticket first; the authority rejects the
// replay. That settles the item — it must not be retried forever.
func TestSync_AuthorityRejectionSettlesItem(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	offlineAdmit(t, st, "ABC123")

	rec := service.NewSyncReconciler(st, discard())

	summary, err := rec.Sync(ctx, staticRemote(types.RemoteValidateResponse{
		Success:          false,
		AlreadyValidated: true,
		Message:          "ticket already validated",
	}, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Errors)

	unsynced, err := st.UnsyncedValidations(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	queue, err := st.ListSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

// Partial failure: one item fails, the pass still settles the rest.
func TestSync_ContinuesPastFailures(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	offlineAdmit(t, st, "A1")
	offlineAdmit(t, st, "B2")
	offlineAdmit(t, st, "C3")

	rec := service.NewSyncReconciler(st, discard())

	summary, err := rec.Sync(ctx, func(_ context.Context, code, _ string) (types.RemoteValidateResponse, error) {
		if code == "B2" {
			return types.RemoteValidateResponse{}, errors.New("timeout")
		}
		return types.RemoteValidateResponse{Success: true, Valid: true}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Synced)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "B2")

	unsynced, err := st.UnsyncedValidations(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "B2", unsynced[0].Code)
}
