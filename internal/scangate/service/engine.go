package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ticketeer/scangate/internal/scangate/store"
	"github.com/ticketeer/scangate/internal/scangate/types"
)

var (
	ErrInvalidCode      = errors.New("code is required")
	ErrInvalidSessionID = errors.New("session_id is required")
)

// OnlineChecker is the slice of the connectivity monitor the engine needs.
type OnlineChecker interface {
	IsOnline() bool
}

// RemoteValidator is the injected remote-authority validate call. It may
// fail with a transport error, which the engine surfaces as SYSTEM_ERROR —
// never as a silent fallback to the offline path.
type RemoteValidator func(ctx context.Context, code, sessionID string) (types.RemoteValidateResponse, error)

// ValidationEngine is the single authority for turning a scanned code into an
// admit/deny decision. Online it defers to the remote authority; offline it
// evaluates the local ticket cache and queues the admit for later replay.
type ValidationEngine struct {
	store  store.Store
	online OnlineChecker
	remote RemoteValidator
	logger *log.Logger
}

func NewValidationEngine(st store.Store, online OnlineChecker, remote RemoteValidator, logger *log.Logger) *ValidationEngine {
	return &ValidationEngine{store: st, online: online, remote: remote, logger: logger}
}

// Validate decides admit/deny for one scanned code. Deny outcomes are normal
// results, not errors; only infrastructure failures (local storage broken)
// return a non-nil error.
func (e *ValidationEngine) Validate(ctx context.Context, code, sessionID string) (types.ScanResult, error) {
	code = strings.TrimSpace(code)
	sessionID = strings.TrimSpace(sessionID)

	if code == "" {
		return types.ScanResult{}, ErrInvalidCode
	}
	if sessionID == "" {
		return types.ScanResult{}, ErrInvalidSessionID
	}

	if e.online.IsOnline() {
		return e.validateRemote(ctx, code, sessionID), nil
	}
	return e.validateLocal(ctx, code, sessionID)
}

func (e *ValidationEngine) validateRemote(ctx context.Context, code, sessionID string) types.ScanResult {
	resp, err := e.remote(ctx, code, sessionID)
	if err != nil {
		// Failing open here would double-admit; fail closed and let the
		// operator see the error.
		e.logger.Printf("remote validate %s: %v", code, err)
		e.recordHistory(ctx, code, sessionID, false, "remote validation failed: "+err.Error())
		return types.ScanResult{
			Success: false,
			Offline: false,
			Reason:  types.ReasonSystemError,
			Message: "could not reach the ticket server",
		}
	}

	res := types.ScanResult{
		Offline: false,
		Message: resp.Message,
	}

	switch {
	case resp.Success && resp.Valid:
		res.Success = true
		if res.Message == "" {
			res.Message = "ticket valid"
		}
		res.Ticket = &types.TicketSummary{
			TicketID: resp.TicketID,
			Code:     code,
			Status:   types.StatusUsed,
			Tier:     resp.TicketTier,
			Holder:   resp.HolderName,
		}
		// Keep the local cache coherent so a later offline scan of the
		// same ticket denies with ALREADY_USED instead of admitting.
		e.markCachedUsed(ctx, code)
	case resp.AlreadyValidated:
		res.Reason = types.ReasonAlreadyValidated
		if res.Message == "" {
			res.Message = "ticket already validated"
		}
	default:
		res.Reason = types.ReasonInvalid
		if res.Message == "" {
			res.Message = "ticket invalid"
		}
	}

	e.recordHistory(ctx, code, sessionID, res.Success, res.Message)
	return res
}

func (e *ValidationEngine) validateLocal(ctx context.Context, code, sessionID string) (types.ScanResult, error) {
	t, err := e.store.GetTicket(ctx, code)
	if errors.Is(err, store.ErrTicketNotFound) {
		e.recordHistory(ctx, code, sessionID, false, "ticket not in local cache")
		return types.ScanResult{
			Success: false,
			Offline: true,
			Reason:  types.ReasonNotCached,
			Message: "ticket not in local cache",
		}, nil
	}
	if err != nil {
		return types.ScanResult{}, err
	}

	switch t.Status {
	case types.StatusUsed:
		e.recordHistory(ctx, code, sessionID, false, "ticket already used")
		return denyResult(t, types.ReasonAlreadyUsed, "ticket already used"), nil
	case types.StatusValid:
		// fall through to the admit below
	default:
		// invalid, plus anything unrecognized: only an explicit valid
		// snapshot may admit offline.
		e.recordHistory(ctx, code, sessionID, false, "ticket invalid")
		return denyResult(t, types.ReasonInvalid, "ticket invalid"), nil
	}

	// Cache says valid: admit now, reconcile later. This is the entire
	// point of offline mode — the gate cannot wait for a network that is
	// unavailable by definition. The admit, its history record, and the
	// replay queue item commit as one transaction.
	now := time.Now().UTC()
	rec := store.ValidationRecord{
		ID:        uuid.NewString(),
		Code:      code,
		SessionID: sessionID,
		Timestamp: now,
		Success:   true,
		Message:   "validated offline",
		Synced:    false,
	}
	item := store.SyncQueueItem{
		ID:           uuid.NewString(),
		Kind:         "validation",
		ValidationID: rec.ID,
		Code:         code,
		SessionID:    sessionID,
		Timestamp:    now,
		EnqueuedAt:   now,
	}

	if err := e.store.RecordOfflineAdmit(ctx, rec, item); err != nil {
		if errors.Is(err, store.ErrTicketAlreadyUsed) {
			// Lost the race to another scan between our read and the
			// admit transaction.
			e.recordHistory(ctx, code, sessionID, false, "ticket already used")
			return denyResult(t, types.ReasonAlreadyUsed, "ticket already used"), nil
		}
		return types.ScanResult{}, err
	}

	t.Status = types.StatusUsed
	res := denyResult(t, "", "validated offline")
	res.Success = true
	return res, nil
}

// recordHistory appends a non-replayable validation record: online outcomes
// (the authority already knows) and offline denials (the authority was never
// told anything, so there is nothing to replay). Both are written with
// synced=true, keeping the synced=false worklist exactly the set of offline
// admits. Failures are logged, not returned — losing an audit row must not
// block the gate decision. Offline admits never pass through here; their
// record commits inside RecordOfflineAdmit and a failure there is fatal.
func (e *ValidationEngine) recordHistory(ctx context.Context, code, sessionID string, success bool, message string) {
	err := e.store.SaveValidation(ctx, store.ValidationRecord{
		ID:        uuid.NewString(),
		Code:      code,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Success:   success,
		Message:   message,
		Synced:    true,
	})
	if err != nil {
		e.logger.Printf("save validation history for %s: %v", code, err)
	}
}

// markCachedUsed updates the cached copy of a ticket the authority just
// consumed. Best effort: the ticket may simply not be cached.
func (e *ValidationEngine) markCachedUsed(ctx context.Context, code string) {
	t, err := e.store.GetTicket(ctx, code)
	if errors.Is(err, store.ErrTicketNotFound) {
		return
	}
	if err != nil {
		e.logger.Printf("refresh cached ticket %s: %v", code, err)
		return
	}
	t.Status = types.StatusUsed
	if err := e.store.PutTicket(ctx, t); err != nil {
		e.logger.Printf("refresh cached ticket %s: %v", code, err)
	}
}

func denyResult(t store.CachedTicket, reason, message string) types.ScanResult {
	return types.ScanResult{
		Success: false,
		Offline: true,
		Reason:  reason,
		Message: message,
		Ticket: &types.TicketSummary{
			TicketID: t.TicketID,
			Code:     t.Code,
			Status:   t.Status,
			Tier:     t.Tier,
			Holder:   t.Holder,
		},
	}
}
