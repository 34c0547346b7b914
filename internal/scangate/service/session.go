package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ticketeer/scangate/internal/scangate/types"
)

var (
	// ErrScanInFlight means a second decode arrived while one was being
	// validated. The second scan is dropped, not queued — the camera
	// cannot usefully present two codes near-simultaneously.
	ErrScanInFlight = errors.New("scan already in flight")

	// ErrNoDecode is the benign decoder miss emitted while the camera
	// hunts for a code. It carries no information and is dropped.
	ErrNoDecode = errors.New("no scannable code in frame")
)

// ScanSession sequences decode events through the validation engine for one
// scanner instance. At most one validation runs at a time; the guard is
// released on every exit path, panics included.
type ScanSession struct {
	engine *ValidationEngine
	id     string
	logger *log.Logger

	inFlight atomic.Bool
}

func NewScanSession(engine *ValidationEngine, logger *log.Logger) *ScanSession {
	return &ScanSession{
		engine: engine,
		id:     uuid.NewString(),
		logger: logger,
	}
}

// ID is the session identifier attached to every validation this scanner
// records. A new session (fresh ID) means a new ScanSession.
func (s *ScanSession) ID() string { return s.id }

// HandleScan runs one decoded code through the engine and always produces a
// terminal result for the operator: engine infrastructure failures and
// panics come back as SYSTEM_ERROR results, never as a hung or missing
// screen. The only non-nil errors are ErrScanInFlight and empty input.
func (s *ScanSession) HandleScan(ctx context.Context, code string) (types.ScanResult, error) {
	if strings.TrimSpace(code) == "" {
		return types.ScanResult{}, ErrInvalidCode
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return types.ScanResult{}, ErrScanInFlight
	}
	defer s.inFlight.Store(false)

	res, err := s.validate(ctx, code)
	if err != nil {
		s.logger.Printf("scan %s: %v", code, err)
		return types.ScanResult{
			Success: false,
			Reason:  types.ReasonSystemError,
			Message: "internal scanner error",
		}, nil
	}
	return res, nil
}

// HandleDecode is the decoder-facing entry point. Benign non-match errors
// and drops due to an in-flight scan return handled=false with no result;
// camera failures surface as a SYSTEM_ERROR result.
func (s *ScanSession) HandleDecode(ctx context.Context, code string, decodeErr error) (res types.ScanResult, handled bool) {
	if decodeErr != nil {
		if errors.Is(decodeErr, ErrNoDecode) {
			return types.ScanResult{}, false
		}
		s.logger.Printf("decoder error: %v", decodeErr)
		return types.ScanResult{
			Success: false,
			Reason:  types.ReasonSystemError,
			Message: "camera error: " + decodeErr.Error(),
		}, true
	}

	out, err := s.HandleScan(ctx, code)
	if err != nil {
		// In-flight collision or empty decode output; nothing to show.
		return types.ScanResult{}, false
	}
	return out, true
}

func (s *ScanSession) validate(ctx context.Context, code string) (res types.ScanResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("validation panic")
			s.logger.Printf("scan %s panicked: %v", code, p)
		}
	}()
	return s.engine.Validate(ctx, code, s.id)
}
