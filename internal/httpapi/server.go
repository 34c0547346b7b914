package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ticketeer/scangate/internal/scangate/connectivity"
	"github.com/ticketeer/scangate/internal/scangate/service"
)

// Dependencies wires the device-local API to the scanner core. The remote
// validator is passed separately so the manual sync endpoint replays through
// the same call the engine uses.
type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Session    *service.ScanSession
	Precache   *service.PrecacheService
	Reconciler *service.SyncReconciler
	Remote     service.RemoteValidator
	Monitor    *connectivity.Monitor
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	session    *service.ScanSession
	precache   *service.PrecacheService
	reconciler *service.SyncReconciler
	remote     service.RemoteValidator
	monitor    *connectivity.Monitor
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:     d.Logger,
		session:    d.Session,
		precache:   d.Precache,
		reconciler: d.Reconciler,
		remote:     d.Remote,
		monitor:    d.Monitor,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
		r.Post("/precache", s.handlePrecache)
		r.Post("/sync", s.handleSync)
		r.Post("/reset", s.handleReset)
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.session.HandleScan(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScanInFlight):
			writeError(w, http.StatusConflict, "scan_in_flight", err.Error())
		case errors.Is(err, service.ErrInvalidCode):
			writeError(w, http.StatusBadRequest, "invalid_code", err.Error())
		default:
			s.logger.Printf("scan error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePrecache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID string `json:"event_id"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	count, err := s.precache.Preload(r.Context(), req.EventID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEventID) {
			writeError(w, http.StatusBadRequest, "invalid_event_id", err.Error())
			return
		}
		s.logger.Printf("precache error: %v", err)
		writeError(w, http.StatusBadGateway, "precache_failed", "could not fetch tickets from the ticket server")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"cached": count})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reconciler.Sync(r.Context(), s.remote)
	if err != nil {
		s.logger.Printf("sync error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.precache.Reset(r.Context()); err != nil {
		s.logger.Printf("reset error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"online":     s.monitor.IsOnline(),
		"session_id": s.session.ID(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.precache.Stats(r.Context())
	if err != nil {
		s.logger.Printf("stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
