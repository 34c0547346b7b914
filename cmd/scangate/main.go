package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ticketeer/scangate/internal/config"
	"github.com/ticketeer/scangate/internal/db"
	"github.com/ticketeer/scangate/internal/httpapi"
	"github.com/ticketeer/scangate/internal/remote"
	"github.com/ticketeer/scangate/internal/scangate/connectivity"
	"github.com/ticketeer/scangate/internal/scangate/service"
	sqlitestore "github.com/ticketeer/scangate/internal/scangate/store/sqlite"

	_ "modernc.org/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "scangate ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local store
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	st := sqlitestore.New(conn, writer)

	// Remote authority
	client := remote.NewClient(remote.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.RemoteTimeout,
	}, logger)

	// Connectivity
	monitor := connectivity.NewMonitor(client.Probe, cfg.ProbeInterval, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	// Services
	engine := service.NewValidationEngine(st, monitor, client.Validate, logger)
	session := service.NewScanSession(engine, logger)
	precache := service.NewPrecacheService(st, client.FetchEventTickets, logger)
	reconciler := service.NewSyncReconciler(st, logger)

	runner := service.NewSyncRunner(reconciler, client.Validate, monitor,
		service.RunnerConfig{Interval: cfg.SyncInterval}, logger)
	runner.Start(ctx)
	defer runner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Session:    session,
		Precache:   precache,
		Reconciler: reconciler,
		Remote:     client.Validate,
		Monitor:    monitor,
	})

	go func() {
		logger.Printf("listening on %s (session %s)", cfg.HTTPAddr, session.ID())
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
