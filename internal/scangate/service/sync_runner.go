package service

import (
	"context"
	"log"
	"time"
)

// ConnectivitySource is the slice of the connectivity monitor the runner
// needs: the current signal plus transition notifications.
type ConnectivitySource interface {
	IsOnline() bool
	Subscribe(onOnline, onOffline func()) (unsubscribe func())
}

// SyncRunner drives the reconciler opportunistically: immediately on every
// offline→online transition, and on a fixed interval while online. The
// interval is the only retry pacing — failed items are simply picked up
// again on the next pass.
type SyncRunner struct {
	reconciler *SyncReconciler
	remote     RemoteValidator
	conn       ConnectivitySource
	interval   time.Duration
	logger     *log.Logger

	kick        chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
}

// RunnerConfig holds the parameters for NewSyncRunner.
type RunnerConfig struct {
	// Interval is how often a periodic pass runs while online.
	// Defaults to 60 seconds.
	Interval time.Duration
}

// NewSyncRunner creates a runner but does not start it. Call Start to begin
// the background loop.
func NewSyncRunner(rec *SyncReconciler, remote RemoteValidator, conn ConnectivitySource, cfg RunnerConfig, logger *log.Logger) *SyncRunner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &SyncRunner{
		reconciler: rec,
		remote:     remote,
		conn:       conn,
		interval:   interval,
		logger:     logger,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start begins the background loop. A reconnect notification triggers an
// immediate pass; otherwise passes run on the interval whenever the monitor
// reports online. The loop exits when ctx is cancelled or Stop is called.
func (r *SyncRunner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.unsubscribe = r.conn.Subscribe(func() {
		// Non-blocking: a pending kick already guarantees a pass.
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}, nil)

	go r.loop(ctx)
}

// Stop signals the runner to exit and waits for it to finish.
func (r *SyncRunner) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *SyncRunner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
			r.run(ctx)
		case <-ticker.C:
			if r.conn.IsOnline() {
				r.run(ctx)
			}
		}
	}
}

func (r *SyncRunner) run(ctx context.Context) {
	summary, err := r.reconciler.Sync(ctx, r.remote)
	if err != nil {
		r.logger.Printf("sync pass error: %v", err)
		return
	}
	if summary.Synced > 0 || summary.Failed > 0 {
		r.logger.Printf("sync pass: synced=%d rejected=%d failed=%d",
			summary.Synced, summary.Rejected, summary.Failed)
	}
}
