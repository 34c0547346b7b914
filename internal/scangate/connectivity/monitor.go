// Package connectivity tracks best-effort network reachability of the remote
// ticketing authority.
//
// "Online" here means the last probe succeeded. Probes are cheap reachability
// checks, not proof the authority will accept a request: captive portals and
// flapping links can produce false positives and negatives in both
// directions. Consumers must treat the signal as advisory — the validation
// engine surfaces a failed "online" remote call as an explicit error rather
// than quietly rerouting to the offline path.
package connectivity

import (
	"context"
	"log"
	"sync"
	"time"
)

// Prober reports whether the remote authority currently looks reachable.
type Prober func(ctx context.Context) bool

// Monitor polls a Prober on an interval and notifies subscribers on genuine
// transitions. Callbacks fire at most once per transition, never once per
// poll, and run on the monitor's goroutine — keep them short.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]subscriber

	cancel context.CancelFunc
	done   chan struct{}
}

type subscriber struct {
	onOnline  func()
	onOffline func()
}

func NewMonitor(p Prober, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		prober:   p,
		interval: interval,
		logger:   logger,
		subs:     make(map[int]subscriber),
		done:     make(chan struct{}),
	}
}

// IsOnline returns the current best-effort reachability signal.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers transition callbacks and returns an unsubscribe
// function. Either callback may be nil.
func (m *Monitor) Subscribe(onOnline, onOffline func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = subscriber{onOnline: onOnline, onOffline: onOffline}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetOnline records an observed reachability state and fires transition
// callbacks if it changed. The probe loop calls this; other components may
// too (e.g. the remote client after a request succeeds or times out), which
// shortens detection latency between polls.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	var fns []func()
	for _, sub := range m.subs {
		fn := sub.onOffline
		if online {
			fn = sub.onOnline
		}
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if m.logger != nil {
		if online {
			m.logger.Printf("connectivity: online")
		} else {
			m.logger.Printf("connectivity: offline")
		}
	}
	for _, fn := range fns {
		fn()
	}
}

// Start begins the background probe loop. An immediate probe runs on startup
// so the daemon does not sit in the offline default until the first tick.
// The loop exits when ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	if m.prober == nil {
		close(m.done)
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
}

// Stop signals the probe loop to exit and waits for it to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	m.SetOnline(m.prober(probeCtx))
}
