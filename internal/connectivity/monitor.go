// Package connectivity tracks backend reachability. The Monitor owns the
// shared tri-state flag; everything else observes it through Subscribe or
// State instead of reading a global.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/models"
)

// Prober is the lightweight liveness check, satisfied by the API client.
type Prober interface {
	Health(ctx context.Context) error
}

// Change is emitted to subscribers only on state transitions, never on every
// probe.
type Change struct {
	State models.Connectivity
	// Restored is true on the disconnected-to-connected edge; the UI shows a
	// short-lived "restored" notice for it.
	Restored bool
}

const (
	startupDelay  = 2 * time.Second
	probeInterval = 5 * time.Second
	probeTimeout  = 3 * time.Second
)

// Monitor probes the backend on an interval and folds in the outcome of
// outbound calls via Report. Probe failures never propagate to callers.
type Monitor struct {
	prober Prober
	log    *zap.Logger

	mu    sync.Mutex
	state models.Connectivity
	subs  []chan Change
}

func NewMonitor(prober Prober, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		prober: prober,
		log:    log,
		state:  models.ConnectivityUnknown,
	}
}

// Start launches the probe loop: one probe after a short startup delay, then
// a fixed interval until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(startupDelay):
		}
		m.Probe(ctx)

		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Probe runs one liveness check and updates the shared state. It never
// returns an error; connectivity failures are absorbed here.
func (m *Monitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := m.prober.Health(probeCtx); err != nil {
		m.log.Debug("health probe failed", zap.Error(err))
		m.set(models.ConnectivityDisconnected)
		return
	}
	m.set(models.ConnectivityConnected)
}

// Report folds an outbound call's outcome into the shared state. transient
// marks failures that indicate unreachability; business errors prove the
// backend is alive and count as success.
func (m *Monitor) Report(err error, transient func(error) bool) {
	if err != nil && transient(err) {
		m.set(models.ConnectivityDisconnected)
		return
	}
	m.set(models.ConnectivityConnected)
}

// State returns the current reachability flag. Readers must tolerate it
// changing between check and use; there is no lock spanning both.
func (m *Monitor) State() models.Connectivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers for transition notifications. The channel is buffered;
// a slow subscriber drops changes rather than blocking the probe loop.
func (m *Monitor) Subscribe() <-chan Change {
	ch := make(chan Change, 8)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *Monitor) set(next models.Connectivity) {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	subs := make([]chan Change, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.log.Info("connectivity changed",
		zap.String("from", prev.String()), zap.String("to", next.String()))

	change := Change{
		State:    next,
		Restored: next == models.ConnectivityConnected && prev == models.ConnectivityDisconnected,
	}
	for _, ch := range subs {
		select {
		case ch <- change:
		default:
		}
	}
}
