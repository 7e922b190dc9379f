// Package relay is the thin dispatcher of spec §4.4: it holds the
// repository and a chain -> Chain Monitor map, and exposes submit/status
// to the HTTP front-end.
package relay

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/chain"
	"github.com/relaynet/txrelay/internal/metrics"
	"github.com/relaynet/txrelay/internal/models"
	"github.com/relaynet/txrelay/internal/repository"
)

var (
	// ErrAlreadyRegistered is returned by Register for a chain that
	// already has a monitor.
	ErrAlreadyRegistered = errors.New("relay: chain already registered")
	// ErrUnsupportedChain is returned by Submit for a chain with no
	// registered monitor.
	ErrUnsupportedChain = errors.New("relay: unsupported chain")
)

// monitorHandle pairs a running Monitor with the cancel func and the
// liveness flag reported by Healthy (spec §7's fatal-subscription policy).
type monitorHandle struct {
	monitor *chain.Monitor
	cancel  context.CancelFunc

	mu      sync.RWMutex
	healthy bool
	lastErr error
}

// Facade is the relay's single entry point for both submission and
// status lookups.
type Facade struct {
	repo    repository.Interface
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	monitors map[models.ChainID]*monitorHandle
}

// New builds a Facade over repo. repo is a value handed in at
// construction, not a back-pointer any monitor owns — spec §9's "cyclic
// risk...broken by the repository being stateless aside from the
// connection pool".
func New(repo repository.Interface, logger zerolog.Logger, m *metrics.Metrics) *Facade {
	return &Facade{
		repo:     repo,
		logger:   logger,
		metrics:  m,
		monitors: make(map[models.ChainID]*monitorHandle),
	}
}

// Register takes the already-built provider pipeline for chainID, primes
// its nonce manager, constructs a Chain Monitor, and spawns its
// background loop.
// Re-registering an already-registered chain returns ErrAlreadyRegistered.
func (f *Facade) Register(ctx context.Context, chainID models.ChainID, provider chain.Provider, blockFrequency int) error {
	f.mu.Lock()
	if _, exists := f.monitors[chainID]; exists {
		f.mu.Unlock()
		return ErrAlreadyRegistered
	}

	if err := provider.InitializeNonce(ctx); err != nil {
		f.mu.Unlock()
		return errors.Wrapf(err, "initialize nonce for chain %s", chainID)
	}

	monitor := chain.NewMonitor(chainID, provider, f.repo, blockFrequency, f.logger, f.metrics)
	runCtx, cancel := context.WithCancel(context.Background())
	handle := &monitorHandle{monitor: monitor, cancel: cancel, healthy: true}
	f.monitors[chainID] = handle
	f.mu.Unlock()

	go func() {
		err := monitor.Run(runCtx)
		handle.mu.Lock()
		handle.healthy = false
		handle.lastErr = err
		handle.mu.Unlock()
		f.logger.Error().Err(err).Uint32("chain", uint32(chainID)).
			Msg("chain monitor loop exited")
	}()

	return nil
}

// Submit looks up the monitor for chainID and delegates to it.
func (f *Facade) Submit(ctx context.Context, intent models.TxIntent, chainID models.ChainID) (string, error) {
	f.mu.RLock()
	handle, ok := f.monitors[chainID]
	f.mu.RUnlock()
	if !ok {
		return "", ErrUnsupportedChain
	}
	return handle.monitor.Submit(ctx, intent)
}

// Status delegates directly to the repository; the monitor is not
// needed, per spec §4.4.
func (f *Facade) Status(ctx context.Context, id string) (*models.Request, error) {
	return f.repo.Get(ctx, id)
}

// Healthy reports whether chainID's monitor loop is still running, and
// the error the loop exited with once it has stopped. The /ready handler
// does not call it; readiness reflects only the repository ping.
func (f *Facade) Healthy(chainID models.ChainID) (bool, error) {
	f.mu.RLock()
	handle, ok := f.monitors[chainID]
	f.mu.RUnlock()
	if !ok {
		return false, ErrUnsupportedChain
	}
	handle.mu.RLock()
	defer handle.mu.RUnlock()
	return handle.healthy, handle.lastErr
}

// Chains returns the set of registered chain ids.
func (f *Facade) Chains() []models.ChainID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.ChainID, 0, len(f.monitors))
	for id := range f.monitors {
		out = append(out, id)
	}
	return out
}
