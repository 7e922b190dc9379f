package chain

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/feepolicy"
	"github.com/relaynet/txrelay/internal/metrics"
	"github.com/relaynet/txrelay/internal/models"
	"github.com/relaynet/txrelay/internal/repository"
)

// rateLimitSpacer is the "~1s sleep between RPC calls to stay under
// provider rate limits" of spec §4.3.2. A package variable (not a
// const) so tests can shrink it to zero.
var rateLimitSpacer = time.Second

// Monitor owns one chain's provider pipeline and drives the
// block-triggered escalation loop of spec §4.3.2.
type Monitor struct {
	chain          models.ChainID
	provider       Provider
	repo           repository.Interface
	blockFrequency int
	logger         zerolog.Logger
	metrics        *metrics.Metrics

	blockCount uint64
}

// NewMonitor constructs a Monitor. blockFrequency must be positive.
func NewMonitor(chainID models.ChainID, provider Provider, repo repository.Interface, blockFrequency int, logger zerolog.Logger, m *metrics.Metrics) *Monitor {
	if blockFrequency < 1 {
		blockFrequency = 1
	}
	return &Monitor{
		chain:          chainID,
		provider:       provider,
		repo:           repo,
		blockFrequency: blockFrequency,
		logger:         logger.With().Uint32("chain", uint32(chainID)).Logger(),
		metrics:        m,
	}
}

// Submit fills, signs, broadcasts, and durably records intent, per
// spec §4.3.1.
func (m *Monitor) Submit(ctx context.Context, intent models.TxIntent) (string, error) {
	filled := intent.Clone()

	if err := m.provider.FillTransaction(ctx, &filled); err != nil {
		return "", &SubmissionError{Stage: "fill", Err: err}
	}

	hash, err := m.provider.SendTransaction(ctx, filled)
	if err != nil {
		return "", &SubmissionError{Stage: "broadcast", Err: err}
	}

	id := uuid.NewString()
	req := models.Request{
		ID:    id,
		Chain: m.chain,
		Hash:  hash.Hex(),
		Tx:    filled,
		Mined: false,
	}

	if err := m.repo.Save(ctx, req); err != nil {
		// The transaction is already on-chain at this point; the
		// relay has simply lost track of it. Spec §9 names this the
		// accepted open question ("partial failure between broadcast
		// and persistence") and keeps the broadcast-then-persist order.
		m.logger.Error().Err(err).Str("hash", hash.Hex()).
			Msg("broadcast succeeded but persistence failed; transaction is orphaned from relay tracking")
		return "", &SubmissionError{Stage: "persist", Err: err}
	}

	if m.metrics != nil {
		m.metrics.Submissions.WithLabelValues(m.chain.String()).Inc()
	}

	return id, nil
}

// Status delegates to the repository; no RPC calls, per spec §4.3.3.
func (m *Monitor) Status(ctx context.Context, id string) (*models.Request, error) {
	return m.repo.Get(ctx, id)
}

// Run subscribes to new blocks and drives one tick per delivered block
// hash until ctx is cancelled or the subscription ends. This is the
// Monitor's one long-lived background task (spec §5).
func (m *Monitor) Run(ctx context.Context) error {
	hashes, sub, err := m.provider.WatchBlocks(ctx)
	if err != nil {
		return &FatalError{Err: err}
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err != nil {
				return &FatalError{Err: err}
			}
			return nil
		case blockHash, ok := <-hashes:
			if !ok {
				return nil
			}
			m.blockCount++
			if err := m.tick(ctx, blockHash); err != nil {
				m.logger.Error().Err(err).Msg("monitor tick aborted, resuming on next block")
				if m.metrics != nil {
					m.metrics.TickErrors.WithLabelValues(m.chain.String()).Inc()
				}
			}
		}
	}
}

// tick implements spec §4.3.2 steps 2-7 for a single delivered block.
func (m *Monitor) tick(ctx context.Context, blockHash common.Hash) error {
	block, err := m.provider.GetBlockWithTxs(ctx, blockHash)
	if err != nil {
		return err
	}

	sleep(ctx, rateLimitSpacer)

	est, err := m.provider.EstimateEIP1559Fees(ctx)
	if err != nil {
		return err
	}

	pending, err := m.repo.GetPending(ctx, m.chain)
	if err != nil {
		return err
	}

	included := blockTxHashes(block)

	var updates []models.Update
	escalate := m.blockCount%uint64(m.blockFrequency) == 0

	for _, req := range pending {
		if included[strings.ToLower(req.Hash)] {
			updates = append(updates, models.Update{ID: req.ID, Mined: true, Hash: req.Hash, Tx: req.Tx})
			if m.metrics != nil {
				m.metrics.Inclusions.WithLabelValues(m.chain.String()).Inc()
			}
			continue
		}

		if !escalate {
			continue
		}

		newFees := feepolicy.Bump(
			feepolicy.Fees{MaxFeePerGas: req.Tx.MaxFeePerGas, MaxPriorityFee: req.Tx.MaxPriorityFee},
			feepolicy.Fees{MaxFeePerGas: est.MaxFeePerGas, MaxPriorityFee: est.MaxPriorityFee},
		)
		bumped := req.Tx.Clone()
		bumped.MaxFeePerGas = newFees.MaxFeePerGas
		bumped.MaxPriorityFee = newFees.MaxPriorityFee

		newHash, err := m.provider.SendTransaction(ctx, bumped)
		if err != nil {
			if isNonceTooLow(err) {
				// An earlier attempt (possibly this one's predecessor)
				// was already included; spec §4.3.2 step 6 treats this
				// as the fallback mined-detection path.
				updates = append(updates, models.Update{ID: req.ID, Mined: true, Hash: req.Hash, Tx: req.Tx})
				if m.metrics != nil {
					m.metrics.NonceTooLowEvents.WithLabelValues(m.chain.String()).Inc()
					m.metrics.Inclusions.WithLabelValues(m.chain.String()).Inc()
				}
				continue
			}
			return err
		}

		updates = append(updates, models.Update{ID: req.ID, Mined: false, Hash: newHash.Hex(), Tx: bumped})
		if m.metrics != nil {
			m.metrics.Rebroadcasts.WithLabelValues(m.chain.String()).Inc()
		}
		sleep(ctx, rateLimitSpacer)
	}

	return m.repo.UpdateMany(ctx, updates)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func isNonceTooLow(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "nonce too low")
}

// blockTxHashes indexes a block's transaction hashes (lowercased hex)
// for the inclusion check of spec §4.3.2 step 6.
func blockTxHashes(block *types.Block) map[string]bool {
	included := make(map[string]bool, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		included[strings.ToLower(tx.Hash().Hex())] = true
	}
	return included
}
