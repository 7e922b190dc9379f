// Package chain implements the per-chain signing/nonce-managing client
// pipeline and the background monitor/escalation loop described in
// spec §4.3. The interfaces here are narrow slices of
// github.com/ethereum/go-ethereum's ethclient.Client, in the same style
// the teacher's geth/* exercises define FeeClient, TXClient, and
// MonitorClient — depend on the handful of methods actually used, not
// the whole client.
package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/relaynet/txrelay/internal/models"
)

// RPCClient is the subset of ethclient.Client the provider pipeline
// needs: fee estimation, nonce lookup, broadcast, block and header
// access, and new-head subscription (the capability set of spec §6.3).
type RPCClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (Subscription, error)
}

// Subscription mirrors ethereum.Subscription (Unsubscribe + Err) so
// callers never need the go-ethereum subscription type directly.
type Subscription interface {
	Unsubscribe()
	Err() <-chan error
}

// FeeEstimate is the network's current suggested (max_fee, max_priority_fee).
type FeeEstimate struct {
	MaxFeePerGas   *big.Int
	MaxPriorityFee *big.Int
}

// Provider is the "nonce_manager(signer(rpc(chain)))" pipeline of
// spec §4.3: everything a Chain Monitor needs from its chain.
type Provider interface {
	EstimateEIP1559Fees(ctx context.Context) (FeeEstimate, error)
	FillTransaction(ctx context.Context, intent *models.TxIntent) error
	SendTransaction(ctx context.Context, intent models.TxIntent) (common.Hash, error)
	GetBlockWithTxs(ctx context.Context, hash common.Hash) (*types.Block, error)
	WatchBlocks(ctx context.Context) (<-chan common.Hash, Subscription, error)
	GetChainID() models.ChainID
	InitializeNonce(ctx context.Context) error
	FromAddress() common.Address
}

const defaultTransferGasLimit = 21000

// evmProvider is the concrete Provider: a go-ethereum RPC client, an
// ECDSA signer, and an in-process nonce manager, composed exactly as
// spec §4.3 describes ("provider — a client pipeline
// nonce_manager(signer(rpc(chain)))").
type evmProvider struct {
	client  RPCClient
	privKey *ecdsa.PrivateKey
	from    common.Address
	chainID models.ChainID

	nonceMu sync.Mutex
	nonce   uint64
	primed  bool
}

// NewProvider builds the provider pipeline for one chain.
func NewProvider(client RPCClient, privKey *ecdsa.PrivateKey, chainID models.ChainID) Provider {
	return &evmProvider{
		client:  client,
		privKey: privKey,
		from:    crypto.PubkeyToAddress(privKey.PublicKey),
		chainID: chainID,
	}
}

func (p *evmProvider) GetChainID() models.ChainID  { return p.chainID }
func (p *evmProvider) FromAddress() common.Address { return p.from }

// InitializeNonce primes the nonce manager against the account's
// current pending nonce, per spec §6.3's "initialize_nonce()".
func (p *evmProvider) InitializeNonce(ctx context.Context) error {
	n, err := p.client.PendingNonceAt(ctx, p.from)
	if err != nil {
		return errors.Wrap(err, "initialize nonce")
	}
	p.nonceMu.Lock()
	p.nonce = n
	p.primed = true
	p.nonceMu.Unlock()
	return nil
}

func (p *evmProvider) EstimateEIP1559Fees(ctx context.Context) (FeeEstimate, error) {
	tip, err := p.client.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeEstimate{}, errors.Wrap(err, "suggest gas tip cap")
	}
	head, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeEstimate{}, errors.Wrap(err, "header by number")
	}
	if head.BaseFee == nil {
		return FeeEstimate{}, errors.Errorf("chain %d does not report a base fee (pre-EIP-1559)", p.chainID)
	}
	// Same "2x base fee + tip" headroom go-ethereum's own gas price
	// oracle and the teacher's 06-eip1559 exercise both use.
	maxFee := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	return FeeEstimate{MaxFeePerGas: maxFee, MaxPriorityFee: tip}, nil
}

// FillTransaction assigns nonce, gas limit, and chain id, exactly the
// trio spec §4.3.1 step 2 requires of "fill_transaction". The nonce
// manager hands out the next value and only advances once the send
// actually succeeds (see SendTransaction) so a failed broadcast doesn't
// burn a nonce.
func (p *evmProvider) FillTransaction(ctx context.Context, intent *models.TxIntent) error {
	if !intent.HasFees() {
		est, err := p.EstimateEIP1559Fees(ctx)
		if err != nil {
			return err
		}
		intent.MaxFeePerGas = est.MaxFeePerGas
		intent.MaxPriorityFee = est.MaxPriorityFee
	}

	if intent.GasLimit == 0 {
		intent.GasLimit = defaultTransferGasLimit
	}
	intent.ChainID = p.chainID

	p.nonceMu.Lock()
	if !p.primed {
		p.nonceMu.Unlock()
		if err := p.InitializeNonce(ctx); err != nil {
			return err
		}
		p.nonceMu.Lock()
	}
	intent.Nonce = p.nonce
	p.nonceMu.Unlock()

	return nil
}

// SendTransaction signs and broadcasts intent. On success it advances
// the nonce manager past intent.Nonce — the nonce manager's "serializes
// internally" guarantee from spec §5.
func (p *evmProvider) SendTransaction(ctx context.Context, intent models.TxIntent) (common.Hash, error) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(int64(p.chainID)),
		Nonce:     intent.Nonce,
		GasTipCap: intent.MaxPriorityFee,
		GasFeeCap: intent.MaxFeePerGas,
		Gas:       intent.GasLimit,
		To:        &intent.To,
		Value:     intent.Value,
		Data:      intent.Data,
	})

	signer := types.LatestSignerForChainID(big.NewInt(int64(p.chainID)))
	signedTx, err := types.SignTx(tx, signer, p.privKey)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sign tx")
	}

	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}

	p.nonceMu.Lock()
	if intent.Nonce >= p.nonce {
		p.nonce = intent.Nonce + 1
	}
	p.nonceMu.Unlock()

	return signedTx.Hash(), nil
}

func (p *evmProvider) GetBlockWithTxs(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return p.client.BlockByHash(ctx, hash)
}

// WatchBlocks subscribes to new headers and republishes their hashes on
// a plain channel, the Go analogue of spec §6.3's
// "watch_blocks() → infinite stream of block hashes".
func (p *evmProvider) WatchBlocks(ctx context.Context) (<-chan common.Hash, Subscription, error) {
	headers := make(chan *types.Header)
	sub, err := p.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, nil, errors.Wrap(err, "subscribe new head")
	}

	hashes := make(chan common.Hash)
	go func() {
		defer close(hashes)
		for {
			select {
			case <-ctx.Done():
				return
			case h, ok := <-headers:
				if !ok {
					return
				}
				select {
				case hashes <- h.Hash():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return hashes, sub, nil
}
