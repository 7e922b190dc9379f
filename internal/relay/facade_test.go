package relay

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/chain"
	"github.com/relaynet/txrelay/internal/models"
)

// stubProvider is the smallest chain.Provider fake that lets Register
// and Submit exercise without a live RPC endpoint.
type stubProvider struct {
	chainID     models.ChainID
	initErr     error
	sendHash    common.Hash
	sendErr     error
	watchBlocks chan common.Hash
	watchErr    error
}

func (p *stubProvider) EstimateEIP1559Fees(ctx context.Context) (chain.FeeEstimate, error) {
	return chain.FeeEstimate{MaxFeePerGas: big.NewInt(2), MaxPriorityFee: big.NewInt(1)}, nil
}

func (p *stubProvider) FillTransaction(ctx context.Context, intent *models.TxIntent) error {
	intent.MaxFeePerGas = big.NewInt(2)
	intent.MaxPriorityFee = big.NewInt(1)
	intent.ChainID = p.chainID
	return nil
}

func (p *stubProvider) SendTransaction(ctx context.Context, intent models.TxIntent) (common.Hash, error) {
	return p.sendHash, p.sendErr
}

func (p *stubProvider) GetBlockWithTxs(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return types.NewBlockWithHeader(&types.Header{}), nil
}

func (p *stubProvider) WatchBlocks(ctx context.Context) (<-chan common.Hash, chain.Subscription, error) {
	if p.watchErr != nil {
		return nil, nil, p.watchErr
	}
	if p.watchBlocks == nil {
		p.watchBlocks = make(chan common.Hash)
	}
	return p.watchBlocks, &stubSubscription{errCh: make(chan error)}, nil
}

func (p *stubProvider) GetChainID() models.ChainID              { return p.chainID }
func (p *stubProvider) InitializeNonce(ctx context.Context) error { return p.initErr }
func (p *stubProvider) FromAddress() common.Address             { return common.Address{} }

type stubSubscription struct{ errCh chan error }

func (s *stubSubscription) Unsubscribe()      {}
func (s *stubSubscription) Err() <-chan error { return s.errCh }

type stubRepo struct {
	requests map[string]models.Request
}

func newStubRepo() *stubRepo { return &stubRepo{requests: make(map[string]models.Request)} }

func (r *stubRepo) Save(ctx context.Context, req models.Request) error {
	r.requests[req.ID] = req
	return nil
}
func (r *stubRepo) Get(ctx context.Context, id string) (*models.Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}
func (r *stubRepo) GetPending(ctx context.Context, c models.ChainID) ([]models.Request, error) {
	return nil, nil
}
func (r *stubRepo) UpdateMany(ctx context.Context, updates []models.Update) error { return nil }
func (r *stubRepo) Health(ctx context.Context) error                             { return nil }
func (r *stubRepo) Close() error                                                 { return nil }

func TestFacade_Register_RejectsDuplicateChain(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	p := &stubProvider{chainID: models.ChainAnvilHardhat}

	if err := f.Register(context.Background(), models.ChainAnvilHardhat, p, 1); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := f.Register(context.Background(), models.ChainAnvilHardhat, p, 1)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestFacade_Register_PropagatesNonceInitFailure(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	p := &stubProvider{chainID: models.ChainSepolia, initErr: errors.New("rpc unreachable")}

	err := f.Register(context.Background(), models.ChainSepolia, p, 1)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if _, ok := f.monitors[models.ChainSepolia]; ok {
		t.Fatalf("chain should not be registered when nonce init fails")
	}
}

func TestFacade_Submit_UnsupportedChain(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	_, err := f.Submit(context.Background(), models.TxIntent{}, models.ChainPolygon)
	if !errors.Is(err, ErrUnsupportedChain) {
		t.Fatalf("expected ErrUnsupportedChain, got %v", err)
	}
}

func TestFacade_Submit_DelegatesToRegisteredMonitor(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	p := &stubProvider{chainID: models.ChainAnvilHardhat, sendHash: common.HexToHash("0xdead")}
	if err := f.Register(context.Background(), models.ChainAnvilHardhat, p, 1); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := f.Submit(context.Background(), models.TxIntent{To: common.HexToAddress("0x1"), Value: big.NewInt(1)}, models.ChainAnvilHardhat)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty request id")
	}

	req, err := f.Status(context.Background(), id)
	if err != nil || req == nil {
		t.Fatalf("status lookup failed: err=%v req=%v", err, req)
	}
	if req.Hash != common.HexToHash("0xdead").Hex() {
		t.Fatalf("unexpected hash: %s", req.Hash)
	}
}

func TestFacade_Status_UnknownID(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	req, err := f.Status(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if req != nil {
		t.Fatalf("expected nil for unknown id, got %+v", req)
	}
}

func TestFacade_Healthy_StaysTrueUntilMonitorLoopExits(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	p := &stubProvider{chainID: models.ChainAnvilHardhat, watchErr: errors.New("subscribe failed")}
	if err := f.Register(context.Background(), models.ChainAnvilHardhat, p, 1); err != nil {
		t.Fatalf("register: %v", err)
	}

	// The monitor's Run goroutine fails its WatchBlocks call immediately
	// and marks itself unhealthy; poll briefly rather than sleeping a
	// fixed duration to keep this deterministic-ish without a toolchain
	// run to tune against.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		healthy, _ := f.Healthy(models.ChainAnvilHardhat)
		if !healthy {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected monitor to report unhealthy after WatchBlocks failure")
}

func TestFacade_Healthy_UnregisteredChain(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	_, err := f.Healthy(models.ChainMainnet)
	if !errors.Is(err, ErrUnsupportedChain) {
		t.Fatalf("expected ErrUnsupportedChain, got %v", err)
	}
}

func TestFacade_Chains_ReflectsRegistrations(t *testing.T) {
	f := New(newStubRepo(), zerolog.Nop(), nil)
	p1 := &stubProvider{chainID: models.ChainAnvilHardhat}
	p2 := &stubProvider{chainID: models.ChainSepolia}
	if err := f.Register(context.Background(), models.ChainAnvilHardhat, p1, 1); err != nil {
		t.Fatalf("register 1: %v", err)
	}
	if err := f.Register(context.Background(), models.ChainSepolia, p2, 1); err != nil {
		t.Fatalf("register 2: %v", err)
	}

	chains := f.Chains()
	if len(chains) != 2 {
		t.Fatalf("expected 2 registered chains, got %d", len(chains))
	}
}
