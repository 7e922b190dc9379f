package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/chain"
	"github.com/relaynet/txrelay/internal/models"
	"github.com/relaynet/txrelay/internal/relay"
	"github.com/relaynet/txrelay/internal/repository"
)

// noopProvider answers every chain.Provider call with fixed success
// values; enough to drive the HTTP layer's request/response shaping
// without a live RPC endpoint.
type noopProvider struct{ chainID models.ChainID }

func (p *noopProvider) EstimateEIP1559Fees(ctx context.Context) (chain.FeeEstimate, error) {
	return chain.FeeEstimate{MaxFeePerGas: big.NewInt(2), MaxPriorityFee: big.NewInt(1)}, nil
}
func (p *noopProvider) FillTransaction(ctx context.Context, intent *models.TxIntent) error {
	intent.MaxFeePerGas = big.NewInt(2)
	intent.MaxPriorityFee = big.NewInt(1)
	intent.ChainID = p.chainID
	return nil
}
func (p *noopProvider) SendTransaction(ctx context.Context, intent models.TxIntent) (common.Hash, error) {
	return common.HexToHash("0xfeed"), nil
}
func (p *noopProvider) GetBlockWithTxs(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return types.NewBlockWithHeader(&types.Header{}), nil
}
func (p *noopProvider) WatchBlocks(ctx context.Context) (<-chan common.Hash, chain.Subscription, error) {
	return make(chan common.Hash), &noopSubscription{}, nil
}
func (p *noopProvider) GetChainID() models.ChainID              { return p.chainID }
func (p *noopProvider) InitializeNonce(ctx context.Context) error { return nil }
func (p *noopProvider) FromAddress() common.Address             { return common.Address{} }

type noopSubscription struct{}

func (noopSubscription) Unsubscribe()      {}
func (noopSubscription) Err() <-chan error { return make(chan error) }

type memRepo struct{ requests map[string]models.Request }

func newMemRepo() *memRepo { return &memRepo{requests: make(map[string]models.Request)} }

func (r *memRepo) Save(ctx context.Context, req models.Request) error {
	r.requests[req.ID] = req
	return nil
}
func (r *memRepo) Get(ctx context.Context, id string) (*models.Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}
func (r *memRepo) GetPending(ctx context.Context, c models.ChainID) ([]models.Request, error) {
	return nil, nil
}
func (r *memRepo) UpdateMany(ctx context.Context, updates []models.Update) error { return nil }
func (r *memRepo) Health(ctx context.Context) error                             { return nil }
func (r *memRepo) Close() error                                                 { return nil }

var _ repository.Interface = (*memRepo)(nil)

func newTestFacade(t *testing.T) *relay.Facade {
	t.Helper()
	f := relay.New(newMemRepo(), zerolog.Nop(), nil)
	if err := f.Register(context.Background(), models.ChainAnvilHardhat, &noopProvider{chainID: models.ChainAnvilHardhat}, 1); err != nil {
		t.Fatalf("register: %v", err)
	}
	return f
}

func resolveAnvil(tag string) (models.ChainID, bool) {
	if tag == "anvil" {
		return models.ChainAnvilHardhat, true
	}
	return 0, false
}

func TestSubmitTransaction_RejectsUnknownChain(t *testing.T) {
	f := newTestFacade(t)
	handler := SubmitTransaction(f, resolveAnvil, zerolog.Nop())

	body := bytes.NewBufferString(`{"to":"0x00000000000000000000000000000000000000aa","value":"1","chain":"polygon"}`)
	req := httptest.NewRequest(http.MethodPost, "/transaction", body)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown chain, got %d", rec.Code)
	}
}

func TestSubmitTransaction_RejectsMalformedAddress(t *testing.T) {
	f := newTestFacade(t)
	handler := SubmitTransaction(f, resolveAnvil, zerolog.Nop())

	body := bytes.NewBufferString(`{"to":"not-an-address","value":"1","chain":"anvil"}`)
	req := httptest.NewRequest(http.MethodPost, "/transaction", body)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed address, got %d", rec.Code)
	}
}

func TestSubmitTransaction_Success(t *testing.T) {
	f := newTestFacade(t)
	handler := SubmitTransaction(f, resolveAnvil, zerolog.Nop())

	body := bytes.NewBufferString(`{"to":"0x00000000000000000000000000000000000000aa","value":"1","chain":"anvil"}`)
	req := httptest.NewRequest(http.MethodPost, "/transaction", body)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var id string
	if err := json.Unmarshal(rec.Body.Bytes(), &id); err != nil {
		t.Fatalf("decode response id: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty request id")
	}
}

func TestGetTransactionStatus_UnknownID(t *testing.T) {
	f := newTestFacade(t)
	handler := GetTransactionStatus(f, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/transaction/does-not-exist", nil)
	req.SetPathValue("id", "does-not-exist")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestParseIntent_RejectsNonHexData(t *testing.T) {
	_, err := parseIntent(submitRequest{
		To:   "0x00000000000000000000000000000000000000aa",
		Data: "not-hex",
	})
	if err == nil {
		t.Fatalf("expected error for non-hex data field")
	}
}
