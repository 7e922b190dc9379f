package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ethClientAdapter narrows *ethclient.Client down to RPCClient, the
// same "wrap the real client behind a small interface" shape every
// geth/* exercise in the teacher repo uses (FeeClient, TXClient,
// MonitorClient, LogClient each do this for their own method subset).
type ethClientAdapter struct {
	client *ethclient.Client
}

// WrapEthClient adapts a live go-ethereum client to RPCClient.
func WrapEthClient(client *ethclient.Client) RPCClient {
	return &ethClientAdapter{client: client}
}

func (a *ethClientAdapter) ChainID(ctx context.Context) (*big.Int, error) {
	return a.client.ChainID(ctx)
}

func (a *ethClientAdapter) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return a.client.SuggestGasTipCap(ctx)
}

func (a *ethClientAdapter) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return a.client.HeaderByNumber(ctx, number)
}

func (a *ethClientAdapter) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return a.client.BlockByHash(ctx, hash)
}

func (a *ethClientAdapter) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return a.client.PendingNonceAt(ctx, account)
}

func (a *ethClientAdapter) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return a.client.SendTransaction(ctx, tx)
}

func (a *ethClientAdapter) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (Subscription, error) {
	return a.client.SubscribeNewHead(ctx, ch)
}
