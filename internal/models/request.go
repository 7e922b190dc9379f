// Package models holds the durable shapes shared by the repository, the
// chain monitor, and the HTTP front-end.
package models

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID tags a supported network. The zero value is never a valid chain.
type ChainID uint32

const (
	ChainUnknown       ChainID = 0
	ChainMainnet       ChainID = 1
	ChainGoerli        ChainID = 5
	ChainSepolia       ChainID = 11155111
	ChainPolygon       ChainID = 137
	ChainPolygonMumbai ChainID = 80001
	ChainAnvilHardhat  ChainID = 31337
)

var chainNames = map[ChainID]string{
	ChainMainnet:       "mainnet",
	ChainGoerli:        "goerli",
	ChainSepolia:       "sepolia",
	ChainPolygon:       "polygon",
	ChainPolygonMumbai: "polygon-mumbai",
	ChainAnvilHardhat:  "anvil-hardhat",
}

// String returns the chain's tag name, falling back to its numeric id
// for chains outside the named set (used only as a Prometheus label,
// never for dispatch).
func (c ChainID) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return strconv.FormatUint(uint64(c), 10)
}

// TxIntent is the canonical EIP-1559 field set after filling. It is
// serialized as JSON in the repository.
type TxIntent struct {
	To             common.Address `json:"to"`
	Value          *big.Int       `json:"value"`
	Data           []byte         `json:"data,omitempty"`
	MaxFeePerGas   *big.Int       `json:"max_fee_per_gas"`
	MaxPriorityFee *big.Int       `json:"max_priority_fee_per_gas"`
	Nonce          uint64         `json:"nonce"`
	ChainID        ChainID        `json:"chain_id"`
	GasLimit       uint64         `json:"gas_limit"`
}

// Clone returns a deep copy so callers can mutate the result without
// racing the original (the teacher's exercises call this "defensive
// copying" for *big.Int fields).
func (t TxIntent) Clone() TxIntent {
	clone := t
	if t.Value != nil {
		clone.Value = new(big.Int).Set(t.Value)
	}
	if t.MaxFeePerGas != nil {
		clone.MaxFeePerGas = new(big.Int).Set(t.MaxFeePerGas)
	}
	if t.MaxPriorityFee != nil {
		clone.MaxPriorityFee = new(big.Int).Set(t.MaxPriorityFee)
	}
	if t.Data != nil {
		clone.Data = append([]byte(nil), t.Data...)
	}
	return clone
}

// HasFees reports whether both fee fields are already populated.
func (t TxIntent) HasFees() bool {
	return t.MaxFeePerGas != nil && t.MaxPriorityFee != nil
}

// Request is the durable record owned by a single Chain Monitor.
type Request struct {
	ID        string
	Chain     ChainID
	Hash      string
	Tx        TxIntent
	Mined     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update is one row of an update_many batch. Tx is included alongside
// (id, mined, hash) so a re-broadcast's escalated fees are durably
// recorded — without it, the monitor would have no way to read back the
// fee level its own previous tick committed to, and the fee-monotonicity
// invariant of the data model (each bump measured against the *prior*
// persisted fee) could not hold across restarts.
type Update struct {
	ID    string
	Mined bool
	Hash  string
	Tx    TxIntent
}
