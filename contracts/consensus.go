package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const consensusABI = `[
	{"inputs":[],"name":"canSettle","outputs":[
		{"internalType":"bool","name":"isFinished","type":"bool"},
		{"internalType":"bytes32","name":"epochHash","type":"bytes32"},
		{"internalType":"uint256","name":"epochNumber","type":"uint256"}
	],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"epochNumber","type":"uint256"}],
	 "name":"settle","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint256","name":"epochNumber","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"inputIndexBoundary","type":"uint256"},
		{"indexed":false,"internalType":"address","name":"rootTournament","type":"address"}
	],"name":"EpochSealed","type":"event"}
]`

// CanSettle mirrors the consensus contract's canSettle() view: whether
// epochNumber has finished its dispute window and can be settled.
type CanSettle struct {
	IsFinished  bool
	EpochHash   [32]byte
	EpochNumber uint64
}

// EpochSealed is the decoded form of the consensus contract's
// EpochSealed event, marking a new epoch's input boundary and the
// address of the tournament that will adjudicate it.
type EpochSealed struct {
	EpochNumber        uint64
	InputIndexBoundary uint64
	RootTournament     common.Address
	Raw                types.Log
}

// ConsensusCaller reads canSettle() and decodes EpochSealed logs, and
// sends settle(epochNumber) transactions.
type ConsensusCaller struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	filter   ethereum.LogFilterer
}

func NewConsensusCaller(address common.Address, backend bind.ContractBackend) (*ConsensusCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(consensusABI))
	if err != nil {
		return nil, errors.Wrap(err, "contracts: parse consensus ABI")
	}
	filter, _ := backend.(ethereum.LogFilterer)
	return &ConsensusCaller{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		filter:   filter,
	}, nil
}

func (c *ConsensusCaller) CanSettle(ctx context.Context) (CanSettle, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "canSettle"); err != nil {
		return CanSettle{}, errors.Wrap(err, "contracts: call canSettle")
	}
	return CanSettle{
		IsFinished:  *abi.ConvertType(out[0], new(bool)).(*bool),
		EpochHash:   *abi.ConvertType(out[1], new([32]byte)).(*[32]byte),
		EpochNumber: abi.ConvertType(out[2], new(big.Int)).(*big.Int).Uint64(),
	}, nil
}

func (c *ConsensusCaller) Settle(opts *bind.TransactOpts, epochNumber uint64) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, "settle", new(big.Int).SetUint64(epochNumber))
	if err != nil {
		return nil, errors.Wrap(err, "contracts: send settle")
	}
	return tx, nil
}

// FilterEpochSealed returns every EpochSealed event in [from, to],
// ordered as returned by the node.
func (c *ConsensusCaller) FilterEpochSealed(ctx context.Context, from, to uint64) ([]EpochSealed, error) {
	if c.filter == nil {
		return nil, errors.New("contracts: backend does not support log filtering")
	}
	topic0 := c.abi.Events["EpochSealed"].ID
	logs, err := c.filter.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{topic0}},
	})
	if err != nil {
		return nil, err // left unwrapped: callers bisect on provider "too large" errors
	}

	out := make([]EpochSealed, 0, len(logs))
	for _, lg := range logs {
		var decoded struct {
			InputIndexBoundary *big.Int
			RootTournament     common.Address
		}
		if err := c.abi.UnpackIntoInterface(&decoded, "EpochSealed", lg.Data); err != nil {
			return nil, errors.Wrap(err, "contracts: unpack EpochSealed")
		}
		out = append(out, EpochSealed{
			EpochNumber:        new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(),
			InputIndexBoundary: decoded.InputIndexBoundary.Uint64(),
			RootTournament:     decoded.RootTournament,
			Raw:                lg,
		})
	}
	return out, nil
}
