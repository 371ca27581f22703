// Package contracts holds minimal accounts/abi/bind adapters around the
// on-chain InputBox, consensus, and tournament contracts: just enough
// of each ABI for chainreader, machinerunner, epochmanager, and
// disputeplayer to call, matching the teacher's own abigen-generated
// binding shape (contracts/tests/contract/Inherited.go) without
// carrying the full generated surface this module never calls.
package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const inputBoxABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"address","name":"app","type":"address"},
		{"indexed":true,"internalType":"uint256","name":"index","type":"uint256"},
		{"indexed":false,"internalType":"bytes","name":"input","type":"bytes"}
	],"name":"InputAdded","type":"event"}
]`

// InputAdded is the decoded form of the InputBox's InputAdded event:
// one input appended to app's stream at the on-chain index.
type InputAdded struct {
	App   common.Address
	Index uint64
	Input []byte
	Raw   types.Log
}

// InputBoxFilterer decodes InputAdded logs emitted by the InputBox
// contract. It carries no transacting surface: inputs are added by
// rollup users, never by this node.
type InputBoxFilterer struct {
	address common.Address
	abi     abi.ABI
	filter  ethereum.LogFilterer
}

func NewInputBoxFilterer(address common.Address, filter ethereum.LogFilterer) (*InputBoxFilterer, error) {
	parsed, err := abi.JSON(strings.NewReader(inputBoxABI))
	if err != nil {
		return nil, errors.Wrap(err, "contracts: parse InputBox ABI")
	}
	return &InputBoxFilterer{address: address, abi: parsed, filter: filter}, nil
}

// FilterInputAdded returns every InputAdded event for app within
// [from, to], decoded and ordered as returned by the node (block then
// log index order, matching on-chain emission order).
func (f *InputBoxFilterer) FilterInputAdded(ctx context.Context, app common.Address, from, to uint64) ([]InputAdded, error) {
	topic0 := f.abi.Events["InputAdded"].ID
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{f.address},
		Topics:    [][]common.Hash{{topic0}, {}, {}},
	}
	if app != (common.Address{}) {
		query.Topics[1] = []common.Hash{common.BytesToHash(app.Bytes())}
	}

	logs, err := f.filter.FilterLogs(ctx, query)
	if err != nil {
		return nil, err // left unwrapped: callers bisect on provider "too large" errors
	}

	out := make([]InputAdded, 0, len(logs))
	for _, lg := range logs {
		var decoded struct{ Input []byte }
		if err := f.abi.UnpackIntoInterface(&decoded, "InputAdded", lg.Data); err != nil {
			return nil, errors.Wrap(err, "contracts: unpack InputAdded")
		}
		out = append(out, InputAdded{
			App:   common.BytesToAddress(lg.Topics[1].Bytes()),
			Index: new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64(),
			Input: decoded.Input,
			Raw:   lg,
		})
	}
	return out, nil
}
