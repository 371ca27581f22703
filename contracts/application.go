package contracts

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const applicationABI = `[
	{"inputs":[],"name":"getConsensus","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getInputBox","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getTemplateHash","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

// ApplicationCaller reads the three on-chain facts an application
// contract exposes about itself: which consensus contract currently
// governs it, which input box it reads inputs from, and the template
// hash its machine was built from (the
// initial state hash every node must match before it can participate).
type ApplicationCaller struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewApplicationCaller(address common.Address, backend bind.ContractBackend) (*ApplicationCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(applicationABI))
	if err != nil {
		return nil, errors.Wrap(err, "contracts: parse application ABI")
	}
	return &ApplicationCaller{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (a *ApplicationCaller) GetConsensus(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getConsensus"); err != nil {
		return common.Address{}, errors.Wrap(err, "contracts: call getConsensus")
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (a *ApplicationCaller) GetInputBox(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getInputBox"); err != nil {
		return common.Address{}, errors.Wrap(err, "contracts: call getInputBox")
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (a *ApplicationCaller) GetTemplateHash(ctx context.Context) ([32]byte, error) {
	var out []interface{}
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTemplateHash"); err != nil {
		return [32]byte{}, errors.Wrap(err, "contracts: call getTemplateHash")
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}
