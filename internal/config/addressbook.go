package config

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rollups-dave/node/chainreader"
	"github.com/rollups-dave/node/contracts"
)

// AddressBook is the fixed set of facts this node needs about one
// application before it can start reading chain state: its own
// address, the consensus and input box contracts that govern it, the
// block it was deployed at, and the initial machine hash it must
// match (spec.md §3's "AddressBook" type).
type AddressBook struct {
	App          common.Address
	Consensus    common.Address
	InputBox     common.Address
	GenesisBlock uint64
	InitialHash  [32]byte
}

// NewAddressBook resolves every AddressBook field by calling the
// application contract and binary-searching its creation block,
// mirroring AddressBook::new(app_address, provider) in the original
// args.rs.
func NewAddressBook(ctx context.Context, appAddress common.Address, backend bind.ContractBackend, creationProvider chainreader.CodeProvider) (*AddressBook, error) {
	app, err := contracts.NewApplicationCaller(appAddress, backend)
	if err != nil {
		return nil, err
	}

	consensus, err := app.GetConsensus(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "config: resolve consensus address")
	}
	inputBox, err := app.GetInputBox(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "config: resolve input box address")
	}
	initialHash, err := app.GetTemplateHash(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "config: resolve template hash")
	}
	genesisBlock, err := chainreader.FindContractCreationBlock(ctx, creationProvider, appAddress)
	if err != nil {
		return nil, errors.Wrap(err, "config: find application creation block")
	}

	return &AddressBook{
		App:          appAddress,
		Consensus:    consensus,
		InputBox:     inputBox,
		GenesisBlock: genesisBlock,
		InitialHash:  initialHash,
	}, nil
}
