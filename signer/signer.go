// Package signer provides the two ways this node can authorize
// outgoing transactions: a raw private key, or an AWS KMS-held key
// whose signature is obtained over the network (spec.md §6's
// "Signer subcommand" CLI surface).
package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Signer produces bind.TransactOpts bound to a fixed address, ready to
// sign any transaction sent through a *bind.TransactOpts-driven call
// (contracts.ConsensusCaller.Settle, contracts.TournamentCaller.*).
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}
