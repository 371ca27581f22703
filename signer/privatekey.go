package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKeySigner signs locally with a raw secp256k1 key, mirroring
// the teacher's accounts/abi/bind keyed-transactor path
// (SignerArgs::Pk in the original args.rs).
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner parses a "0x"-optional hex-encoded private key.
func NewPrivateKeySigner(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "signer: parse private key")
	}
	return &PrivateKeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewPrivateKeySignerFromFile reads the key from path, trimming
// surrounding whitespace, mirroring --web3-private-key-file.
func NewPrivateKeySignerFromFile(path string) (*PrivateKeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "signer: read private key file")
	}
	return NewPrivateKeySigner(strings.TrimSpace(string(data)))
}

func (s *PrivateKeySigner) Address() common.Address { return s.address }

func (s *PrivateKeySigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "signer: build keyed transactor")
	}
	opts.Context = ctx
	return opts, nil
}
