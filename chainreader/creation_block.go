package chainreader

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

// CodeProvider is the narrow slice of ethclient.Client's surface that
// FindContractCreationBlock needs, so it can be driven by a fake in
// tests without spinning up a real node.
type CodeProvider interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// FindContractCreationBlock binary-searches for the lowest block number
// at which addr has code deployed. If the chain's current head is block
// 0, addr cannot have been deployed yet and the search returns 0
// without issuing a single eth_getCode call (E1).
func FindContractCreationBlock(ctx context.Context, provider CodeProvider, addr common.Address) (uint64, error) {
	high, err := provider.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "chainreader: get block number")
	}

	var low uint64
	for low < high {
		mid := low + (high-low)/2
		code, err := provider.CodeAt(ctx, addr, new(big.Int).SetUint64(mid))
		if err != nil {
			return 0, errors.Wrapf(err, "chainreader: get code at block %d", mid)
		}
		if len(code) == 0 {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low, nil
}
