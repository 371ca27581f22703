package chainreader

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeCodeProvider struct {
	latest      uint64
	codeAtCalls int
	codeByBlock map[uint64][]byte
}

func (f *fakeCodeProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeCodeProvider) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.codeAtCalls++
	return f.codeByBlock[blockNumber.Uint64()], nil
}

// E1: genesis binary search makes zero eth_getCode calls.
func TestFindContractCreationBlockGenesis(t *testing.T) {
	f := &fakeCodeProvider{latest: 0}
	block, err := FindContractCreationBlock(context.Background(), f, common.Address{})
	require.NoError(t, err)
	require.Equal(t, uint64(0), block)
	require.Equal(t, 0, f.codeAtCalls)
}

// E2: latest=4, eth_getCode(2) empty, eth_getCode(3) non-empty -> 3,
// using exactly two eth_getCode calls.
func TestFindContractCreationBlockBinarySearch(t *testing.T) {
	f := &fakeCodeProvider{
		latest: 4,
		codeByBlock: map[uint64][]byte{
			3: {0x60},
		},
	}
	block, err := FindContractCreationBlock(context.Background(), f, common.Address{})
	require.NoError(t, err)
	require.Equal(t, uint64(3), block)
	require.Equal(t, 2, f.codeAtCalls)
}
