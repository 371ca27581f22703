package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromData(t *testing.T) {
	d1 := FromData([]byte("cartesi"))
	d2 := FromData([]byte("cartesi"))
	require.Equal(t, d1, d2)

	d3 := FromData([]byte("dave"))
	require.NotEqual(t, d1, d3)
}

func TestJoinDeterministic(t *testing.T) {
	a := FromData([]byte{1})
	b := FromData([]byte{2})

	require.Equal(t, Join(a, b), Join(a, b))
	require.NotEqual(t, Join(a, b), Join(b, a))
}

// R3: join(ZERO, ZERO) is deterministic.
func TestJoinZeroZeroDeterministic(t *testing.T) {
	require.Equal(t, Join(Zero, Zero), Join(Zero, Zero))
}

func TestDigestHexRoundTrip(t *testing.T) {
	d := FromData([]byte("round-trip"))
	parsed, err := FromHex(d.Hex())
	require.NoError(t, err)
	require.Equal(t, d, parsed)
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	_, err := FromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
