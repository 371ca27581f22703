package merkle

import "math/big"

// accumCount is an arbitrary-precision accumulated leaf count. A Builder's
// running total can reach exactly 2^64 (E4), which overflows a uint64, so
// counts are tracked with math/big instead of a fixed-width integer.
type accumCount struct {
	v *big.Int
}

func newCount(v *big.Int) accumCount {
	return accumCount{v: new(big.Int).Set(v)}
}

func (c accumCount) isZero() bool {
	return c.v == nil || c.v.Sign() == 0
}

func (c accumCount) add(rep *big.Int) accumCount {
	return accumCount{v: new(big.Int).Add(c.v, rep)}
}

func (c accumCount) cmp(other *big.Int) int {
	return c.v.Cmp(other)
}

// log2 reports the base-2 logarithm of c, and whether c is a nonzero
// power of two.
func (c accumCount) log2() (uint32, bool) {
	if c.v == nil || c.v.Sign() <= 0 {
		return 0, false
	}
	masked := new(big.Int).Sub(c.v, bigOne)
	masked.And(masked, c.v)
	if masked.Sign() != 0 {
		return 0, false
	}
	return uint32(c.v.BitLen() - 1), true
}

func (c accumCount) String() string {
	return c.v.String()
}
