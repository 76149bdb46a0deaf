package borsh

import "math/big"

// Uint128 is an unsigned 128-bit integer split into 64-bit halves.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

func (u Uint128) IsUint64() bool {
	return u.Hi == 0
}

func (u Uint128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.Big().String()
}
