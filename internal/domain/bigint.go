package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// BigInt wraps *big.Int so token amounts serialize as decimal strings.
// JSON numbers cannot carry 256-bit values without precision loss.
type BigInt struct {
	*big.Int
}

// NewBigInt wraps v. A nil v is treated as zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{big.NewInt(0)}
	}
	return BigInt{new(big.Int).Set(v)}
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte(`"0"`), nil
	}
	return []byte(`"` + b.Int.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		b.Int = big.NewInt(0)
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("domain: invalid big integer %q", s)
	}
	b.Int = v
	return nil
}

// Value returns the wrapped integer, never nil.
func (b BigInt) Value() *big.Int {
	if b.Int == nil {
		return big.NewInt(0)
	}
	return b.Int
}
