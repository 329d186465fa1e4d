// Package numeric implements exact scaled-integer arithmetic for prices and
// quantities. A ScaledInt holds a decimal value multiplied by 10^scale as an
// arbitrary-precision integer; the scale itself lives in the symbol config.
// No operation in this package goes through floating point.
package numeric

import (
	"math/big"

	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/shopspring/decimal"
)

// FeeDenominator is the divisor for basis-point fee rates.
const FeeDenominator = 10000

// ScaledInt is an arbitrary-precision integer encoding of a decimal value.
// The zero value is usable and equals zero.
type ScaledInt struct {
	i *big.Int
}

// Zero returns a zero ScaledInt.
func Zero() ScaledInt {
	return ScaledInt{}
}

// FromInt64 creates a ScaledInt from a raw scaled integer value.
func FromInt64(v int64) ScaledInt {
	return ScaledInt{i: big.NewInt(v)}
}

// FromBig creates a ScaledInt from a copy of the given big integer.
func FromBig(v *big.Int) ScaledInt {
	if v == nil {
		return ScaledInt{}
	}
	return ScaledInt{i: new(big.Int).Set(v)}
}

// Parse converts a human decimal string into a ScaledInt at the given scale.
// The conversion is exact: fractional digits beyond the scale are rejected
// rather than rounded.
func Parse(s string, scale int32) (ScaledInt, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ScaledInt{}, errors.Wrap(err, errors.ValidationError, "invalid decimal string %q", s)
	}

	shifted := d.Shift(scale)
	if !shifted.IsInteger() {
		return ScaledInt{}, errors.NewValidation("value %q has more than %d fractional digits", s, scale)
	}
	return ScaledInt{i: shifted.BigInt()}, nil
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(s string, scale int32) ScaledInt {
	v, err := Parse(s, scale)
	if err != nil {
		panic(err)
	}
	return v
}

// Format converts a ScaledInt back into an exact human decimal string.
func Format(v ScaledInt, scale int32) string {
	return decimal.NewFromBigInt(v.big(), -scale).String()
}

// Fee computes floor(notional * bps / 10000). Notional must be non-negative.
func Fee(notional ScaledInt, bps int64) ScaledInt {
	product := new(big.Int).Mul(notional.big(), big.NewInt(bps))
	return ScaledInt{i: product.Quo(product, big.NewInt(FeeDenominator))}
}

// Notional computes price*qty rescaled out of the quantity scale, truncating
// toward zero. The result carries the price scale, i.e. it is a quote-currency
// amount.
func Notional(price, qty ScaledInt, qtyScale int32) ScaledInt {
	product := new(big.Int).Mul(price.big(), qty.big())
	return ScaledInt{i: product.Quo(product, pow10(qtyScale))}
}

// ApplyBps scales a value by a basis-point factor, truncating toward zero.
// Used for reservation headroom estimates.
func ApplyBps(v ScaledInt, bps int64) ScaledInt {
	product := new(big.Int).Mul(v.big(), big.NewInt(bps))
	return ScaledInt{i: product.Quo(product, big.NewInt(FeeDenominator))}
}

// Add returns v + other.
func (v ScaledInt) Add(other ScaledInt) ScaledInt {
	return ScaledInt{i: new(big.Int).Add(v.big(), other.big())}
}

// Sub returns v - other.
func (v ScaledInt) Sub(other ScaledInt) ScaledInt {
	return ScaledInt{i: new(big.Int).Sub(v.big(), other.big())}
}

// Cmp compares v and other, returning -1, 0 or 1.
func (v ScaledInt) Cmp(other ScaledInt) int {
	return v.big().Cmp(other.big())
}

// Sign returns -1, 0 or 1 depending on the sign of v.
func (v ScaledInt) Sign() int {
	return v.big().Sign()
}

// IsZero reports whether v equals zero.
func (v ScaledInt) IsZero() bool {
	return v.big().Sign() == 0
}

// IsNegative reports whether v is below zero.
func (v ScaledInt) IsNegative() bool {
	return v.big().Sign() < 0
}

// Min returns the smaller of v and other.
func Min(v, other ScaledInt) ScaledInt {
	if v.Cmp(other) <= 0 {
		return v.Clone()
	}
	return other.Clone()
}

// Clone returns an independent copy of v.
func (v ScaledInt) Clone() ScaledInt {
	return ScaledInt{i: new(big.Int).Set(v.big())}
}

// BigInt returns a copy of the underlying integer.
func (v ScaledInt) BigInt() *big.Int {
	return new(big.Int).Set(v.big())
}

// String returns the raw scaled integer digits, not the human decimal form.
func (v ScaledInt) String() string {
	return v.big().String()
}

// MarshalJSON encodes the value as a decimal-digit string, never as a float.
func (v ScaledInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.big().String() + `"`), nil
}

// UnmarshalJSON decodes a decimal-digit string.
func (v *ScaledInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return errors.NewValidation("invalid scaled integer %q", s)
	}
	v.i = parsed
	return nil
}

func (v ScaledInt) big() *big.Int {
	if v.i == nil {
		return bigZero
	}
	return v.i
}

var bigZero = big.NewInt(0)

var pow10Table = func() []*big.Int {
	table := make([]*big.Int, 39)
	p := big.NewInt(1)
	for i := range table {
		table[i] = new(big.Int).Set(p)
		p.Mul(p, big.NewInt(10))
	}
	return table
}()

func pow10(n int32) *big.Int {
	if n >= 0 && int(n) < len(pow10Table) {
		return pow10Table[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
