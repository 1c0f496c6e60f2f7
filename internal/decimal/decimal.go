package decimal

import "lukechampine.com/uint128"

// Scales used by the protocol for values stored as plain integers.
const (
	PercentScale      uint8 = 4
	InterestRateScale uint8 = 18
	TokenScale        uint8 = 6
	PriceScale        uint8 = 4
	USDScale          uint8 = 6

	// MaxScale is the largest scale whose denominator fits in 128 bits.
	MaxScale = 38
)

// Decimal is a non-negative fixed point number equal to val / 10^scale.
// The zero value is 0 at scale 0.
type Decimal struct {
	val   uint128.Uint128
	scale uint8
}

// New returns the decimal val / 10^scale.
func New(val uint128.Uint128, scale uint8) Decimal {
	return Decimal{val: val, scale: scale}
}

// NewFromUint64 returns the decimal v / 10^scale.
func NewFromUint64(v uint64, scale uint8) Decimal {
	return Decimal{val: uint128.From64(v), scale: scale}
}

// One returns the multiplicative identity at the given scale.
func One(scale uint8) (Decimal, error) {
	den, err := pow10(scale)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: den, scale: scale}, nil
}

// FromPercent tags percent as a value at PercentScale (1% is 100).
func FromPercent(percent uint16) Decimal {
	return NewFromUint64(uint64(percent), PercentScale)
}

// FromInteger returns integer at scale 0.
func FromInteger(integer uint64) Decimal {
	return NewFromUint64(integer, 0)
}

// FromPrice tags price as a value at PriceScale.
func FromPrice(price uint64) Decimal {
	return NewFromUint64(price, PriceScale)
}

// FromUSD tags value as a value at USDScale.
func FromUSD(value uint64) Decimal {
	return NewFromUint64(value, USDScale)
}

// FromToken tags value as a value at TokenScale.
func FromToken(value uint64) Decimal {
	return NewFromUint64(value, TokenScale)
}

// FromInterestRate tags value as a value at InterestRateScale.
func FromInterestRate(value uint64) Decimal {
	return NewFromUint64(value, InterestRateScale)
}

// Val returns the unscaled magnitude.
func (d Decimal) Val() uint128.Uint128 {
	return d.val
}

// Scale returns the number of implied decimal digits.
func (d Decimal) Scale() uint8 {
	return d.scale
}

// IsZero reports whether the magnitude is zero.
func (d Decimal) IsZero() bool {
	return d.val.IsZero()
}

// Denominator returns 10^scale. It fails for scales above MaxScale.
func (d Decimal) Denominator() (uint128.Uint128, error) {
	return pow10(d.scale)
}

// Uint64 returns the magnitude narrowed to 64 bits.
func (d Decimal) Uint64() (uint64, error) {
	if d.val.Hi != 0 {
		return 0, Error.New("%w: %s does not fit in uint64", ErrNarrowing, d.val)
	}
	return d.val.Lo, nil
}

// Uint128 returns the magnitude.
func (d Decimal) Uint128() uint128.Uint128 {
	return d.val
}

// ToScale returns d at the given scale. Reducing the scale truncates toward
// zero and may truncate the whole value to zero; increasing it fails on
// overflow.
func (d Decimal) ToScale(scale uint8) (Decimal, error) {
	switch {
	case d.scale > scale:
		diff := d.scale - scale
		if diff > MaxScale {
			// 10^diff exceeds every 128-bit magnitude.
			return Decimal{scale: scale}, nil
		}
		den, err := pow10(diff)
		if err != nil {
			return Decimal{}, err
		}
		val, _, err := checkedQuo(d.val, den)
		if err != nil {
			return Decimal{}, err
		}
		return Decimal{val: val, scale: scale}, nil
	case d.scale < scale:
		if d.val.IsZero() {
			return Decimal{scale: scale}, nil
		}
		factor, err := pow10(scale - d.scale)
		if err != nil {
			return Decimal{}, err
		}
		val, err := checkedMul(d.val, factor)
		if err != nil {
			return Decimal{}, err
		}
		return Decimal{val: val, scale: scale}, nil
	}
	return d, nil
}

// ToUSD rescales d to USDScale.
func (d Decimal) ToUSD() (Decimal, error) {
	return d.ToScale(USDScale)
}

// ToInterestRate rescales d to InterestRateScale.
func (d Decimal) ToInterestRate() (Decimal, error) {
	return d.ToScale(InterestRateScale)
}
