package decimal

import "lukechampine.com/uint128"

// Add returns d + other. Both operands must share a scale.
func (d Decimal) Add(other Decimal) (Decimal, error) {
	if d.scale != other.scale {
		return Decimal{}, scaleMismatch("add", d, other)
	}
	val, err := checkedAdd(d.val, other.val)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// Sub returns d - other. Both operands must share a scale and the result
// must not be negative.
func (d Decimal) Sub(other Decimal) (Decimal, error) {
	if d.scale != other.scale {
		return Decimal{}, scaleMismatch("sub", d, other)
	}
	val, err := checkedSub(d.val, other.val)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// Mul returns d * other truncated at the scale of d. other is a scaled
// fraction: d.val * other.val / 10^other.scale.
func (d Decimal) Mul(other Decimal) (Decimal, error) {
	val, _, err := d.mulQuoRem(other)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// MulInt multiplies the magnitude of d by a raw integer.
func (d Decimal) MulInt(factor uint128.Uint128) (Decimal, error) {
	val, err := checkedMul(d.val, factor)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// MulUp is Mul rounded up to the next unit at the scale of d.
func (d Decimal) MulUp(other Decimal) (Decimal, error) {
	val, rem, err := d.mulQuoRem(other)
	if err != nil {
		return Decimal{}, err
	}
	if !rem.IsZero() {
		val, err = checkedAdd(val, uint128.From64(1))
		if err != nil {
			return Decimal{}, err
		}
	}
	return Decimal{val: val, scale: d.scale}, nil
}

func (d Decimal) mulQuoRem(other Decimal) (q, r uint128.Uint128, err error) {
	product, err := checkedMul(d.val, other.val)
	if err != nil {
		return q, r, err
	}
	den, err := other.Denominator()
	if err != nil {
		return q, r, err
	}
	return checkedQuo(product, den)
}

// MulInverse returns d * (1 / other) as d.val * 10^d.scale / other.val at the
// scale of d. other is read as a magnitude at the scale of d, which makes it
// equal to Div whenever the scales match.
func (d Decimal) MulInverse(other Decimal) (Decimal, error) {
	den, err := d.Denominator()
	if err != nil {
		return Decimal{}, err
	}
	num, err := checkedMul(d.val, den)
	if err != nil {
		return Decimal{}, err
	}
	val, _, err := checkedQuo(num, other.val)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// Div returns d / other truncated at the scale of d:
// d.val * 10^other.scale / other.val.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	num, err := d.scaledNumerator(other)
	if err != nil {
		return Decimal{}, err
	}
	val, _, err := checkedQuo(num, other.val)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// DivUp is Div rounded up: other.val - 1 is added to the numerator before
// dividing, so any remainder carries the quotient to the next unit.
func (d Decimal) DivUp(other Decimal) (Decimal, error) {
	almost, err := checkedSub(other.val, uint128.From64(1))
	if err != nil {
		return Decimal{}, Error.New("%w: div up by zero", ErrDivideByZero)
	}
	num, err := d.scaledNumerator(other)
	if err != nil {
		return Decimal{}, err
	}
	num, err = checkedAdd(num, almost)
	if err != nil {
		return Decimal{}, err
	}
	val, _, err := checkedQuo(num, other.val)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: d.scale}, nil
}

// DivToScale divides d by other and rescales the quotient to scale in one
// step. When scale is above the scale of d the extra power of ten is applied
// before dividing to keep precision; otherwise the quotient is truncated by
// the remaining power of ten afterwards.
func (d Decimal) DivToScale(other Decimal, scale uint8) (Decimal, error) {
	num, err := d.scaledNumerator(other)
	if err != nil {
		return Decimal{}, err
	}

	if scale >= d.scale {
		factor, err := pow10(scale - d.scale)
		if err != nil {
			return Decimal{}, err
		}
		num, err = checkedMul(num, factor)
		if err != nil {
			return Decimal{}, err
		}
		val, _, err := checkedQuo(num, other.val)
		if err != nil {
			return Decimal{}, err
		}
		return Decimal{val: val, scale: scale}, nil
	}

	val, _, err := checkedQuo(num, other.val)
	if err != nil {
		return Decimal{}, err
	}
	diff := d.scale - scale
	if diff > MaxScale {
		return Decimal{scale: scale}, nil
	}
	factor, err := pow10(diff)
	if err != nil {
		return Decimal{}, err
	}
	val, _, err = checkedQuo(val, factor)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: val, scale: scale}, nil
}

// scaledNumerator returns d.val * 10^other.scale.
func (d Decimal) scaledNumerator(other Decimal) (uint128.Uint128, error) {
	den, err := other.Denominator()
	if err != nil {
		return uint128.Zero, err
	}
	return checkedMul(d.val, den)
}

// PowWithAccuracy raises d to exp by squaring. Every step is a Mul, so each
// intermediate product truncates at the scale of d. exp == 0 yields One at
// the scale of d.
func (d Decimal) PowWithAccuracy(exp uint64) (Decimal, error) {
	result, err := One(d.scale)
	if err != nil {
		return Decimal{}, err
	}

	base := d
	for exp > 0 {
		if exp&1 == 1 {
			result, err = result.Mul(base)
			if err != nil {
				return Decimal{}, err
			}
		}
		exp >>= 1
		if exp > 0 {
			base, err = base.Mul(base)
			if err != nil {
				return Decimal{}, err
			}
		}
	}
	return result, nil
}
