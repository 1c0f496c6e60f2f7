package decimal

import "lukechampine.com/uint128"

// powersOf10[n] is 10^n for every n that fits in 128 bits.
var powersOf10 = func() [MaxScale + 1]uint128.Uint128 {
	var p [MaxScale + 1]uint128.Uint128
	p[0] = uint128.From64(1)
	for i := 1; i <= MaxScale; i++ {
		p[i] = p[i-1].Mul64(10)
	}
	return p
}()

// The helpers below are the only place where magnitudes are combined. Every
// exported operation goes through them so overflow, underflow and division
// by zero always surface as errors.

func pow10(n uint8) (uint128.Uint128, error) {
	if n > MaxScale {
		return uint128.Zero, Error.New("%w: 10^%d", ErrOverflow, n)
	}
	return powersOf10[n], nil
}

func checkedAdd(a, b uint128.Uint128) (uint128.Uint128, error) {
	sum := a.AddWrap(b)
	if sum.Cmp(a) < 0 {
		return uint128.Zero, Error.New("%w: %s + %s", ErrOverflow, a, b)
	}
	return sum, nil
}

func checkedSub(a, b uint128.Uint128) (uint128.Uint128, error) {
	if a.Cmp(b) < 0 {
		return uint128.Zero, Error.New("%w: %s - %s", ErrUnderflow, a, b)
	}
	return a.SubWrap(b), nil
}

func checkedMul(a, b uint128.Uint128) (uint128.Uint128, error) {
	if a.IsZero() || b.IsZero() {
		return uint128.Zero, nil
	}
	if b.Cmp(uint128.Max.Div(a)) > 0 {
		return uint128.Zero, Error.New("%w: %s * %s", ErrOverflow, a, b)
	}
	return a.MulWrap(b), nil
}

// checkedQuo returns the truncated quotient and the remainder of a / b.
func checkedQuo(a, b uint128.Uint128) (q, r uint128.Uint128, err error) {
	if b.IsZero() {
		return uint128.Zero, uint128.Zero, Error.New("%w: %s / 0", ErrDivideByZero, a)
	}
	q, r = a.QuoRem(b)
	return q, r, nil
}
