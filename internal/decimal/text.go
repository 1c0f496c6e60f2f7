package decimal

import (
	"strconv"
	"strings"

	"lukechampine.com/uint128"
)

// String returns the exact base 10 representation of d with exactly
// d.Scale() fractional digits, e.g. "12.3400" for 123400 at scale 4.
func (d Decimal) String() string {
	digits := d.val.String()
	if d.scale == 0 {
		return digits
	}

	n := int(d.scale)
	if len(digits) <= n {
		digits = strings.Repeat("0", n-len(digits)+1) + digits
	}
	split := len(digits) - n
	return digits[:split] + "." + digits[split:]
}

// MarshalJSON encodes d as a JSON string so no precision is lost to floats.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// Parse reads an unsigned base 10 number into a Decimal at the given scale.
// Inputs with more fractional digits than scale are rejected rather than
// rounded.
func Parse(s string, scale uint8) (Decimal, error) {
	if scale > MaxScale {
		return Decimal{}, Error.New("%w: scale %d", ErrOverflow, scale)
	}

	intPart, fracPart, hasPoint := strings.Cut(s, ".")
	if intPart == "" && (!hasPoint || fracPart == "") {
		return Decimal{}, Error.New("%w: %q", ErrInvalidFormat, s)
	}
	if hasPoint && fracPart == "" {
		return Decimal{}, Error.New("%w: %q", ErrInvalidFormat, s)
	}
	if len(fracPart) > int(scale) {
		return Decimal{}, Error.New("%w: %q has more than %d fractional digits", ErrInvalidFormat, s, scale)
	}

	digits := intPart + fracPart + strings.Repeat("0", int(scale)-len(fracPart))

	val := uint128.Zero
	ten := uint128.From64(10)
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return Decimal{}, Error.New("%w: %q", ErrInvalidFormat, s)
		}

		var err error
		val, err = checkedMul(val, ten)
		if err != nil {
			return Decimal{}, err
		}
		val, err = checkedAdd(val, uint128.From64(uint64(c-'0')))
		if err != nil {
			return Decimal{}, err
		}
	}

	return Decimal{val: val, scale: scale}, nil
}
