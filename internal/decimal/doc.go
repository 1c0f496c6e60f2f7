// Package decimal provides a non-negative fixed point base 10 number backed by
// an unsigned 128-bit integer.
//
// The equation for a decimal number is:
//
//	number = val / 10^scale
//
// Where val is the unscaled magnitude and scale is the count of implied
// decimal digits. For example:
//
//	1.2345 = 12345 / 10^4
//
// Values are immutable. Every operation returns a new Decimal or an error and
// never wraps around: overflow, underflow, division by zero and scale
// mismatches are reported with errors wrapped by Error.
//
// # Scales
//
// Add, Sub and the comparisons combine raw magnitudes and therefore require
// both operands to share a scale. They fail with ErrScaleMismatch instead of
// choosing a common scale.
//
// The multiplication and division family treats the right hand operand as a
// scaled fraction: its own denominator (10^scale) is part of the algebra and
// the result keeps the scale of the receiver.
//
//	(1.50 @2).Mul(0.25 @4)  = 150 * 2500 / 10^4   = 37 @2  (0.37)
//	(1.50 @2).Div(0.25 @4)  = 150 * 10^4 / 2500   = 600 @2 (6.00)
//
// Rounding is explicit in the method name: Mul, Div and DivToScale truncate,
// MulUp and DivUp round away from zero whenever there is a remainder.
//
// # Domain scales
//
// The surrounding protocol stores plain integers and owns the scale by
// convention. The constructors FromPercent, FromPrice, FromUSD, FromToken and
// FromInterestRate tag a raw integer with the matching scale constant without
// rescaling it.
package decimal
