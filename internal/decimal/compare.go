package decimal

// Cmp compares d and other, which must share a scale, and returns -1, 0 or +1.
func (d Decimal) Cmp(other Decimal) (int, error) {
	return d.cmp("cmp", other)
}

func (d Decimal) cmp(op string, other Decimal) (int, error) {
	if d.scale != other.scale {
		return 0, scaleMismatch(op, d, other)
	}
	return d.val.Cmp(other.val), nil
}

// Lt reports whether d < other.
func (d Decimal) Lt(other Decimal) (bool, error) {
	c, err := d.cmp("lt", other)
	return err == nil && c < 0, err
}

// Ltq reports whether d <= other.
func (d Decimal) Ltq(other Decimal) (bool, error) {
	c, err := d.cmp("ltq", other)
	return err == nil && c <= 0, err
}

// Gt reports whether d > other.
func (d Decimal) Gt(other Decimal) (bool, error) {
	c, err := d.cmp("gt", other)
	return err == nil && c > 0, err
}

// Gtq reports whether d >= other.
func (d Decimal) Gtq(other Decimal) (bool, error) {
	c, err := d.cmp("gtq", other)
	return err == nil && c >= 0, err
}

// Eq reports whether d == other.
func (d Decimal) Eq(other Decimal) (bool, error) {
	c, err := d.cmp("eq", other)
	return err == nil && c == 0, err
}
