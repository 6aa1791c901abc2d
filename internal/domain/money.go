package domain

import "github.com/shopspring/decimal"

// MaxAmount caps any single price or payment, in major currency units.
var MaxAmount = decimal.New(1, 9)

// MinorUnits converts a non-negative major-unit amount with at most two
// decimal places to minor units. field names the value in validation errors.
func MinorUnits(field string, amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, Validationf("%s must not be negative", field)
	}
	if amount.GreaterThan(MaxAmount) {
		return 0, Validationf("%s exceeds %s", field, MaxAmount.String())
	}
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, Validationf("%s has more than two decimal places", field)
	}
	return minor.IntPart(), nil
}
