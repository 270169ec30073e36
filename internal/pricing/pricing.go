package pricing

import (
	"errors"
	"fmt"

	"github.com/printmate/order-service/internal/models/errs"
	"github.com/shopspring/decimal"
)

// Calculator maps a unit count to a monetary amount in minor currency
// units. Pure and deterministic: amount = unitCount * unitPrice.
type Calculator struct {
	currency  string
	unitPrice int64
}

func NewCalculator(unitPrice int64, currency string) (*Calculator, error) {
	if unitPrice <= 0 {
		return nil, errors.New("unit price must be positive")
	}
	if currency == "" {
		return nil, errors.New("currency must be set")
	}
	return &Calculator{unitPrice: unitPrice, currency: currency}, nil
}

// Price returns the amount due for the given unit count.
func (c *Calculator) Price(unitCount int) (int64, error) {
	if unitCount <= 0 {
		return 0, fmt.Errorf("%w: %d", errs.ErrInvalidUnitCount, unitCount)
	}
	return int64(unitCount) * c.unitPrice, nil
}

func (c *Calculator) Currency() string {
	return c.currency
}

// FormatAmount renders a minor-unit amount in the conventional
// major-unit form, e.g. 300 EUR minor units as "3.00 EUR".
func FormatAmount(minor int64, currency string) string {
	return decimal.NewFromInt(minor).Shift(-2).StringFixed(2) + " " + currency
}
