package price

import (
	"github.com/flexprice/clockwork/internal/types"
	"github.com/shopspring/decimal"
)

type Price struct {
	ID         string                `json:"id"`
	ProductID  string                `json:"product_id"`
	UnitAmount int64                 `json:"unit_amount"`
	Currency   string                `json:"currency"`
	Interval   types.BillingInterval `json:"interval"`
	Active     bool                  `json:"active"`
}

// UnitAmountDecimal returns the unit amount in major currency units
func (p *Price) UnitAmountDecimal() decimal.Decimal {
	return decimal.New(p.UnitAmount, -2)
}

type Product struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CreatePriceParams struct {
	ProductID  string                `validate:"required"`
	UnitAmount int64                 `validate:"gt=0"`
	Currency   string                `validate:"required,len=3"`
	Interval   types.BillingInterval `validate:"required,billing_interval"`
}
