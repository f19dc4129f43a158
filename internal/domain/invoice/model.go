package invoice

import (
	"github.com/flexprice/clockwork/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is produced by the platform. It is only read and reacted to.
type Invoice struct {
	ID                 string              `json:"id"`
	EntityID           string              `json:"entity_id"`
	SubscriptionID     *string             `json:"subscription_id,omitempty"`
	Status             types.InvoiceStatus `json:"status"`
	NextPaymentAttempt *int64              `json:"next_payment_attempt,omitempty"`
	AttemptCount       int64               `json:"attempt_count"`
	Created            int64               `json:"created"`
	AmountDue          int64               `json:"amount_due"`
	AmountPaid         int64               `json:"amount_paid"`
	Currency           string              `json:"currency"`
	PeriodStart        int64               `json:"period_start"`
	PeriodEnd          int64               `json:"period_end"`
}

// IsPaid reports whether the invoice has been settled
func (i *Invoice) IsPaid() bool {
	return i.Status == types.InvoiceStatusPaid
}

// AmountDueDecimal returns the amount due in major currency units
func (i *Invoice) AmountDueDecimal() decimal.Decimal {
	return decimal.New(i.AmountDue, -2)
}

// AmountPaidDecimal returns the amount paid in major currency units
func (i *Invoice) AmountPaidDecimal() decimal.Decimal {
	return decimal.New(i.AmountPaid, -2)
}
