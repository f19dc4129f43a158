package customer

import (
	"github.com/flexprice/clockwork/internal/types"
)

// BillingEntity is one simulated customer. It is bound to exactly one clock
// for its whole life.
type BillingEntity struct {
	ID                     string         `json:"id"`
	Email                  string         `json:"email"`
	Name                   string         `json:"name"`
	ClockID                string         `json:"clock_id"`
	CreationTime           int64          `json:"creation_time"`
	DefaultPaymentMethodID string         `json:"default_payment_method_id,omitempty"`
	Metadata               types.Metadata `json:"metadata,omitempty"`
}

type CreateParams struct {
	Email    string
	Name     string
	ClockID  string
	Metadata types.Metadata
}
