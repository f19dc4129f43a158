package subscription

import (
	"github.com/flexprice/clockwork/internal/domain/invoice"
	"github.com/flexprice/clockwork/internal/types"
)

// Subscription binds an entity to a recurring price. BillingAnchor is fixed
// at creation.
type Subscription struct {
	ID                string                   `json:"id"`
	EntityID          string                   `json:"entity_id"`
	PriceRef          string                   `json:"price_ref"`
	ItemID            string                   `json:"item_id,omitempty"`
	BillingAnchor     int64                    `json:"billing_anchor"`
	Status            types.SubscriptionStatus `json:"status"`
	Created           int64                    `json:"created"`
	CurrentPeriodEnd  int64                    `json:"current_period_end"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
	CanceledAt        *int64                   `json:"canceled_at,omitempty"`
	LatestInvoice     *invoice.Invoice         `json:"latest_invoice,omitempty"`
}

type CreateParams struct {
	EntityID string
	PriceRef string
	// BillingAnchor pins the first cycle boundary; nil anchors at creation
	BillingAnchor *int64
	Metadata      types.Metadata
}
