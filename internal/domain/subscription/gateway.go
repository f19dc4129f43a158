package subscription

import (
	"context"

	"github.com/flexprice/clockwork/internal/types"
)

// Gateway defines the platform operations on subscriptions
type Gateway interface {
	Create(ctx context.Context, params *CreateParams) (*Subscription, error)
	// Retrieve returns the subscription with its latest invoice expanded
	Retrieve(ctx context.Context, id string) (*Subscription, error)
	// ChangePrice swaps the price on an existing item in place
	ChangePrice(ctx context.Context, id, itemID, priceRef string, proration types.ProrationBehavior) (*Subscription, error)
	// ReplaceItem deletes itemID and adds a new item on priceRef
	ReplaceItem(ctx context.Context, id, itemID, priceRef string, proration types.ProrationBehavior) (*Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, id string) (*Subscription, error)
	Cancel(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, entityID string) ([]*Subscription, error)
}
