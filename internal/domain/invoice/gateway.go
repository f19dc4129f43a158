package invoice

import "context"

// Gateway defines the platform operations on invoices
type Gateway interface {
	List(ctx context.Context, entityID string) ([]*Invoice, error)
	Retrieve(ctx context.Context, id string) (*Invoice, error)
	Finalize(ctx context.Context, id string) (*Invoice, error)
	// Pay charges the entity's default payment method. A declined charge
	// returns an error marked ErrPaymentFailed.
	Pay(ctx context.Context, id string) (*Invoice, error)
}
