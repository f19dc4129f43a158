package payment

import "context"

// Gateway defines the platform operations on payment methods
type Gateway interface {
	CreateFromToken(ctx context.Context, token string) (*PaymentMethod, error)
	Attach(ctx context.Context, paymentMethodID, entityID string) error
	Retrieve(ctx context.Context, id string) (*PaymentMethod, error)
	// SetDefault makes the method the entity's default for invoice charges
	SetDefault(ctx context.Context, entityID, paymentMethodID string) error
}
