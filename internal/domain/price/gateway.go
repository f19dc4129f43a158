package price

import "context"

// Gateway defines the platform operations on products and prices
type Gateway interface {
	Retrieve(ctx context.Context, id string) (*Price, error)
	ListByProduct(ctx context.Context, productID string) ([]*Price, error)
	CreateProduct(ctx context.Context, name string) (*Product, error)
	CreatePrice(ctx context.Context, params *CreatePriceParams) (*Price, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	ArchivePrice(ctx context.Context, id string) error
	DeleteProduct(ctx context.Context, id string) error
}
