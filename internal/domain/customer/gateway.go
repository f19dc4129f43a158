package customer

import "context"

// Gateway defines the platform operations on billing entities
type Gateway interface {
	Create(ctx context.Context, params *CreateParams) (*BillingEntity, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*BillingEntity, error)
	// Search runs a platform search query, e.g. email~"@actual.com"
	Search(ctx context.Context, query string) ([]*BillingEntity, error)
}
