package clock

import "context"

// Client is the narrow view of the platform's clock API used by the advancer.
// Implementations never retry or poll; they classify errors and return.
type Client interface {
	Create(ctx context.Context, frozenTime int64, name string) (*SimulatedClock, error)
	Retrieve(ctx context.Context, id string) (*SimulatedClock, error)
	// RequestAdvance asks the platform to move the clock to target and
	// returns as soon as the request is accepted.
	RequestAdvance(ctx context.Context, id string, target int64) error
}

// Lister is used by cleanup to find and remove clocks from earlier runs
type Lister interface {
	List(ctx context.Context) ([]*SimulatedClock, error)
	Delete(ctx context.Context, id string) error
}
