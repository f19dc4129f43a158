package stripe

import (
	"context"
	"strings"

	"github.com/flexprice/clockwork/internal/config"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/idempotency"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stripe/stripe-go/v82"
	"golang.org/x/time/rate"
)

const testKeyPrefix = "sk_test_"

// Client owns the Stripe SDK client and the request limiter shared by every
// service in this package.
type Client struct {
	sc      *stripe.Client
	limiter *rate.Limiter
	keys    *idempotency.Generator
	logger  *logger.Logger
}

// NewClient creates a new Stripe client. Live-mode keys are rejected.
func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if !strings.HasPrefix(cfg.Stripe.SecretKey, testKeyPrefix) {
		return nil, ierr.NewError("stripe secret key is not a test-mode key").
			WithHint("Set STRIPE_SECRET_KEY to a key starting with sk_test_").
			Mark(ierr.ErrValidation)
	}

	// SDK retries stay off by default; the advancer owns the retry loop
	// around clock calls.
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.Stripe.MaxNetworkRetries),
		LeveledLogger:     logger.With("component", "stripe_sdk"),
	})

	return &Client{
		sc:      stripe.NewClient(cfg.Stripe.SecretKey, stripe.WithBackends(backends)),
		limiter: rate.NewLimiter(rate.Limit(cfg.Stripe.RateLimit), cfg.Stripe.RateBurst),
		keys:    idempotency.NewGenerator(),
		logger:  logger,
	}, nil
}

// GetStripeClient returns the SDK client once a limiter token is available.
// Every outbound call goes through here.
func (c *Client) GetStripeClient(ctx context.Context) (*stripe.Client, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Stopped waiting for a Stripe request slot").
			Mark(ierr.ErrSystem)
	}
	return c.sc, nil
}

// idempotencyKey keys a create request so a retry after a lost response
// does not create a duplicate object.
func (c *Client) idempotencyKey(scope idempotency.Scope, params map[string]any) *string {
	return stripe.String(c.keys.GenerateKey(scope, params))
}
