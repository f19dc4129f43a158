package stripe

import (
	"context"
	"net/http"

	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/stripe/stripe-go/v82"
)

// classifyError maps an SDK error onto the kinds retry loops switch on:
//
//	429, rate_limit                 -> ErrRateLimited
//	no response, 5xx, 409, lock     -> ErrTransient
//	card_error                      -> ErrPaymentFailed
//	404, resource_missing           -> ErrNotFound
//	any other 4xx                   -> ErrValidation
func classifyError(err error, hint string, details map[string]any) error {
	if err == nil {
		return nil
	}

	builder := ierr.WithError(err).WithHint(hint).WithReportableDetails(details)

	if ierr.Is(err, context.Canceled) || ierr.Is(err, context.DeadlineExceeded) {
		return builder.Mark(ierr.ErrSystem)
	}

	var stripeErr *stripe.Error
	if !ierr.As(err, &stripeErr) {
		return builder.Mark(ierr.ErrTransient)
	}

	switch {
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.Code == stripe.ErrorCodeRateLimit:
		return builder.Mark(ierr.ErrRateLimited)
	case stripeErr.Code == stripe.ErrorCodeLockTimeout,
		stripeErr.HTTPStatusCode == http.StatusConflict,
		stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
		stripeErr.Type == stripe.ErrorTypeAPI:
		return builder.Mark(ierr.ErrTransient)
	case stripeErr.Type == stripe.ErrorTypeCard:
		return builder.Mark(ierr.ErrPaymentFailed)
	case stripeErr.HTTPStatusCode == http.StatusNotFound,
		stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return builder.Mark(ierr.ErrNotFound)
	default:
		return builder.Mark(ierr.ErrValidation)
	}
}
