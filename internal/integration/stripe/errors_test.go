package stripe

import (
	"context"
	"errors"
	"net/http"
	"testing"

	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			name:  "too many requests",
			err:   &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests, Msg: "slow down"},
			check: ierr.IsRateLimited,
		},
		{
			name:  "rate limit code without status",
			err:   &stripe.Error{Code: stripe.ErrorCodeRateLimit},
			check: ierr.IsRateLimited,
		},
		{
			name:  "server error",
			err:   &stripe.Error{HTTPStatusCode: http.StatusBadGateway, Type: stripe.ErrorTypeAPI},
			check: ierr.IsTransient,
		},
		{
			name:  "lock timeout",
			err:   &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Code: stripe.ErrorCodeLockTimeout},
			check: ierr.IsTransient,
		},
		{
			name:  "no response",
			err:   errors.New("connection reset by peer"),
			check: ierr.IsTransient,
		},
		{
			name:  "card declined",
			err:   &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined},
			check: ierr.IsPaymentFailed,
		},
		{
			name:  "missing resource",
			err:   &stripe.Error{HTTPStatusCode: http.StatusNotFound, Code: stripe.ErrorCodeResourceMissing},
			check: ierr.IsNotFound,
		},
		{
			name:  "bad request",
			err:   &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Type: stripe.ErrorTypeInvalidRequest},
			check: ierr.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, "test", map[string]any{"case": tt.name})
			assert.Error(t, got)
			assert.True(t, tt.check(got), "unexpected classification: %v", got)
		})
	}
}

func TestClassifyErrorRetryability(t *testing.T) {
	assert.True(t, ierr.IsRetryable(classifyError(&stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}, "", nil)))
	assert.True(t, ierr.IsRetryable(classifyError(&stripe.Error{HTTPStatusCode: http.StatusServiceUnavailable}, "", nil)))
	assert.False(t, ierr.IsRetryable(classifyError(&stripe.Error{HTTPStatusCode: http.StatusBadRequest}, "", nil)))
	assert.False(t, ierr.IsRetryable(classifyError(&stripe.Error{Type: stripe.ErrorTypeCard}, "", nil)))
}

func TestClassifyErrorContextCancellation(t *testing.T) {
	got := classifyError(context.Canceled, "", nil)
	assert.False(t, ierr.IsRetryable(got))
	assert.True(t, errors.Is(got, context.Canceled))
}

func TestClassifyErrorNil(t *testing.T) {
	assert.NoError(t, classifyError(nil, "", nil))
}
