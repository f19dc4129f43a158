package errors

import (
	"github.com/cockroachdb/errors"
)

// Kind is a sentinel that errors are marked with. Callers branch on kinds,
// never on messages.
type Kind struct {
	Code    string
	Message string
}

func (k *Kind) Error() string {
	return k.Code + ": " + k.Message
}

func newKind(code, message string) *Kind {
	return &Kind{Code: code, Message: message}
}

// Local failures
var (
	ErrNotFound         = newKind("not_found", "resource not found")
	ErrValidation       = newKind("validation_error", "validation error")
	ErrInvalidOperation = newKind("invalid_operation", "invalid operation")
	ErrHTTPClient       = newKind("http_client_error", "http client error")
	ErrDatabase         = newKind("database_error", "database error")
	ErrSystem           = newKind("system_error", "system error")
)

// Remote platform failures. Retry loops switch on these.
var (
	ErrRateLimited    = newKind("rate_limited", "rate limited by remote platform")
	ErrTransient      = newKind("transient_error", "transient remote error")
	ErrPaymentFailed  = newKind("payment_failed", "payment attempt failed")
	ErrAdvanceFailed  = newKind("advance_failed", "clock advance failed")
	ErrAdvanceTimeout = newKind("advance_timeout", "clock advance timed out")
	ErrMappingMissing = newKind("mapping_missing", "entity subscription mapping missing")
)

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRateLimited checks if the remote platform throttled the call
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient checks if the error is a connectivity or 5xx style failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsRetryable reports whether a local retry with backoff may succeed.
func IsRetryable(err error) bool {
	return IsRateLimited(err) || IsTransient(err)
}

// IsPaymentFailed checks if a charge was declined
func IsPaymentFailed(err error) bool {
	return errors.Is(err, ErrPaymentFailed)
}

func IsAdvanceFailed(err error) bool {
	return errors.Is(err, ErrAdvanceFailed)
}

// IsAdvanceTimeout checks if a clock never settled within the polling budget
func IsAdvanceTimeout(err error) bool {
	return errors.Is(err, ErrAdvanceTimeout)
}

func IsMappingMissing(err error) bool {
	return errors.Is(err, ErrMappingMissing)
}
