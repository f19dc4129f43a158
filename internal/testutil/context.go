package testutil

import "context"

// SetupContext returns the root context for a service test
func SetupContext() context.Context {
	return context.Background()
}
