package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()

	key := g.GenerateKey(ScopeCustomer, map[string]any{"email": "active1@actual.com", "clock": "clock_1"})
	assert.True(t, strings.HasPrefix(key, "customer-"))
	assert.Len(t, key, len("customer-")+16)

	t.Run("stable", func(t *testing.T) {
		assert.Equal(t, key, g.GenerateKey(ScopeCustomer, map[string]any{"clock": "clock_1", "email": "active1@actual.com"}))
	})

	t.Run("params change the key", func(t *testing.T) {
		assert.NotEqual(t, key, g.GenerateKey(ScopeCustomer, map[string]any{"email": "active2@actual.com", "clock": "clock_1"}))
	})

	t.Run("scope changes the key", func(t *testing.T) {
		other := g.GenerateKey(ScopeSubscription, map[string]any{"email": "active1@actual.com", "clock": "clock_1"})
		assert.NotEqual(t, key[len("customer-"):], other[len("subscription-"):])
	})

	t.Run("nil params", func(t *testing.T) {
		assert.Equal(t, g.GenerateKey(ScopeClock, nil), g.GenerateKey(ScopeClock, map[string]any{}))
	})
}
