package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope names the kind of create request a key protects
type Scope string

const (
	ScopeClock        Scope = "clock"
	ScopeCustomer     Scope = "customer"
	ScopeSubscription Scope = "subscription"
)

// Generator derives idempotency keys for create requests. A retried request
// carries the same key so the platform returns the object it already made.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey hashes the scope and params into a short stable key.
// Param order does not matter.
func (g *Generator) GenerateKey(scope Scope, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, params[k])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8]))
}
