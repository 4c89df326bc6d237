package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeClientInvoice covers invoices generated for a client billing run
	ScopeClientInvoice Scope = "client_invoice"

	// Payment
	ScopePayment Scope = "payment"
)

// Generator generates idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey generates an idempotency key from a scope and parameters
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	// Sort params for consistent hashing
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8])) // First 8 bytes for readability
}

// ValidateKey validates if an idempotency key matches expected parameters
func (g *Generator) ValidateKey(scope Scope, params map[string]interface{}, key string) bool {
	generated := g.GenerateKey(scope, params)
	return generated == key
}

// ClientInvoiceKey derives the key of an invoice from its client, its recurring
// coverage and the installments it charges. The installment order does not matter.
func (g *Generator) ClientInvoiceKey(clientID, periodStart, periodEnd string, installmentIDs []string) string {
	ids := append([]string(nil), installmentIDs...)
	sort.Strings(ids)
	return g.GenerateKey(ScopeClientInvoice, map[string]interface{}{
		"client_id":    clientID,
		"period_start": periodStart,
		"period_end":   periodEnd,
		"installments": strings.Join(ids, ","),
	})
}

// ManualInvoiceKey derives the key of an invoice that only carries manual
// charges, from its client, its issue date and its line contents
func (g *Generator) ManualInvoiceKey(clientID, issueDate string, lines []string) string {
	return g.GenerateKey(ScopeClientInvoice, map[string]interface{}{
		"client_id":  clientID,
		"issue_date": issueDate,
		"lines":      strings.Join(lines, "|"),
	})
}
