// Package auth verifies bearer tokens and carries the caller through the
// request context.
package auth

import (
	"context"
	"errors"
)

// Principal is the authenticated caller
type Principal struct {
	// Subject is the identity id
	Subject string
	Name    string
}

// Verifier validates a bearer token
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal adds the caller to ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the caller from ctx
func PrincipalFrom(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil {
		return nil, errors.New("principal not found in context")
	}
	return p, nil
}
