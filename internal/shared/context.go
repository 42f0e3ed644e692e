// Package shared holds request-scoped helpers used across domain modules.
package shared

import "context"

type accountContextKey struct{}

// Identity describes the authenticated caller of a request.
type Identity struct {
	AccountID    int64
	SessionToken string
}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, accountContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(accountContextKey{}).(Identity)
	return id, ok
}

// AccountID returns the authenticated account id, or zero when absent.
func AccountID(ctx context.Context) int64 {
	id, _ := IdentityFromContext(ctx)
	return id.AccountID
}
