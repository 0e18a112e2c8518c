package internal

import (
	"context"

	"github.com/miyuou/smartticket/internal/core/identity"
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

func ContextWithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

// PrincipalFromContext returns the caller set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (identity.Principal, bool) {
	if ctx == nil {
		return identity.Principal{}, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(identity.Principal)
	return p, ok
}
