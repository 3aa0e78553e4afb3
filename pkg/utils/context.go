package utils

import (
	"context"

	"account-service/internal/data/entity"
)

type contextKey string

const principalKey contextKey = "principal"

// SetPrincipal stores the authenticated principal in ctx.
func SetPrincipal(ctx context.Context, p entity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal mendapatkan principal dari context
func GetPrincipal(ctx context.Context) (entity.Principal, bool) {
	p, ok := ctx.Value(principalKey).(entity.Principal)
	return p, ok
}
