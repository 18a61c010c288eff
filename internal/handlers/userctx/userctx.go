package userctx

import (
	"context"

	"github.com/nkiryanov/secureauth/internal/models"
)

type ctxKey string

const (
	principalKey ctxKey = "principal"
	slotKey      ctxKey = "principal-slot"
)

// Place for the principal authenticated deeper in the handlers chain
type slot struct {
	principal *models.Principal
}

// Reserve a slot for the principal
// Principal set later with New on derived context is visible through the returned one too
func Reserve(ctx context.Context) context.Context {
	return context.WithValue(ctx, slotKey, &slot{})
}

// Create a new context with the authenticated principal
func New(ctx context.Context, p models.Principal) context.Context {
	if s, ok := ctx.Value(slotKey).(*slot); ok {
		s.principal = &p
	}
	return context.WithValue(ctx, principalKey, p)
}

// Extract the principal from the context
func FromContext(ctx context.Context) (models.Principal, bool) {
	if p, ok := ctx.Value(principalKey).(models.Principal); ok {
		return p, true
	}
	if s, ok := ctx.Value(slotKey).(*slot); ok && s.principal != nil {
		return *s.principal, true
	}
	return models.Principal{}, false
}
