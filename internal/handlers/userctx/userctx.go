package userctx

import (
	"context"

	"github.com/nkiryanov/taskmanager/internal/models"
)

type ctxKey string

const claimKey ctxKey = "claim"

// Create a new context with verified access claim
func New(ctx context.Context, c models.AccessClaim) context.Context {
	return context.WithValue(ctx, claimKey, c)
}

// Extract the claim from the context
func FromContext(ctx context.Context) (models.AccessClaim, bool) {
	c, ok := ctx.Value(claimKey).(models.AccessClaim)
	return c, ok
}
