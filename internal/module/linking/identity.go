package linking

import (
	"context"

	"github.com/splitmate/server/internal/utils/requestctx"
)

// ContextIdentityProvider resolves the caller from the request context, where
// the auth middleware placed it.
type ContextIdentityProvider struct{}

// Identity returns the authenticated caller or ErrUnauthorized when no
// session exists.
func (ContextIdentityProvider) Identity(ctx context.Context) (Identity, error) {
	u, ok := requestctx.UserFrom(ctx)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}
