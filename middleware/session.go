package middleware

import (
	"context"
	"net/http"

	"github.com/hireloop/memberauth"
)

// RequireSession returns middleware that admits only requests carrying a live
// opaque session token in the Authorization header.
//
//	Docs: docs/middleware.md, docs/session.md
func RequireSession(engine *memberauth.Engine) func(http.Handler) http.Handler {
	if engine == nil {
		return guard(nil)
	}
	return guard(func(ctx context.Context, token string) (*memberauth.SessionInfo, error) {
		return engine.ValidateSession(ctx, token)
	})
}
