package middleware

import (
	"context"
	"net/http"

	"github.com/hireloop/memberauth"
)

// RequireAccessToken returns middleware that admits only requests carrying a
// signed access token whose backing session is still live.
//
//	Docs: docs/middleware.md, docs/jwt.md
func RequireAccessToken(engine *memberauth.Engine) func(http.Handler) http.Handler {
	if engine == nil {
		return guard(nil)
	}
	return guard(func(ctx context.Context, token string) (*memberauth.SessionInfo, error) {
		return engine.ValidateAccessToken(ctx, token)
	})
}
