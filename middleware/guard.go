package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hireloop/memberauth"
)

type sessionContextKey struct{}

// SessionFromContext returns the session view injected by a guard, if any.
func SessionFromContext(ctx context.Context) (*memberauth.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*memberauth.SessionInfo)
	return info, ok
}

func guard(validate func(context.Context, string) (*memberauth.SessionInfo, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validate == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
