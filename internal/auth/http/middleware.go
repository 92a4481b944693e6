package http

import (
	"net/http"

	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/pkg/httpx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// BearerAuth verifies the bearer access token on protected routes. Unlike a
// signature-only JWT check it consults the store, so tokens revoked before
// their natural expiry are rejected here too.
func BearerAuth(resource *service.ResourceValidator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := httpx.BearerToken(r)
			if !ok {
				httpx.WriteBearerError(w, "missing bearer token")
				return
			}

			auth, err := resource.ValidateAccessToken(ctx, raw)
			if err != nil {
				log.Warn("bearer token rejected", "err", err)
				httpx.WriteBearerError(w, "token verification failed")
				return
			}

			ctx = httpx.ContextWithAuth(ctx, auth.Subject, auth.ClientID, auth.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
