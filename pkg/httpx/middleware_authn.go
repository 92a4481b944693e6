package httpx

import (
	"context"
	"net/http"
	"strings"
)

// BearerToken extracts the raw token from an Authorization: Bearer header.
// The second return is false when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer")), true
}

// ContextWithAuth injects the authenticated principal into the request context
// for downstream handlers and scope middleware.
func ContextWithAuth(ctx context.Context, subject, clientID string, scopes []string) context.Context {
	ctx = context.WithValue(ctx, CtxKeySubject, subject)
	ctx = context.WithValue(ctx, CtxKeyClientID, clientID)
	ctx = context.WithValue(ctx, CtxKeyScopes, scopes)
	return ctx
}

// WriteBearerError writes an RFC 6750-compliant error response for bearer auth.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
