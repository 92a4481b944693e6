package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/pkg/httpx"
	"github.com/halcyonlabs/keygate/pkg/oauthx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// IntrospectHandler serves POST /v1/oauth2/introspect per RFC 7662. Requires
// client authentication; inactive or unknown tokens return active=false
// rather than an error.
type IntrospectHandler struct {
	Server   *service.Server
	Resource *service.ResourceValidator
	Issuer   string
}

func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r)
	if _, err := h.Server.AuthenticateClient(ctx, clientID, clientSecret); err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			oauthx.ErrInvalidClient.WriteError(w)
			return
		}
		log.Error("introspect client authentication failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	auth, active := h.Resource.Introspect(ctx, token)
	if !active {
		httpx.WriteJSON(w, http.StatusOK, oauthx.IntrospectionResponse{Active: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, oauthx.IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(auth.Scopes, " "),
		ClientID:  auth.ClientID,
		TokenType: "Bearer",
		Exp:       auth.ExpiresAt.Unix(),
		Sub:       auth.Subject,
		Aud:       []string{auth.ClientID},
		Iss:       h.Issuer,
		Jti:       auth.TokenID,
	})
}
