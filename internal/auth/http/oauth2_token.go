package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/pkg/httpx"
	"github.com/halcyonlabs/keygate/pkg/oauthx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Server *service.Server
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r)

	req := service.TokenRequest{
		GrantType:    domain.GrantType(r.Form.Get("grant_type")),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         strings.TrimSpace(r.Form.Get("code")),
		RedirectURI:  strings.TrimSpace(r.Form.Get("redirect_uri")),
		CodeVerifier: strings.TrimSpace(r.Form.Get("code_verifier")),
		Username:     strings.TrimSpace(r.Form.Get("username")),
		Password:     r.Form.Get("password"),
		RefreshToken: r.Form.Get("refresh_token"),
		Scopes:       httpx.ParseSpaceDelimitedFields(r.Form.Get("scope")),
	}

	pair, err := h.Server.Exchange(ctx, req)
	if err != nil {
		writeGrantError(w, log, req.GrantType, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, oauthx.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		Scope:        strings.TrimSpace(pair.Scope),
	})
}

// clientCredentials pulls client authentication from HTTP Basic auth or,
// failing that, from the form body.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return strings.TrimSpace(id), secret
	}
	return strings.TrimSpace(r.Form.Get("client_id")), r.Form.Get("client_secret")
}

func writeGrantError(w http.ResponseWriter, log *slog.Logger, grantType domain.GrantType, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedGrantType):
		oauthx.ErrUnsupportedGrantType.WriteError(w)
	case errors.Is(err, service.ErrInvalidClient):
		oauthx.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrUnauthorizedClient):
		oauthx.ErrUnauthorizedClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidGrant),
		errors.Is(err, service.ErrInvalidRefresh):
		oauthx.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauthx.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		oauthx.ErrInvalidRequest.WriteError(w)
	default:
		log.Error("token grant failed", "grant_type", grantType.String(), "err", err)
		oauthx.ErrServerError.WriteError(w)
	}
}
