package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/pkg/oauthx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// RevokeHandler serves POST /v1/oauth2/revoke following RFC 7009. The caller
// must authenticate as a client and may only revoke its own tokens. Unknown
// tokens still return 200 OK to prevent token scanning.
type RevokeHandler struct {
	Server     *service.Server
	Revocation *service.RevocationService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	client, err := h.Server.AuthenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			oauthx.ErrInvalidClient.WriteError(w)
			return
		}
		log.Error("revoke client authentication failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Revocation.Revoke(ctx, client.ID, token, r.Form.Get("token_type_hint")); err != nil {
		log.Error("token revocation failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusOK)
}
