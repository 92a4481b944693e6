package http

import (
	"errors"
	"net/http"

	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/httpx"
	"github.com/halcyonlabs/keygate/pkg/oauthx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// UserInfoHandler returns information about the authenticated principal.
// Requires a bearer token with the profile:read scope.
type UserInfoHandler struct {
	Store store.Store
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	response := oauthx.UserInfoResponse{Sub: subject}

	// Machine tokens carry the client id as subject; those have no user row.
	user, err := h.Store.Users().GetUserByID(ctx, subject)
	switch {
	case err == nil:
		response.Username = user.Username
	case errors.Is(err, store.ErrNotFound):
	default:
		log.Warn("failed to load user", "sub", subject, "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
