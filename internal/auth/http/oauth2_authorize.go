package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/pkg/httpx"
	"github.com/halcyonlabs/keygate/pkg/oauthx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// AuthorizeHandler serves the OAuth2 authorization endpoint.
//
// GET validates the request and returns a consent payload for the login UI.
// POST carries the resource owner's credentials and decision; on approval the
// browser is redirected back with a single-use code.
type AuthorizeHandler struct {
	Authorize *service.AuthorizeService
	Identity  service.IdentityProvider
}

// consentPayload is what the external login UI renders before the resource
// owner decides.
type consentPayload struct {
	ClientID   string   `json:"client_id"`
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
	State      string   `json:"state,omitempty"`
}

func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req := buildAuthorizeRequest(r.URL.Query(), nil)

	pending, err := h.Authorize.Validate(r.Context(), req)
	if err != nil {
		h.writeAuthorizeError(w, r, req, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, consentPayload{
		ClientID:   pending.Client.ID,
		ClientName: pending.Client.Name,
		Scopes:     pending.Scopes,
		State:      pending.State,
	})
}

func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	req := buildAuthorizeRequest(r.Form, r.URL.Query())

	pending, err := h.Authorize.Validate(ctx, req)
	if err != nil {
		h.writeAuthorizeError(w, r, req, err)
		return
	}

	// Explicit denial redirects back per RFC 6749 section 4.1.2.1.
	if strings.EqualFold(r.Form.Get("decision"), "deny") {
		_ = h.Authorize.Deny(ctx, pending)
		http.Redirect(w, r, buildErrorRedirect(pending.RedirectURI, pending.State,
			oauthx.ErrorCodeAccessDenied, "the resource owner denied the request"), http.StatusFound)
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	if username == "" {
		// Consent rendering is external; tell it to collect credentials first.
		oauthx.NewOAuth2Error(http.StatusUnauthorized, "login_required",
			"resource owner credentials are required").WriteError(w)
		return
	}

	user, err := h.Identity.Authenticate(ctx, username, r.Form.Get("password"))
	if err != nil {
		log.Info("authorize login failed", "client_id", req.ClientID)
		oauthx.NewOAuth2Error(http.StatusUnauthorized, oauthx.ErrorCodeInvalidGrant,
			"resource owner authentication failed").WriteError(w)
		return
	}

	resp, err := h.Authorize.Approve(ctx, pending, user.ID)
	if err != nil {
		log.Error("authorization code issuance failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	http.Redirect(w, r, buildAuthorizeRedirect(resp.RedirectURI, resp.Code, resp.State), http.StatusFound)
}

func buildAuthorizeRequest(primary, secondary url.Values) service.AuthorizeRequest {
	pick := func(key string) string {
		if v := primary.Get(key); v != "" {
			return v
		}
		if secondary != nil {
			return secondary.Get(key)
		}
		return ""
	}

	return service.AuthorizeRequest{
		ResponseType:        pick("response_type"),
		ClientID:            pick("client_id"),
		RedirectURI:         pick("redirect_uri"),
		Scope:               httpx.ParseSpaceDelimitedFields(pick("scope")),
		State:               pick("state"),
		CodeChallenge:       pick("code_challenge"),
		CodeChallengeMethod: pick("code_challenge_method"),
	}
}

// writeAuthorizeError follows RFC 6749 section 4.1.2.1: failures of the
// client or redirect URI checks are answered directly, everything after that
// is reported to the client via redirect.
func (h *AuthorizeHandler) writeAuthorizeError(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidClient):
		oauthx.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidRedirect):
		oauthx.NewOAuth2Error(http.StatusBadRequest, oauthx.ErrorCodeInvalidRequest,
			"the redirect_uri does not match a registered URI for the client").WriteError(w)
	case errors.Is(err, service.ErrUnsupportedResponseType):
		h.redirectError(w, r, req, oauthx.ErrorCodeUnsupportedResponseType, "response type not supported")
	case errors.Is(err, service.ErrUnauthorizedClient):
		h.redirectError(w, r, req, oauthx.ErrorCodeUnauthorizedClient, "client may not use the authorization code flow")
	case errors.Is(err, service.ErrInvalidScope):
		h.redirectError(w, r, req, oauthx.ErrorCodeInvalidScope, "requested scope is invalid")
	case errors.Is(err, service.ErrInvalidRequest):
		h.redirectError(w, r, req, oauthx.ErrorCodeInvalidRequest, "the request is malformed or missing required parameters")
	default:
		log.Error("authorize request failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
	}
}

// redirectError reports an error via the redirect URI. The URI was already
// validated against the client registration before any of these errors can
// occur, so redirecting is safe.
func (h *AuthorizeHandler) redirectError(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest, code, description string) {
	http.Redirect(w, r, buildErrorRedirect(req.RedirectURI, req.State, code, description), http.StatusFound)
}

func buildAuthorizeRedirect(baseURI, code, state string) string {
	u, err := url.Parse(baseURI)
	if err != nil {
		return baseURI
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func buildErrorRedirect(baseURI, state, errorCode, description string) string {
	u, err := url.Parse(baseURI)
	if err != nil {
		return baseURI
	}
	q := u.Query()
	q.Set("error", errorCode)
	if description != "" {
		q.Set("error_description", description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
