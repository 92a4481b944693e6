package http

import (
	"net/http"

	"github.com/halcyonlabs/keygate/pkg/httpx"
	"github.com/halcyonlabs/keygate/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
// Resource servers fetch this to verify access token signatures locally.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
