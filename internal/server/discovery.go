// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"

	"github.com/go-jose/go-jose/v4"

	"github.com/ctron/garage-door/internal/issuer"
	"github.com/ctron/garage-door/internal/issuer/conninfo"
	"github.com/ctron/garage-door/internal/oidc"
)

// issuerURL builds the tenant's issuer URL for one request: the externally
// visible scheme and host plus the tenant path.
func issuerURL(req *http.Request, state *issuer.State) string {
	conn := conninfo.FromRequest(req)
	return conn.Scheme + "://" + conn.Host + state.Path()
}

// Discovery handles GET /{issuer}/.well-known/openid-configuration.
//
// The document is rebuilt per request so that a deployment reachable under
// several hostnames publishes self-consistent metadata for each of them.
func (h *Handler) Discovery(w http.ResponseWriter, req *http.Request) {
	state, ok := h.tenant(w, req)
	if !ok {
		return
	}

	base := issuerURL(req, state)

	writeJSON(w, http.StatusOK, oidc.ProviderMetadata{
		Issuer:                base,
		AuthorizationEndpoint: base + "/auth",
		JWKSURI:               base + "/keys",
		TokenEndpoint:         base + "/token",
		UserinfoEndpoint:      base + "/userinfo",

		ResponseTypesSupported:           [][]string{{"token"}},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{string(state.Key().Algorithm())},

		ScopesSupported:     state.Scopes(),
		GrantTypesSupported: []string{"client_credentials", "authorization_code"},
		TokenEndpointAuthMethodsSupported: []string{
			oidc.TokenEndpointAuthMethodClientSecretBasic,
			oidc.TokenEndpointAuthMethodClientSecretPost,
		},
	})
}

// Keys handles GET /{issuer}/keys. The published key set is currently
// empty: the signing key is symmetric and must not be disclosed, and no
// public key material exists yet. Consumers relying on JWKS verification
// will not find the signing key here.
func (h *Handler) Keys(w http.ResponseWriter, req *http.Request) {
	if _, ok := h.tenant(w, req); !ok {
		return
	}

	writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}})
}

// Userinfo handles GET and POST /{issuer}/userinfo, returning the claims
// of the fixed placeholder subject.
func (h *Handler) Userinfo(w http.ResponseWriter, req *http.Request) {
	if _, ok := h.tenant(w, req); !ok {
		return
	}

	writeJSON(w, http.StatusOK, oidc.UserInfo{Subject: placeholderSubject})
}

// Logout handles GET /{issuer}/logout. There is no session state to
// invalidate; the endpoint only honors the optional post-logout redirect.
func (h *Handler) Logout(w http.ResponseWriter, req *http.Request) {
	if _, ok := h.tenant(w, req); !ok {
		return
	}

	if target := req.URL.Query().Get("post_logout_redirect_uri"); target != "" {
		http.Redirect(w, req, target, http.StatusTemporaryRedirect)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
