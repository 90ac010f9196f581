// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ory/fosite"

	"github.com/ctron/garage-door/internal/issuer"
	"github.com/ctron/garage-door/internal/issuer/conninfo"
	"github.com/ctron/garage-door/internal/issuer/session"
	"github.com/ctron/garage-door/internal/logger"
)

// Authorize handles GET /{issuer}/auth.
//
// The redirect URI is validated against the tenant's own matching rules
// before the engine request is constructed, so the engine's exact-match
// redirect validation never runs. Consent is auto-granted for the fixed
// placeholder subject.
func (h *Handler) Authorize(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	state, ok := h.tenant(w, req)
	if !ok {
		return
	}
	provider := state.Provider()

	query := req.URL.Query()

	ar := fosite.NewAuthorizeRequest()
	ar.Form = query
	ar.State = query.Get("state")

	clientID := query.Get("client_id")
	if clientID == "" {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrInvalidRequest.WithHint("client_id is required"))
		return
	}

	client, ok := state.Registrar().Lookup(clientID)
	if !ok {
		logger.Warnw("client not found", "issuer", state.Name(), "client_id", clientID)
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrInvalidClient.WithHint("Client not found"))
		return
	}

	// When the request names no redirect URI, fall back to the client's
	// primary registered one.
	redirectURI := query.Get("redirect_uri")
	if redirectURI == "" && len(client.GetRedirectURIs()) > 0 {
		redirectURI = client.GetRedirectURIs()[0]
	}

	if !client.MatchRedirectURI(redirectURI) {
		logger.Warnw("redirect URI rejected", "issuer", state.Name(), "client_id", clientID, "redirect_uri", redirectURI)
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrInvalidRequest.WithHint("The redirect URI does not match any registered URI"))
		return
	}

	parsedRedirect, err := url.Parse(redirectURI)
	if err != nil {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrInvalidRequest.WithHint("The redirect URI is malformed"))
		return
	}

	if responseType := query.Get("response_type"); responseType != "code" {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrUnsupportedResponseType.WithHint("Only response_type=code is supported"))
		return
	}

	sess := session.New(placeholderSubject)
	now := time.Now()
	sess.SetExpiresAt(fosite.AuthorizeCode, now.Add(issuer.AuthorizeCodeLifespan))
	sess.SetExpiresAt(fosite.AccessToken, now.Add(issuer.AccessTokenLifespan))
	sess.SetExpiresAt(fosite.RefreshToken, now.Add(issuer.RefreshTokenLifespan))

	if err := conninfo.Attach(sess, conninfo.FromRequest(req)); err != nil {
		writeServerError(w, codeSerde, err)
		return
	}

	ar.Client = client
	ar.Session = sess
	ar.RequestedAt = now
	ar.RedirectURI = parsedRedirect
	ar.ResponseTypes = fosite.Arguments{"code"}

	// Consent is automatic: all requested scopes are granted, defaulting
	// to the client's registered scopes when the request names none.
	scopes := strings.Fields(query.Get("scope"))
	if len(scopes) == 0 {
		scopes = client.GetScopes()
	}
	for _, scope := range scopes {
		ar.RequestedScope = append(ar.RequestedScope, scope)
		ar.GrantedScope = append(ar.GrantedScope, scope)
	}

	var response fosite.AuthorizeResponder
	err = state.WithExclusive(func(p fosite.OAuth2Provider) error {
		var err error
		response, err = p.NewAuthorizeResponse(ctx, ar, sess)
		return err
	})
	if err != nil {
		logger.Warnw("authorization failed", "issuer", state.Name(), "client_id", clientID, "error", err)
		provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}

	provider.WriteAuthorizeResponse(ctx, w, ar, response)
}
