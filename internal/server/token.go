// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ory/fosite"

	"github.com/ctron/garage-door/internal/issuer"
	"github.com/ctron/garage-door/internal/issuer/conninfo"
	"github.com/ctron/garage-door/internal/issuer/session"
	"github.com/ctron/garage-door/internal/logger"
)

// Token handles POST /{issuer}/token, dispatching on the grant_type form
// parameter. client_credentials authorizes the requesting client as its
// own subject; refresh_token forwards to the refresh flow unchanged;
// everything else runs the standard token exchange and amends the response
// with an ID token.
func (h *Handler) Token(w http.ResponseWriter, req *http.Request) {
	state, ok := h.tenant(w, req)
	if !ok {
		return
	}

	switch req.PostFormValue("grant_type") {
	case "client_credentials":
		h.clientCredentials(w, req, state)
	case "refresh_token":
		h.exchange(w, req, state, false)
	default:
		h.exchange(w, req, state, true)
	}
}

// Refresh handles POST /{issuer}/refresh. Identical to the refresh branch
// of the token endpoint; no ID token is amended.
func (h *Handler) Refresh(w http.ResponseWriter, req *http.Request) {
	state, ok := h.tenant(w, req)
	if !ok {
		return
	}

	h.exchange(w, req, state, false)
}

// clientCredentials runs the client-credentials flow. The authenticated
// client's own id becomes the token subject, and credentials are accepted
// in the request body as well as via basic auth.
func (h *Handler) clientCredentials(w http.ResponseWriter, req *http.Request, state *issuer.State) {
	ctx := req.Context()
	provider := state.Provider()

	conn := conninfo.FromRequest(req)

	var accessRequest fosite.AccessRequester
	var response fosite.AccessResponder

	err := state.WithExclusive(func(p fosite.OAuth2Provider) error {
		ar, err := p.NewAccessRequest(ctx, req, session.New(""))
		if err != nil {
			accessRequest = ar
			return err
		}
		accessRequest = ar

		sess := session.FromRequester(ar)
		if sess == nil {
			return conninfo.ErrMissing
		}
		sess.SetSubject(ar.GetClient().GetID())
		if err := conninfo.Attach(sess, conn); err != nil {
			return err
		}

		// No scope requested means the client's registered scopes.
		if len(ar.GetRequestedScopes()) == 0 {
			for _, scope := range ar.GetClient().GetScopes() {
				ar.GrantScope(scope)
			}
		}

		response, err = p.NewAccessResponse(ctx, ar)
		return err
	})
	if err != nil {
		logger.Warnw("client credentials grant failed", "issuer", state.Name(), "error", err)
		h.writeGrantError(ctx, w, provider, accessRequest, err)
		return
	}

	provider.WriteAccessResponse(ctx, w, accessRequest, response)
}

// exchange runs the engine's token exchange (authorization code or refresh
// token). With amend set, a successful response body is re-serialized with
// an ID token injected next to the access token; any other body passes
// through byte-identical.
func (h *Handler) exchange(w http.ResponseWriter, req *http.Request, state *issuer.State, amend bool) {
	ctx := req.Context()
	provider := state.Provider()

	conn := conninfo.FromRequest(req)

	var accessRequest fosite.AccessRequester
	var response fosite.AccessResponder

	err := state.WithExclusive(func(p fosite.OAuth2Provider) error {
		// The session passed here is only a deserialization template; the
		// engine replaces it with a clone of the session stored alongside
		// the authorization code or refresh token.
		ar, err := p.NewAccessRequest(ctx, req, session.New(""))
		if err != nil {
			accessRequest = ar
			return err
		}
		accessRequest = ar

		// The stored clone carries the context of the originating
		// request; overwrite it so the issuer claim names the origin of
		// this exchange.
		sess := session.FromRequester(ar)
		if sess == nil {
			return conninfo.ErrMissing
		}
		if err := conninfo.Attach(sess, conn); err != nil {
			return err
		}

		response, err = p.NewAccessResponse(ctx, ar)
		return err
	})
	if err != nil {
		logger.Warnw("token exchange failed", "issuer", state.Name(), "error", err)
		h.writeGrantError(ctx, w, provider, accessRequest, err)
		return
	}

	if !amend {
		provider.WriteAccessResponse(ctx, w, accessRequest, response)
		return
	}

	rec := newResponseRecorder()
	provider.WriteAccessResponse(ctx, rec, accessRequest, response)

	body, err := h.amendIDToken(req, state, rec.body.Bytes())
	if err != nil {
		writeServerError(w, codeGeneric, err)
		return
	}

	rec.flushTo(w, body)
}

// writeGrantError writes a failed grant operation. Engine errors go out in
// the RFC error shape via the engine's own writer; a missing connection
// context is a wiring regression and reported as an internal error.
func (h *Handler) writeGrantError(ctx context.Context, w http.ResponseWriter, provider fosite.OAuth2Provider, ar fosite.AccessRequester, err error) {
	if errors.Is(err, conninfo.ErrMissing) {
		writeServerError(w, codeMissingConnectionContext, err)
		return
	}
	provider.WriteAccessError(ctx, w, ar, err)
}

// amendIDToken injects an ID token into a token response body. A body
// without a non-empty access_token field is returned untouched.
func (h *Handler) amendIDToken(req *http.Request, state *issuer.State, body []byte) ([]byte, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return body, nil
	}

	accessToken, ok := payload["access_token"].(string)
	if !ok || accessToken == "" {
		return body, nil
	}

	idToken, err := state.IDTokens().Generate(issuerURL(req, state), placeholderSubject)
	if err != nil {
		return nil, err
	}
	payload["id_token"] = idToken

	amended, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return amended, nil
}

// responseRecorder buffers one engine-written response so its body can be
// amended before going out.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}, status: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	return r.body.Write(data)
}

// flushTo replays the recorded response onto the real writer, with body
// replacing the recorded one.
func (r *responseRecorder) flushTo(w http.ResponseWriter, body []byte) {
	for key, values := range r.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(r.status)
	if _, err := w.Write(body); err != nil {
		logger.Errorw("failed to write token response", "error", err)
	}
}
