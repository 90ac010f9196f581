// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the identity provider over HTTP: the per-tenant
// OAuth2/OIDC endpoints, grant dispatch, and the serve lifecycle.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctron/garage-door/internal/issuer"
)

// placeholderSubject is the fixed resource-owner identity. There is no
// authentication or consent UI; every authorization request is granted on
// behalf of this subject.
const placeholderSubject = "Marvin"

// Handler provides the HTTP handlers for all tenant endpoints.
type Handler struct {
	registry *issuer.Registry
}

// NewHandler creates a Handler serving the given tenants.
func NewHandler(registry *issuer.Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes registers all endpoints on the provided router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/issuers", h.Issuers)

	r.Get("/{issuer}", h.IssuerIndex)
	r.Get("/{issuer}/.well-known/openid-configuration", h.Discovery)
	r.Get("/{issuer}/auth", h.Authorize)
	r.Get("/{issuer}/keys", h.Keys)
	r.Get("/{issuer}/userinfo", h.Userinfo)
	r.Post("/{issuer}/userinfo", h.Userinfo)
	r.Post("/{issuer}/token", h.Token)
	r.Post("/{issuer}/refresh", h.Refresh)
	r.Get("/{issuer}/logout", h.Logout)
}

// tenant resolves the tenant addressed by the request, writing the 404
// error body when it does not exist.
func (h *Handler) tenant(w http.ResponseWriter, req *http.Request) (*issuer.State, bool) {
	name := chi.URLParam(req, "issuer")
	state, ok := h.registry.Lookup(name)
	if !ok {
		writeUnknownIssuer(w, name)
		return nil, false
	}
	return state, true
}
