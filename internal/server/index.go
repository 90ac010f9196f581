// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Index handles GET /.
func (*Handler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello World!"))
}

// Issuers handles GET /issuers, enumerating the configured tenant names.
func (h *Handler) Issuers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Names())
}

// IssuerIndex handles GET /{issuer}, echoing the tenant identity.
func (h *Handler) IssuerIndex(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "issuer")
	if _, ok := h.registry.Lookup(name); !ok {
		writeUnknownIssuer(w, name)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Issuer: %s", name)
}
