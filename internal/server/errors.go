// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/ctron/garage-door/internal/logger"
)

// Error codes used in JSON error bodies. Grant and flow errors raised by
// the engine are not mapped through these; the engine writes its own
// RFC-shaped responses.
const (
	codeUnknownIssuer            = "UnknownIssuer"
	codeSerde                    = "Serde"
	codeMissingConnectionContext = "MissingConnectionContext"
	codeGeneric                  = "Generic"
)

// ErrorInformation is the JSON body of non-OAuth error responses.
type ErrorInformation struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorInformation{Error: code, Message: message}); err != nil {
		logger.Errorw("failed to write error response", "error", err)
	}
}

// writeUnknownIssuer responds 404 for a tenant name no issuer is registered
// under.
func writeUnknownIssuer(w http.ResponseWriter, name string) {
	writeError(w, http.StatusNotFound, codeUnknownIssuer, "unknown issuer: "+name)
}

// writeServerError responds 500 for internal failures (serialization,
// signing, wiring regressions).
func writeServerError(w http.ResponseWriter, code string, err error) {
	logger.Errorw("request failed", "code", code, "error", err)
	writeError(w, http.StatusInternalServerError, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to write response", "error", err)
	}
}
