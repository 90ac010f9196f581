// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package conninfo carries the network context of one inbound request
// across the grant engine's callback boundary.
//
// Token signing happens inside a callback invoked by the grant engine,
// which knows nothing about the request being served. The issuer
// claim of a signed token must reflect the externally visible origin so
// that deployments behind reverse proxies or multiple hostnames issue
// self-consistent tokens. The codec in this package writes the request's
// scheme and host into the grant's extension bag just before the engine
// runs, and the signer reads the single entry back out when it mints.
package conninfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ctron/garage-door/internal/issuer/session"
)

// ExtensionID names the extension bag entry holding the encoded
// connection context.
const ExtensionID = "garage_door::connection_information"

// ErrMissing is returned when a grant reaches token signing without a
// connection context. This is unreachable under correct wiring; seeing it
// at runtime signals a wiring regression, not a client error.
var ErrMissing = errors.New("missing connection information")

// ConnectionContext is the transient network context of one request. It is
// valid only for the request that produced it and is never persisted.
type ConnectionContext struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
}

// FromRequest derives the externally visible scheme and host of a request,
// honoring the conventional reverse-proxy forwarding headers.
func FromRequest(r *http.Request) ConnectionContext {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}

	return ConnectionContext{Scheme: scheme, Host: host}
}

// Encode serializes the context into the opaque extension payload.
func (c ConnectionContext) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode connection information: %w", err)
	}
	return string(data), nil
}

// Decode is the exact inverse of Encode.
func Decode(payload string) (ConnectionContext, error) {
	var c ConnectionContext
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return ConnectionContext{}, fmt.Errorf("failed to decode connection information: %w", err)
	}
	return c, nil
}

// Attach writes the encoded context into the session's extension bag.
// Called on every pass that may mint a token or grant credentials.
func Attach(sess *session.Session, c ConnectionContext) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	sess.SetExtension(ExtensionID, payload)
	return nil
}

// FromSession reads the context back out of the extension bag. It fails
// with ErrMissing when no context was attached.
func FromSession(sess *session.Session) (ConnectionContext, error) {
	if sess == nil {
		return ConnectionContext{}, ErrMissing
	}
	payload, ok := sess.Extension(ExtensionID)
	if !ok {
		return ConnectionContext{}, ErrMissing
	}
	return Decode(payload)
}
