// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package session defines the fosite session used for every grant this
// server processes.
package session

import (
	"time"

	"github.com/ory/fosite"
)

// Session is the per-grant state handed through the grant engine. On top of
// the standard fosite session it carries an extension bag: an append-only
// mapping from extension identifier to an opaque payload. The bag is how
// per-request data crosses the engine's context-free callback boundary and
// reaches token signing.
type Session struct {
	*fosite.DefaultSession

	// Extensions maps extension identifier to opaque payload. Values are
	// written just before the engine mints and read exactly once by the
	// token signer; they are never persisted beyond the grant they ride on.
	Extensions map[string]string `json:"extensions,omitempty"`
}

// New creates a Session for the given subject.
func New(subject string) *Session {
	return &Session{
		DefaultSession: &fosite.DefaultSession{
			Subject:   subject,
			ExpiresAt: map[fosite.TokenType]time.Time{},
		},
		Extensions: map[string]string{},
	}
}

// SetExtension stores an opaque payload under the given extension
// identifier, replacing any previous value.
func (s *Session) SetExtension(id, payload string) {
	if s.Extensions == nil {
		s.Extensions = map[string]string{}
	}
	s.Extensions[id] = payload
}

// Extension returns the payload stored under the given identifier.
func (s *Session) Extension(id string) (string, bool) {
	payload, ok := s.Extensions[id]
	return payload, ok
}

// Clone implements fosite.Session. The extension bag is copied so that the
// clone the engine stores alongside a grant cannot alias a later request's
// bag.
func (s *Session) Clone() fosite.Session {
	if s == nil {
		return nil
	}

	clone := &Session{
		DefaultSession: &fosite.DefaultSession{},
		Extensions:     make(map[string]string, len(s.Extensions)),
	}

	if s.DefaultSession != nil {
		if inner, ok := s.DefaultSession.Clone().(*fosite.DefaultSession); ok {
			clone.DefaultSession = inner
		}
	}

	for id, payload := range s.Extensions {
		clone.Extensions[id] = payload
	}

	return clone
}

// FromRequester extracts the Session from a fosite requester, or nil when
// the requester carries a foreign session type.
func FromRequester(requester fosite.Requester) *Session {
	if requester == nil {
		return nil
	}
	sess, ok := requester.GetSession().(*Session)
	if !ok {
		return nil
	}
	return sess
}

// Compile-time interface compliance check
var _ fosite.Session = (*Session)(nil)
