// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the grant bookkeeping for one tenant: the
// registered clients plus authorization-code, access-token and
// refresh-token sessions consumed by the grant engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ory/fosite"

	"github.com/ctron/garage-door/internal/logger"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("not found")

// Default TTLs used when a session carries no expiry of its own.
const (
	DefaultAuthCodeTTL        = 10 * time.Minute
	DefaultAccessTokenTTL     = time.Hour
	DefaultRefreshTokenTTL    = 7 * 24 * time.Hour
	DefaultInvalidatedCodeTTL = 24 * time.Hour
)

// timedEntry wraps a value with its expiry for pruning.
type timedEntry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// Store implements the grant engine's storage contracts with in-memory
// maps. One Store exists per tenant, so entries of different tenants can
// never collide. It is safe for concurrent use.
//
// Token maps store fosite.Requester (not just token strings) because the
// engine needs the full authorization context for validation. Maps are
// keyed by signature (the cryptographic token identifier) for O(1) lookup;
// revocation by request id is an O(n) scan, acceptable for an in-memory
// tenant. There is no background cleanup: expired entries are pruned
// opportunistically whenever a new entry of the same kind is created, so
// the store does no work outside request handling.
type Store struct {
	mu sync.RWMutex

	clients map[string]fosite.Client

	// authCodes maps authorization code -> Requester. Codes are
	// one-time-use; invalidatedCodes tracks used codes so the engine can
	// detect replays.
	authCodes        map[string]*timedEntry[fosite.Requester]
	invalidatedCodes map[string]*timedEntry[bool]

	accessTokens  map[string]*timedEntry[fosite.Requester]
	refreshTokens map[string]*timedEntry[fosite.Requester]

	// clientAssertionJWTs tracks JTIs to prevent JWT replay per RFC 7523.
	clientAssertionJWTs map[string]time.Time
}

// NewStore creates a Store with initialized maps.
func NewStore() *Store {
	return &Store{
		clients:             make(map[string]fosite.Client),
		authCodes:           make(map[string]*timedEntry[fosite.Requester]),
		invalidatedCodes:    make(map[string]*timedEntry[bool]),
		accessTokens:        make(map[string]*timedEntry[fosite.Requester]),
		refreshTokens:       make(map[string]*timedEntry[fosite.Requester]),
		clientAssertionJWTs: make(map[string]time.Time),
	}
}

// getExpirationFromRequester extracts the expiry for one token type from a
// requester's session, falling back to the provided default.
func getExpirationFromRequester(request fosite.Requester, tokenType fosite.TokenType, defaultTTL time.Duration) time.Time {
	if request == nil {
		return time.Now().Add(defaultTTL)
	}

	session := request.GetSession()
	if session == nil {
		return time.Now().Add(defaultTTL)
	}

	expTime := session.GetExpiresAt(tokenType)
	if expTime.IsZero() {
		return time.Now().Add(defaultTTL)
	}

	return expTime
}

// pruneExpired removes expired entries from a map. Caller holds the write
// lock.
func pruneExpired[T any](entries map[string]*timedEntry[T]) {
	now := time.Now()
	for k, v := range entries {
		if now.After(v.expiresAt) {
			delete(entries, k)
		}
	}
}

// RegisterClient adds or replaces a client. Called once per client while
// the tenant is built, never at request time.
func (s *Store) RegisterClient(_ context.Context, client fosite.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.GetID()] = client
	return nil
}

// -----------------------
// fosite.ClientManager
// -----------------------

// GetClient loads the client by its ID or returns an error if the client does not exist.
func (s *Store) GetClient(_ context.Context, id string) (fosite.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		logger.Debugw("client not found", "client_id", id)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Client not found"))
	}
	return client, nil
}

// ClientAssertionJWTValid returns an error if the JTI is known, and nil if
// it can still be used.
func (s *Store) ClientAssertionJWTValid(_ context.Context, jti string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if exp, ok := s.clientAssertionJWTs[jti]; ok {
		if time.Now().Before(exp) {
			return fosite.ErrJTIKnown
		}
	}
	return nil
}

// SetClientAssertionJWT marks a JTI as known for the given expiry time,
// pruning expired JTIs first.
func (s *Store) SetClientAssertionJWT(_ context.Context, jti string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, v := range s.clientAssertionJWTs {
		if now.After(v) {
			delete(s.clientAssertionJWTs, k)
		}
	}

	s.clientAssertionJWTs[jti] = exp
	return nil
}

// -----------------------
// oauth2.AuthorizeCodeStorage
// -----------------------

// CreateAuthorizeCodeSession stores the authorization request for a given authorization code.
func (s *Store) CreateAuthorizeCodeSession(_ context.Context, code string, request fosite.Requester) error {
	if code == "" {
		return fosite.ErrInvalidRequest.WithHint("authorization code cannot be empty")
	}
	if request == nil {
		return fosite.ErrInvalidRequest.WithHint("request cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pruneExpired(s.authCodes)
	pruneExpired(s.invalidatedCodes)

	now := time.Now()
	s.authCodes[code] = &timedEntry[fosite.Requester]{
		value:     request,
		createdAt: now,
		expiresAt: getExpirationFromRequester(request, fosite.AuthorizeCode, DefaultAuthCodeTTL),
	}
	return nil
}

// GetAuthorizeCodeSession retrieves the authorization request for a given
// code. For an invalidated code it returns the request along with
// ErrInvalidatedAuthorizeCode, as the engine requires.
func (s *Store) GetAuthorizeCodeSession(_ context.Context, code string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.authCodes[code]
	if !ok {
		logger.Debugw("authorization code not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Authorization code not found"))
	}

	if s.invalidatedCodes[code] != nil {
		return entry.value, fosite.ErrInvalidatedAuthorizeCode
	}

	return entry.value, nil
}

// InvalidateAuthorizeCodeSession marks an authorization code as used.
func (s *Store) InvalidateAuthorizeCodeSession(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authCodes[code]; !ok {
		logger.Debugw("authorization code not found for invalidation")
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Authorization code not found"))
	}

	now := time.Now()
	s.invalidatedCodes[code] = &timedEntry[bool]{
		value:     true,
		createdAt: now,
		expiresAt: now.Add(DefaultInvalidatedCodeTTL),
	}
	return nil
}

// -----------------------
// oauth2.AccessTokenStorage
// -----------------------

// CreateAccessTokenSession stores the access token session.
func (s *Store) CreateAccessTokenSession(_ context.Context, signature string, request fosite.Requester) error {
	if signature == "" {
		return fosite.ErrInvalidRequest.WithHint("access token signature cannot be empty")
	}
	if request == nil {
		return fosite.ErrInvalidRequest.WithHint("request cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pruneExpired(s.accessTokens)

	s.accessTokens[signature] = &timedEntry[fosite.Requester]{
		value:     request,
		createdAt: time.Now(),
		expiresAt: getExpirationFromRequester(request, fosite.AccessToken, DefaultAccessTokenTTL),
	}
	return nil
}

// GetAccessTokenSession retrieves the access token session by its signature.
func (s *Store) GetAccessTokenSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.accessTokens[signature]
	if !ok {
		logger.Debugw("access token not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token not found"))
	}
	return entry.value, nil
}

// DeleteAccessTokenSession removes the access token session.
func (s *Store) DeleteAccessTokenSession(_ context.Context, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accessTokens[signature]; !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token not found"))
	}
	delete(s.accessTokens, signature)
	return nil
}

// -----------------------
// oauth2.RefreshTokenStorage
// -----------------------

// CreateRefreshTokenSession stores the refresh token session.
func (s *Store) CreateRefreshTokenSession(_ context.Context, signature string, request fosite.Requester) error {
	if signature == "" {
		return fosite.ErrInvalidRequest.WithHint("refresh token signature cannot be empty")
	}
	if request == nil {
		return fosite.ErrInvalidRequest.WithHint("request cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pruneExpired(s.refreshTokens)

	s.refreshTokens[signature] = &timedEntry[fosite.Requester]{
		value:     request,
		createdAt: time.Now(),
		expiresAt: getExpirationFromRequester(request, fosite.RefreshToken, DefaultRefreshTokenTTL),
	}
	return nil
}

// GetRefreshTokenSession retrieves the refresh token session by its signature.
func (s *Store) GetRefreshTokenSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.refreshTokens[signature]
	if !ok {
		logger.Debugw("refresh token not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Refresh token not found"))
	}
	return entry.value, nil
}

// DeleteRefreshTokenSession removes the refresh token session.
func (s *Store) DeleteRefreshTokenSession(_ context.Context, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[signature]; !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Refresh token not found"))
	}
	delete(s.refreshTokens, signature)
	return nil
}

// RotateRefreshToken invalidates a refresh token and the access tokens of
// the same grant, implementing refresh token rotation.
func (s *Store) RotateRefreshToken(_ context.Context, requestID string, refreshTokenSignature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshTokens, refreshTokenSignature)

	for sig, entry := range s.accessTokens {
		if entry.value.GetID() == requestID {
			delete(s.accessTokens, sig)
		}
	}

	return nil
}

// -----------------------
// oauth2.TokenRevocationStorage
// -----------------------

// RevokeAccessToken removes all access tokens of the given grant. Per RFC
// 7009 revocation operates on the grant (request id), not on a single
// token signature.
func (s *Store) RevokeAccessToken(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sig, entry := range s.accessTokens {
		if entry.value.GetID() == requestID {
			delete(s.accessTokens, sig)
		}
	}

	return nil
}

// RevokeRefreshToken removes all refresh tokens of the given grant.
func (s *Store) RevokeRefreshToken(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sig, entry := range s.refreshTokens {
		if entry.value.GetID() == requestID {
			delete(s.refreshTokens, sig)
		}
	}

	return nil
}

// RevokeRefreshTokenMaybeGracePeriod revokes without a grace period; the
// in-memory store does not implement graceful rotation.
func (s *Store) RevokeRefreshTokenMaybeGracePeriod(ctx context.Context, requestID string, _ string) error {
	return s.RevokeRefreshToken(ctx, requestID)
}
