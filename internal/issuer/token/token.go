// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package token turns grants into signed token strings.
//
// The access-token side plugs into the grant engine as its token strategy:
// authorization codes and refresh tokens stay opaque HMAC values (only this
// server validates them), while access tokens are signed JWS compact
// strings that resource servers can inspect. The ID-token side is
// independent of the engine, which has no native concept of an ID token;
// it is invoked when a token response is amended after the fact.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/ory/fosite"
	foauth2 "github.com/ory/fosite/handler/oauth2"

	"github.com/ctron/garage-door/internal/issuer/conninfo"
	"github.com/ctron/garage-door/internal/issuer/keys"
	"github.com/ctron/garage-door/internal/issuer/session"
	"github.com/ctron/garage-door/internal/oidc"
)

// IDTokenLifespan is the fixed validity of issued ID tokens.
const IDTokenLifespan = 600 * time.Second

// Strategy is the engine's token strategy for one tenant. It embeds the
// HMAC strategy for authorization codes and refresh tokens and replaces
// the access-token operations with JWS signing under the tenant key.
//
// The issuer claim is not configured statically: it is rebuilt for every
// grant from the connection context riding on the grant's extension bag,
// so tokens minted behind a reverse proxy name the origin the client
// actually used.
type Strategy struct {
	*foauth2.HMACSHAStrategy

	key        *keys.Key
	issuerPath string
}

// NewStrategy creates a Strategy for a tenant.
//
// issuerPath is the path component of the tenant's issuer URL (global base
// path plus tenant name), prepended with the per-request scheme and host
// when tokens are minted.
func NewStrategy(hmac *foauth2.HMACSHAStrategy, key *keys.Key, issuerPath string) (*Strategy, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if key.Algorithm() == "" {
		return nil, fmt.Errorf("signing key %s resolves to no algorithm", key.ID())
	}
	return &Strategy{
		HMACSHAStrategy: hmac,
		key:             key,
		issuerPath:      issuerPath,
	}, nil
}

// AccessTokenSignature returns the stable lookup signature of an access
// token: the signature segment of the JWS compact serialization.
func (*Strategy) AccessTokenSignature(_ context.Context, token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// GenerateAccessToken signs an access token for the given grant. It fails
// when the grant carries no connection context; no partial or unsigned
// token is ever returned.
func (s *Strategy) GenerateAccessToken(ctx context.Context, requester fosite.Requester) (string, string, error) {
	sess := session.FromRequester(requester)
	conn, err := conninfo.FromSession(sess)
	if err != nil {
		return "", "", err
	}

	now := time.Now()

	claims := oidc.AccessTokenClaims{
		Issuer:          conn.Scheme + "://" + conn.Host + s.issuerPath,
		Subject:         sess.GetSubject(),
		Audience:        oidc.Audience,
		IssuedAt:        now.Unix(),
		AuthorizedParty: requester.GetClient().GetID(),
		Scope:           strings.Join(requester.GetGrantedScopes(), " "),
	}
	if expiry := sess.GetExpiresAt(fosite.AccessToken); !expiry.IsZero() {
		claims.Expiry = expiry.Unix()
	}

	token, err := Sign(s.key, claims)
	if err != nil {
		return "", "", err
	}

	return token, s.AccessTokenSignature(ctx, token), nil
}

// ValidateAccessToken verifies the token signature under the tenant key
// and checks expiry.
func (s *Strategy) ValidateAccessToken(_ context.Context, _ fosite.Requester, token string) error {
	var claims oidc.AccessTokenClaims
	if err := Verify(s.key, token, &claims); err != nil {
		return fosite.ErrInvalidTokenFormat.WithWrap(err)
	}
	if claims.Expiry != 0 && time.Now().After(time.Unix(claims.Expiry, 0)) {
		return fosite.ErrTokenExpired
	}
	return nil
}

// IDTokenGenerator mints ID tokens for one tenant.
type IDTokenGenerator struct {
	key *keys.Key
}

// NewIDTokenGenerator creates an IDTokenGenerator signing with the tenant
// key.
func NewIDTokenGenerator(key *keys.Key) *IDTokenGenerator {
	return &IDTokenGenerator{key: key}
}

// Generate signs an ID token for the given issuer URL and subject.
func (g *IDTokenGenerator) Generate(issuer, subject string) (string, error) {
	now := time.Now()

	claims := oidc.IDTokenClaims{
		Issuer:   issuer,
		Subject:  subject,
		Audience: []string{oidc.Audience},
		IssuedAt: now.Unix(),
		Expiry:   now.Add(IDTokenLifespan).Unix(),
	}

	return Sign(g.key, claims)
}

// Sign serializes the claims and signs them into a JWS compact string
// (header.payload.signature) under the given key, with the algorithm and
// key id explicit in the header.
func Sign(key *keys.Key, claims any) (string, error) {
	// go-jose only propagates a JWK's key id into the header for
	// asymmetric keys; for a symmetric key the "kid" must be set
	// explicitly.
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: key.Algorithm(), Key: key.JWK()},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.ID()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to serialize claims: %w", err)
	}

	object, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign claims: %w", err)
	}

	return object.CompactSerialize()
}

// Verify parses a JWS compact string, checks its signature under the given
// key and unmarshals the payload into out.
func Verify(key *keys.Key, token string, out any) error {
	object, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{key.Algorithm()})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	payload, err := object.Verify(key.Secret())
	if err != nil {
		return fmt.Errorf("failed to verify token signature: %w", err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode claims: %w", err)
	}
	return nil
}
