// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package oidc defines the wire documents exchanged with OAuth2/OIDC
// clients: token claim sets, provider metadata and userinfo responses.
package oidc

// Audience is the fixed audience claim carried by every token this server
// issues.
const Audience = "some-audience"

// AccessTokenClaims is the claim set of a signed access token.
type AccessTokenClaims struct {
	// Issuer is derived per request from the externally visible
	// scheme/host plus the tenant path.
	Issuer   string `json:"iss,omitempty"`
	Subject  string `json:"sub,omitempty"`
	Audience string `json:"aud,omitempty"`
	IssuedAt int64  `json:"iat,omitempty"`
	Expiry   int64  `json:"exp,omitempty"`

	// AuthorizedParty is the client the token was issued to.
	AuthorizedParty string `json:"azp,omitempty"`
	AuthTime        int64  `json:"auth_time,omitempty"`
	Scope           string `json:"scope,omitempty"`
}

// IDTokenClaims is the claim set of an ID token appended to a token
// response.
type IDTokenClaims struct {
	Issuer   string   `json:"iss"`
	Subject  string   `json:"sub"`
	Audience []string `json:"aud"`
	IssuedAt int64    `json:"iat"`
	Expiry   int64    `json:"exp"`
}

// UserInfo is the userinfo endpoint response. Only the subject is
// populated; there is no user store behind this server.
type UserInfo struct {
	Subject string `json:"sub"`
}
