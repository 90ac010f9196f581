// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

// ProviderMetadata is the OIDC discovery document
// (/.well-known/openid-configuration) for one tenant.
//
// The issuer and endpoint URLs are derived per request from the externally
// visible scheme and host, never from static configuration, so a deployment
// reachable under several hostnames publishes self-consistent metadata for
// each of them.
type ProviderMetadata struct {
	// REQUIRED
	Issuer                 string     `json:"issuer"`
	AuthorizationEndpoint  string     `json:"authorization_endpoint"`
	JWKSURI                string     `json:"jwks_uri"`
	ResponseTypesSupported [][]string `json:"response_types_supported"`
	SubjectTypesSupported  []string   `json:"subject_types_supported"`

	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`

	// RECOMMENDED / OPTIONAL
	TokenEndpoint                     string   `json:"token_endpoint,omitempty"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// Token endpoint client authentication methods (OIDC Core Section 9).
const (
	TokenEndpointAuthMethodClientSecretBasic = "client_secret_basic"
	TokenEndpointAuthMethodClientSecretPost  = "client_secret_post"
)
