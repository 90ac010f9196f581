// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package issuer implements the multi-tenant core: per-tenant issuer
// state, client registration and redirect-URI policy.
package issuer

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIssuer is returned when two configured issuers share a
	// name. Tenants are addressed by name, so this is a startup error.
	ErrDuplicateIssuer = errors.New("duplicate issuer")

	// ErrMissingRedirectURI is returned when a public client is
	// configured without any redirect URI.
	ErrMissingRedirectURI = errors.New("public client requires at least one redirect URI")
)

// Issuer is the configuration of one tenant. It is parsed at startup and
// consumed when the registry is built; it is not retained afterwards.
type Issuer struct {
	Name string `json:"name" yaml:"name"`

	// Scopes are the scopes advertised in the tenant's discovery
	// document. Defaults to the single default client scope.
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	Clients []Client `json:"clients,omitempty" yaml:"clients,omitempty"`
}

// Validate checks the issuer configuration.
func (i *Issuer) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("issuer requires a name")
	}
	for c := range i.Clients {
		if err := i.Clients[c].Validate(); err != nil {
			return fmt.Errorf("issuer %s: %w", i.Name, err)
		}
	}
	return nil
}

// scopes returns the advertised scopes, applying the default.
func (i *Issuer) scopes() []string {
	if len(i.Scopes) > 0 {
		return i.Scopes
	}
	return []string{DefaultScope}
}
