// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import (
	"fmt"

	"github.com/ory/fosite"
	"golang.org/x/crypto/bcrypt"
)

// DefaultScope is granted to a client when its configuration names none.
const DefaultScope = "openid"

// ConfidentialClient authenticates with a shared secret and carries no
// redirect URIs. It is meant for the client-credentials flow.
type ConfidentialClient struct {
	ID           string `json:"id" yaml:"id"`
	Secret       string `json:"secret" yaml:"secret"`
	DefaultScope string `json:"defaultScope,omitempty" yaml:"defaultScope,omitempty"`
}

// PublicClient has no secret and authenticates its redirect target instead:
// the redirect URI of every authorization request must satisfy at least one
// of the registered rules.
type PublicClient struct {
	ID           string            `json:"id" yaml:"id"`
	RedirectURLs []RedirectURIRule `json:"redirectUrls" yaml:"redirectUrls"`
	DefaultScope string            `json:"defaultScope,omitempty" yaml:"defaultScope,omitempty"`
}

// Client is the externally tagged union of the two client kinds. Exactly
// one of the fields is set:
//
//	confidential: {id: service, secret: hush}
//	public: {id: spa, redirectUrls: ["http://localhost/callback"]}
type Client struct {
	Confidential *ConfidentialClient `json:"confidential,omitempty" yaml:"confidential,omitempty"`
	Public       *PublicClient       `json:"public,omitempty" yaml:"public,omitempty"`
}

// Validate checks that exactly one variant is set and the variant itself is
// well formed.
func (c *Client) Validate() error {
	switch {
	case c.Confidential != nil && c.Public != nil:
		return fmt.Errorf("client must be either confidential or public, not both")
	case c.Confidential != nil:
		if c.Confidential.ID == "" {
			return fmt.Errorf("confidential client requires an id")
		}
		if c.Confidential.Secret == "" {
			return fmt.Errorf("confidential client %s requires a secret", c.Confidential.ID)
		}
	case c.Public != nil:
		if c.Public.ID == "" {
			return fmt.Errorf("public client requires an id")
		}
		if len(c.Public.RedirectURLs) == 0 {
			return fmt.Errorf("public client %s: %w", c.Public.ID, ErrMissingRedirectURI)
		}
		for i := range c.Public.RedirectURLs {
			if err := c.Public.RedirectURLs[i].Validate(); err != nil {
				return fmt.Errorf("public client %s: %w", c.Public.ID, err)
			}
		}
	default:
		return fmt.Errorf("client requires either confidential or public")
	}
	return nil
}

// RegisteredClient is one client as seen by the grant engine, paired with
// the redirect rules used for pre-validation of authorization requests.
type RegisteredClient struct {
	*fosite.DefaultClient

	redirectRules []RedirectURIRule
}

// MatchRedirectURI reports whether the requested redirect URI satisfies any
// of the client's registered rules. Confidential clients register no rules
// and therefore never match.
func (c *RegisteredClient) MatchRedirectURI(requested string) bool {
	for i := range c.redirectRules {
		if c.redirectRules[i].Matches(requested) {
			return true
		}
	}
	return false
}

// buildClient turns one configured client into its engine representation.
// Secrets are stored bcrypt-hashed, matching the engine's default hasher.
func buildClient(c *Client) (*RegisteredClient, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch {
	case c.Confidential != nil:
		scope := c.Confidential.DefaultScope
		if scope == "" {
			scope = DefaultScope
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(c.Confidential.Secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash secret of client %s: %w", c.Confidential.ID, err)
		}

		return &RegisteredClient{
			DefaultClient: &fosite.DefaultClient{
				ID:         c.Confidential.ID,
				Secret:     hashed,
				GrantTypes: []string{"client_credentials", "refresh_token"},
				Scopes:     []string{scope},
			},
		}, nil

	default:
		scope := c.Public.DefaultScope
		if scope == "" {
			scope = DefaultScope
		}

		registered := make([]string, 0, len(c.Public.RedirectURLs))
		for i := range c.Public.RedirectURLs {
			registered = append(registered, c.Public.RedirectURLs[i].registered())
		}

		return &RegisteredClient{
			DefaultClient: &fosite.DefaultClient{
				ID:            c.Public.ID,
				RedirectURIs:  registered,
				GrantTypes:    []string{"authorization_code", "refresh_token"},
				ResponseTypes: []string{"code"},
				Scopes:        []string{scope},
				Public:        true,
			},
			redirectRules: c.Public.RedirectURLs,
		}, nil
	}
}

// Registrar holds the registered clients of one tenant, keyed by client id.
type Registrar struct {
	clients map[string]*RegisteredClient
}

// NewRegistrar builds a Registrar from the configured client list.
func NewRegistrar(clients []Client) (*Registrar, error) {
	r := &Registrar{clients: make(map[string]*RegisteredClient, len(clients))}

	for i := range clients {
		client, err := buildClient(&clients[i])
		if err != nil {
			return nil, err
		}
		r.clients[client.GetID()] = client
	}

	return r, nil
}

// Lookup returns the registered client for the given id.
func (r *Registrar) Lookup(id string) (*RegisteredClient, bool) {
	client, ok := r.clients[id]
	return client, ok
}

// All returns the registered clients in unspecified order.
func (r *Registrar) All() []*RegisteredClient {
	all := make([]*RegisteredClient, 0, len(r.clients))
	for _, client := range r.clients {
		all = append(all, client)
	}
	return all
}

// ValidateRedirectURI checks a caller-supplied redirect URI against the
// registered rules of the given client.
func (r *Registrar) ValidateRedirectURI(clientID, requested string) error {
	client, ok := r.Lookup(clientID)
	if !ok {
		return fmt.Errorf("unknown client: %s", clientID)
	}
	if !client.MatchRedirectURI(requested) {
		return fmt.Errorf("redirect URI not registered for client %s", clientID)
	}
	return nil
}
