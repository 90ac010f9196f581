// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	pathpkg "path"
	"sort"
	"sync"
	"time"

	"github.com/ory/fosite"
	"github.com/ory/fosite/compose"

	"github.com/ctron/garage-door/internal/issuer/keys"
	"github.com/ctron/garage-door/internal/issuer/storage"
	"github.com/ctron/garage-door/internal/issuer/token"
	"github.com/ctron/garage-door/internal/logger"
)

// Token lifespans applied to every tenant.
const (
	AccessTokenLifespan   = time.Hour
	AuthorizeCodeLifespan = 10 * time.Minute
	RefreshTokenLifespan  = 7 * 24 * time.Hour
)

// globalSecretLength is the size of the per-tenant HMAC secret protecting
// authorization codes and refresh tokens. The engine requires at least 32
// bytes.
const globalSecretLength = 32

// State is the runtime form of one tenant: its registered clients, signing
// key, grant bookkeeping and grant engine. It is built once at startup and
// never reconfigured.
//
// Reads (name, path, scopes, registrar, key) are immutable and safe from
// any goroutine. Grant operations mutate the tenant's bookkeeping and must
// run under WithExclusive.
type State struct {
	name      string
	path      string
	scopes    []string
	registrar *Registrar
	key       *keys.Key
	store     *storage.Store
	provider  fosite.OAuth2Provider
	idTokens  *token.IDTokenGenerator

	// mu serializes grant-mutating operations within this tenant.
	// Tenants never share a lock, so load on one tenant cannot stall
	// another.
	mu sync.Mutex
}

// Name returns the tenant name.
func (s *State) Name() string {
	return s.name
}

// Path returns the tenant's issuer path (global base path joined with the
// tenant name). The issuer URL is this path prefixed with the per-request
// scheme and host.
func (s *State) Path() string {
	return s.path
}

// Scopes returns the scopes advertised by this tenant.
func (s *State) Scopes() []string {
	return s.scopes
}

// Registrar returns the tenant's client registrar.
func (s *State) Registrar() *Registrar {
	return s.registrar
}

// Key returns the tenant's signing key.
func (s *State) Key() *keys.Key {
	return s.key
}

// IDTokens returns the tenant's ID-token generator.
func (s *State) IDTokens() *token.IDTokenGenerator {
	return s.idTokens
}

// Provider returns the tenant's grant engine for parsing requests and
// writing responses. Any call that creates or consumes grants must run
// under WithExclusive instead.
func (s *State) Provider() fosite.OAuth2Provider {
	return s.provider
}

// WithExclusive runs fn with exclusive access to the tenant's grant
// engine. The lock is held for the duration of fn and released on every
// exit path. fn must not perform blocking I/O.
func (s *State) WithExclusive(fn func(provider fosite.OAuth2Provider) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.provider)
}

// build consumes the issuer configuration and produces the tenant state.
func (i *Issuer) build(basePath string) (*State, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}

	registrar, err := NewRegistrar(i.Clients)
	if err != nil {
		return nil, fmt.Errorf("issuer %s: %w", i.Name, err)
	}

	key, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("issuer %s: %w", i.Name, err)
	}

	issuerPath := pathpkg.Join("/", basePath, i.Name)

	store := storage.NewStore()
	for _, client := range registrar.All() {
		if err := store.RegisterClient(context.Background(), client); err != nil {
			return nil, fmt.Errorf("issuer %s: failed to register client %s: %w", i.Name, client.GetID(), err)
		}
	}

	globalSecret := make([]byte, globalSecretLength)
	if _, err := rand.Read(globalSecret); err != nil {
		return nil, fmt.Errorf("issuer %s: failed to generate secret: %w", i.Name, err)
	}

	config := &fosite.Config{
		AccessTokenLifespan:   AccessTokenLifespan,
		AuthorizeCodeLifespan: AuthorizeCodeLifespan,
		RefreshTokenLifespan:  RefreshTokenLifespan,
		GlobalSecret:          globalSecret,
		ScopeStrategy:         fosite.ExactScopeStrategy,

		// Refresh tokens are issued with every grant, not gated on an
		// offline scope.
		RefreshTokenScopes: []string{},

		// Redirect URIs are validated against the tenant's own rules
		// before a request ever reaches the engine.
		RedirectSecureChecker: func(context.Context, *url.URL) bool { return true },
	}

	strategy, err := token.NewStrategy(compose.NewOAuth2HMACStrategy(config), key, issuerPath)
	if err != nil {
		return nil, fmt.Errorf("issuer %s: %w", i.Name, err)
	}

	provider := compose.Compose(
		config,
		store,
		&compose.CommonStrategy{CoreStrategy: strategy},
		compose.OAuth2AuthorizeExplicitFactory,
		compose.OAuth2ClientCredentialsGrantFactory,
		compose.OAuth2RefreshTokenGrantFactory,
	)

	return &State{
		name:      i.Name,
		path:      issuerPath,
		scopes:    i.scopes(),
		registrar: registrar,
		key:       key,
		store:     store,
		provider:  provider,
		idTokens:  token.NewIDTokenGenerator(key),
	}, nil
}

// Registry holds all tenants, keyed by name. It is immutable after
// construction and safe for concurrent lookups.
type Registry struct {
	states map[string]*State
}

// NewRegistry builds the tenant states from configuration. basePath is the
// global path prefix under which all tenants are served. Construction
// fails on the first invalid issuer and on duplicate names.
func NewRegistry(issuers []Issuer, basePath string) (*Registry, error) {
	states := make(map[string]*State, len(issuers))

	for idx := range issuers {
		state, err := issuers[idx].build(basePath)
		if err != nil {
			return nil, err
		}

		if _, exists := states[state.name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIssuer, state.name)
		}
		states[state.name] = state

		logger.Infow("configured issuer", "name", state.name, "path", state.path, "clients", len(state.registrar.clients))
	}

	return &Registry{states: states}, nil
}

// Lookup returns the tenant with the given name.
func (r *Registry) Lookup(name string) (*State, bool) {
	state, ok := r.states[name]
	return state, ok
}

// Names returns all tenant names, sorted for stable enumeration.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.states))
	for name := range r.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
