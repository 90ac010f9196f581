// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import (
	"testing"

	"github.com/ory/fosite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func TestClientValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		client  Client
		wantErr bool
	}{
		{
			name:   "confidential",
			client: Client{Confidential: &ConfidentialClient{ID: "service", Secret: "hush"}},
		},
		{
			name: "public",
			client: Client{Public: &PublicClient{
				ID:           "spa",
				RedirectURLs: []RedirectURIRule{{Semantic: "https://example.com/cb"}},
			}},
		},
		{name: "empty", client: Client{}, wantErr: true},
		{
			name: "both variants",
			client: Client{
				Confidential: &ConfidentialClient{ID: "a", Secret: "s"},
				Public:       &PublicClient{ID: "b", RedirectURLs: []RedirectURIRule{{Semantic: "https://x"}}},
			},
			wantErr: true,
		},
		{
			name:    "confidential without secret",
			client:  Client{Confidential: &ConfidentialClient{ID: "service"}},
			wantErr: true,
		},
		{
			name:    "public without redirect URIs",
			client:  Client{Public: &PublicClient{ID: "spa"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.client.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPublicClientRequiresRedirectURI(t *testing.T) {
	t.Parallel()

	_, err := NewRegistrar([]Client{{Public: &PublicClient{ID: "spa"}}})
	require.ErrorIs(t, err, ErrMissingRedirectURI)
}

func TestBuildConfidentialClient(t *testing.T) {
	t.Parallel()

	registrar, err := NewRegistrar([]Client{
		{Confidential: &ConfidentialClient{ID: "service", Secret: "hush"}},
	})
	require.NoError(t, err)

	client, ok := registrar.Lookup("service")
	require.True(t, ok)

	assert.False(t, client.IsPublic())
	assert.Equal(t, fosite.Arguments{DefaultScope}, client.GetScopes())
	assert.Contains(t, client.GetGrantTypes(), "client_credentials")
	assert.Empty(t, client.GetRedirectURIs())

	// the stored secret is a bcrypt digest of the configured one
	assert.NoError(t, bcrypt.CompareHashAndPassword(client.GetHashedSecret(), []byte("hush")))
}

func TestBuildPublicClient(t *testing.T) {
	t.Parallel()

	registrar, err := NewRegistrar([]Client{
		{Public: &PublicClient{
			ID:           "spa",
			DefaultScope: "profile",
			RedirectURLs: []RedirectURIRule{
				{Exact: &ExactRedirectURI{URL: "http://localhost/cb", IgnoreLocalhostPort: true}},
				{Semantic: "https://example.com/cb"},
			},
		}},
	})
	require.NoError(t, err)

	client, ok := registrar.Lookup("spa")
	require.True(t, ok)

	assert.True(t, client.IsPublic())
	assert.Equal(t, fosite.Arguments{"profile"}, client.GetScopes())
	assert.Contains(t, client.GetGrantTypes(), "authorization_code")
	assert.Equal(t, []string{"http://localhost/cb", "https://example.com/cb"}, client.GetRedirectURIs())

	// any rule in the list admits the requested URI
	assert.True(t, client.MatchRedirectURI("http://localhost:39000/cb"))
	assert.True(t, client.MatchRedirectURI("https://example.com/cb#frag"))
	assert.False(t, client.MatchRedirectURI("https://evil.example.com/cb"))
}

func TestConfidentialClientMatchesNoRedirectURI(t *testing.T) {
	t.Parallel()

	registrar, err := NewRegistrar([]Client{
		{Confidential: &ConfidentialClient{ID: "service", Secret: "hush"}},
	})
	require.NoError(t, err)

	client, _ := registrar.Lookup("service")
	assert.False(t, client.MatchRedirectURI("https://example.com/cb"))
}

func TestValidateRedirectURI(t *testing.T) {
	t.Parallel()

	registrar, err := NewRegistrar([]Client{
		{Public: &PublicClient{
			ID:           "spa",
			RedirectURLs: []RedirectURIRule{{Semantic: "https://example.com/cb"}},
		}},
	})
	require.NoError(t, err)

	assert.NoError(t, registrar.ValidateRedirectURI("spa", "https://example.com/cb"))
	assert.Error(t, registrar.ValidateRedirectURI("spa", "https://other.example.com/cb"))
	assert.Error(t, registrar.ValidateRedirectURI("unknown", "https://example.com/cb"))
}

func TestClientUnmarshalYAML(t *testing.T) {
	t.Parallel()

	var clients []Client
	require.NoError(t, yaml.Unmarshal([]byte(`
- confidential:
    id: service
    secret: hush
- public:
    id: spa
    defaultScope: profile
    redirectUrls:
      - "http://localhost/cb"
`), &clients))

	require.Len(t, clients, 2)
	require.NotNil(t, clients[0].Confidential)
	assert.Equal(t, "service", clients[0].Confidential.ID)
	require.NotNil(t, clients[1].Public)
	assert.Equal(t, "profile", clients[1].Public.DefaultScope)
	require.Len(t, clients[1].Public.RedirectURLs, 1)
	require.NotNil(t, clients[1].Public.RedirectURLs[0].Exact)
	assert.True(t, clients[1].Public.RedirectURLs[0].Exact.IgnoreLocalhostPort)
}
