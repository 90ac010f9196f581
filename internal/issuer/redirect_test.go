// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSemanticMatching(t *testing.T) {
	t.Parallel()

	rule := RedirectURIRule{Semantic: "https://Example.COM:443/cb"}

	tests := []struct {
		name      string
		requested string
		want      bool
	}{
		{name: "identical", requested: "https://Example.COM:443/cb", want: true},
		{name: "case and default port normalized", requested: "https://example.com/cb", want: true},
		{name: "fragment ignored", requested: "https://example.com/cb#state", want: true},
		{name: "different path", requested: "https://example.com/other", want: false},
		{name: "different port", requested: "https://example.com:8443/cb", want: false},
		{name: "different scheme", requested: "http://example.com/cb", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rule.Matches(tt.requested))
		})
	}
}

func TestSemanticMatchingQueryOrder(t *testing.T) {
	t.Parallel()

	rule := RedirectURIRule{Semantic: "https://example.com/cb?a=1&b=2"}

	assert.True(t, rule.Matches("https://example.com/cb?b=2&a=1"))
	assert.False(t, rule.Matches("https://example.com/cb?a=1&b=3"))
}

func TestExactMatching(t *testing.T) {
	t.Parallel()

	rule := RedirectURIRule{Exact: &ExactRedirectURI{URL: "https://example.com/cb"}}

	assert.True(t, rule.Matches("https://example.com/cb"))
	// byte equality, no normalization
	assert.False(t, rule.Matches("https://example.com/cb/"))
	assert.False(t, rule.Matches("https://EXAMPLE.com/cb"))
	assert.False(t, rule.Matches("https://example.com:443/cb"))
}

func TestLocalhostPortInsensitiveMatching(t *testing.T) {
	t.Parallel()

	rule := RedirectURIRule{Exact: &ExactRedirectURI{URL: "http://localhost/cb", IgnoreLocalhostPort: true}}

	assert.True(t, rule.Matches("http://localhost/cb"))
	assert.True(t, rule.Matches("http://localhost:8080/cb"))
	assert.True(t, rule.Matches("http://localhost:41999/cb"))
	assert.False(t, rule.Matches("http://localhost:8080/other"))
	assert.False(t, rule.Matches("http://127.0.0.1:8080/cb"))
	assert.False(t, rule.Matches("https://localhost:8080/cb"))
}

func TestNonLocalhostNeverPortInsensitive(t *testing.T) {
	t.Parallel()

	// The flag set on a non-localhost host degrades to exact matching.
	rule := RedirectURIRule{Exact: &ExactRedirectURI{URL: "https://example.com/cb", IgnoreLocalhostPort: true}}

	assert.True(t, rule.Matches("https://example.com/cb"))
	assert.False(t, rule.Matches("https://example.com:8443/cb"))
}

func TestBareStringAutoUpgrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantIgnore bool
	}{
		{name: "localhost upgraded", input: `"http://localhost/cb"`, wantIgnore: true},
		{name: "localhost with port upgraded", input: `"http://localhost:3000/cb"`, wantIgnore: true},
		{name: "loopback ip not upgraded", input: `"http://127.0.0.1/cb"`, wantIgnore: false},
		{name: "subdomain not upgraded", input: `"http://localhost.example.com/cb"`, wantIgnore: false},
		{name: "remote host not upgraded", input: `"https://example.com/cb"`, wantIgnore: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var rule RedirectURIRule
			require.NoError(t, json.Unmarshal([]byte(tt.input), &rule))
			require.NotNil(t, rule.Exact)
			assert.Equal(t, tt.wantIgnore, rule.Exact.IgnoreLocalhostPort)
		})
	}
}

func TestRuleUnmarshalVerboseForms(t *testing.T) {
	t.Parallel()

	var rule RedirectURIRule
	require.NoError(t, json.Unmarshal([]byte(`{"semantic": "https://example.com/cb"}`), &rule))
	assert.Equal(t, "https://example.com/cb", rule.Semantic)
	assert.Nil(t, rule.Exact)

	rule = RedirectURIRule{}
	require.NoError(t, json.Unmarshal([]byte(`{"exact": {"url": "http://localhost", "ignoreLocalhostPort": true}}`), &rule))
	require.NotNil(t, rule.Exact)
	assert.Equal(t, "http://localhost", rule.Exact.URL)
	assert.True(t, rule.Exact.IgnoreLocalhostPort)
}

func TestRuleUnmarshalYAML(t *testing.T) {
	t.Parallel()

	var rules []RedirectURIRule
	require.NoError(t, yaml.Unmarshal([]byte(`
- "http://localhost/cb"
- semantic: "https://example.com/cb"
- exact:
    url: "https://example.com/cb2"
`), &rules))

	require.Len(t, rules, 3)
	require.NotNil(t, rules[0].Exact)
	assert.True(t, rules[0].Exact.IgnoreLocalhostPort)
	assert.Equal(t, "https://example.com/cb", rules[1].Semantic)
	require.NotNil(t, rules[2].Exact)
	assert.False(t, rules[2].Exact.IgnoreLocalhostPort)
}

func TestRuleValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    RedirectURIRule
		wantErr bool
	}{
		{name: "semantic", rule: RedirectURIRule{Semantic: "https://example.com/cb"}},
		{name: "exact", rule: RedirectURIRule{Exact: &ExactRedirectURI{URL: "https://example.com/cb"}}},
		{name: "empty", rule: RedirectURIRule{}, wantErr: true},
		{name: "both set", rule: RedirectURIRule{Semantic: "https://a", Exact: &ExactRedirectURI{URL: "https://b"}}, wantErr: true},
		{name: "exact without url", rule: RedirectURIRule{Exact: &ExactRedirectURI{}}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
