// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExactRedirectURI is the verbose form of an exact-match redirect rule.
type ExactRedirectURI struct {
	URL string `json:"url" yaml:"url"`

	// IgnoreLocalhostPort ignores the port of the requested URI when the
	// registered host is localhost. This admits native clients that bind
	// a dynamic loopback port without making non-local hosts
	// port-agnostic.
	IgnoreLocalhostPort bool `json:"ignoreLocalhostPort,omitempty" yaml:"ignoreLocalhostPort,omitempty"`
}

// RedirectURIRule describes how a requested redirect URI is compared
// against a registered one. Exactly one of Semantic or Exact is set.
//
// The wire form is either a bare string or a tagged object:
//
//	"http://localhost/callback"
//	semantic: "https://example.com/cb"
//	exact: {url: "https://example.com/cb", ignoreLocalhostPort: true}
//
// A bare string produces an exact rule; when the string's host is exactly
// "localhost" the port-insensitive comparison is selected automatically,
// so terse localhost registrations get the safer policy by default.
type RedirectURIRule struct {
	Semantic string            `json:"semantic,omitempty" yaml:"semantic,omitempty"`
	Exact    *ExactRedirectURI `json:"exact,omitempty" yaml:"exact,omitempty"`
}

// ruleFromString builds the rule produced by the terse (bare string) wire
// form, applying the localhost auto-upgrade.
func ruleFromString(s string) RedirectURIRule {
	ignore := false
	if u, err := url.Parse(s); err == nil && u.Hostname() == "localhost" {
		ignore = true
	}
	return RedirectURIRule{Exact: &ExactRedirectURI{URL: s, IgnoreLocalhostPort: ignore}}
}

// UnmarshalJSON accepts either a bare string or the tagged object form.
func (r *RedirectURIRule) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ruleFromString(s)
		return nil
	}

	type plain RedirectURIRule
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RedirectURIRule(p)
	return nil
}

// MarshalJSON always emits the verbose object form.
func (r RedirectURIRule) MarshalJSON() ([]byte, error) {
	type plain RedirectURIRule
	return json.Marshal(plain(r))
}

// UnmarshalYAML accepts either a bare string or the tagged object form.
func (r *RedirectURIRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*r = ruleFromString(s)
		return nil
	}

	type plain RedirectURIRule
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = RedirectURIRule(p)
	return nil
}

// Validate checks that exactly one variant is set and that URLs parse.
func (r *RedirectURIRule) Validate() error {
	switch {
	case r.Semantic != "" && r.Exact != nil:
		return fmt.Errorf("redirect rule must be either semantic or exact, not both")
	case r.Semantic != "":
		if _, err := url.Parse(r.Semantic); err != nil {
			return fmt.Errorf("invalid semantic redirect URL %q: %w", r.Semantic, err)
		}
	case r.Exact != nil:
		if r.Exact.URL == "" {
			return fmt.Errorf("exact redirect rule requires a url")
		}
		if r.Exact.IgnoreLocalhostPort {
			if _, err := url.Parse(r.Exact.URL); err != nil {
				return fmt.Errorf("invalid exact redirect URL %q: %w", r.Exact.URL, err)
			}
		}
	default:
		return fmt.Errorf("redirect rule requires either semantic or exact")
	}
	return nil
}

// registered returns the raw registered URI, used as the client's
// advertised redirect target.
func (r *RedirectURIRule) registered() string {
	if r.Semantic != "" {
		return r.Semantic
	}
	if r.Exact != nil {
		return r.Exact.URL
	}
	return ""
}

// Matches reports whether the requested redirect URI satisfies this rule.
func (r *RedirectURIRule) Matches(requested string) bool {
	switch {
	case r.Semantic != "":
		return semanticEqual(r.Semantic, requested)
	case r.Exact != nil && r.Exact.IgnoreLocalhostPort:
		return localhostPortInsensitiveEqual(r.Exact.URL, requested)
	case r.Exact != nil:
		return r.Exact.URL == requested
	default:
		return false
	}
}

// semanticEqual compares two URIs after canonicalization: scheme and host
// lowercased, default ports dropped, empty paths treated as "/", query
// parameters re-encoded in sorted order. Fragments are ignored.
func semanticEqual(registered, requested string) bool {
	a, err := url.Parse(registered)
	if err != nil {
		return false
	}
	b, err := url.Parse(requested)
	if err != nil {
		return false
	}
	return canonicalURL(a) == canonicalURL(b)
}

func canonicalURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	query := u.Query().Encode()

	return scheme + "://" + host + path + "?" + query
}

// localhostPortInsensitiveEqual compares the requested URI against the
// registered one, ignoring the requested port when the registered host is
// localhost. For any other host it degrades to exact equality.
func localhostPortInsensitiveEqual(registered, requested string) bool {
	reg, err := url.Parse(registered)
	if err != nil {
		return false
	}
	if !strings.EqualFold(reg.Hostname(), "localhost") {
		return registered == requested
	}

	req, err := url.Parse(requested)
	if err != nil {
		return false
	}
	if !strings.EqualFold(req.Hostname(), "localhost") {
		return false
	}

	// Strip the port from both sides, then compare the rest verbatim.
	reg2 := *reg
	req2 := *req
	reg2.Host = reg.Hostname()
	req2.Host = req.Hostname()

	return reg2.String() == req2.String()
}
