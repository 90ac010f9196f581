// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctron/garage-door/internal/issuer"
	"github.com/ctron/garage-door/internal/oidc"
)

func testIssuers() []issuer.Issuer {
	return []issuer.Issuer{{
		Name:   "demo",
		Scopes: []string{"openid", "profile"},
		Clients: []issuer.Client{
			{Confidential: &issuer.ConfidentialClient{ID: "service", Secret: "hush"}},
			{Public: &issuer.PublicClient{
				ID: "spa",
				RedirectURLs: []issuer.RedirectURIRule{
					{Exact: &issuer.ExactRedirectURI{URL: "http://localhost/cb", IgnoreLocalhostPort: true}},
					{Semantic: "https://example.com/cb"},
				},
			}},
		},
	}}
}

func testRegistry(t *testing.T) *issuer.Registry {
	t.Helper()

	registry, err := issuer.NewRegistry(testIssuers(), "")
	require.NoError(t, err)
	return registry
}

func testRouter(t *testing.T) (http.Handler, *issuer.Registry) {
	t.Helper()

	registry := testRegistry(t)
	return New(registry, Options{}).Router(), registry
}

func do(t *testing.T, router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHello(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)
	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())
}

func TestIssuerEnumeration(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)
	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/issuers", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"demo"}, names)
}

func TestIssuerEcho(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)
	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/demo", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Issuer: demo", rec.Body.String())
}

func TestUnknownIssuer(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	paths := []string{
		"/missing",
		"/missing/.well-known/openid-configuration",
		"/missing/keys",
		"/missing/userinfo",
		"/missing/logout",
	}

	for _, path := range paths {
		path := path
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080"+path, nil))
			require.Equal(t, http.StatusNotFound, rec.Code)

			var body ErrorInformation
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UnknownIssuer", body.Error)
			assert.Contains(t, body.Message, "missing")
		})
	}
}

func TestDiscovery(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)
	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/demo/.well-known/openid-configuration", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var doc oidc.ProviderMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	assert.Equal(t, "http://localhost:8080/demo", doc.Issuer)
	assert.Equal(t, "http://localhost:8080/demo/auth", doc.AuthorizationEndpoint)
	assert.Equal(t, "http://localhost:8080/demo/token", doc.TokenEndpoint)
	assert.Equal(t, "http://localhost:8080/demo/keys", doc.JWKSURI)
	assert.Equal(t, "http://localhost:8080/demo/userinfo", doc.UserinfoEndpoint)
	assert.Equal(t, [][]string{{"token"}}, doc.ResponseTypesSupported)
	assert.Equal(t, []string{"public"}, doc.SubjectTypesSupported)
	assert.Equal(t, []string{"openid", "profile"}, doc.ScopesSupported)
	assert.Equal(t, []string{"client_credentials", "authorization_code"}, doc.GrantTypesSupported)
	assert.Equal(t, []string{"client_secret_basic", "client_secret_post"}, doc.TokenEndpointAuthMethodsSupported)
}

func TestDiscoveryReflectsForwardedHost(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	req := httptest.NewRequest("GET", "http://localhost:8080/demo/.well-known/openid-configuration", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "sso.example.com")

	rec := do(t, router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc oidc.ProviderMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "https://sso.example.com/demo", doc.Issuer)
}

func TestKeysEndpointIsEmpty(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)
	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/demo/keys", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, `[]`, string(body["keys"]))
}

func TestUserinfo(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	for _, method := range []string{"GET", "POST"} {
		rec := do(t, router, httptest.NewRequest(method, "http://localhost:8080/demo/userinfo", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var info oidc.UserInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "Marvin", info.Subject)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/demo/logout?post_logout_redirect_uri=http://localhost/done", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "http://localhost/done", rec.Header().Get("Location"))

	rec = do(t, router, httptest.NewRequest("GET", "http://localhost:8080/demo/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBasePathMount(t *testing.T) {
	t.Parallel()

	registry, err := issuer.NewRegistry(testIssuers(), "oidc")
	require.NoError(t, err)

	router := New(registry, Options{BasePath: "oidc"}).Router()

	rec := do(t, router, httptest.NewRequest("GET", "http://localhost:8080/oidc/demo/.well-known/openid-configuration", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc oidc.ProviderMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "http://localhost:8080/oidc/demo", doc.Issuer)

	rec = do(t, router, httptest.NewRequest("GET", "http://localhost:8080/demo", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	req := httptest.NewRequest("OPTIONS", "http://localhost:8080/demo/token", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	rec := do(t, router, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
