// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package keys holds the signing-key identity used by one tenant.
package keys

import (
	"crypto/rand"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// SecretLength is the size of generated signing secrets in bytes.
const SecretLength = 32

// Key is a tenant signing key: an identifier, the raw symmetric secret and
// a fixed HS256 algorithm. It is created when the tenant is built and lives
// for the process lifetime.
type Key struct {
	id     string
	secret []byte
}

// New creates a Key from an id and raw secret bytes. An empty secret is
// rejected: it would degrade the token signature to nothing, which must
// never happen in a deployed configuration.
func New(id string, secret []byte) (*Key, error) {
	if id == "" {
		return nil, fmt.Errorf("key id is required")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("key %s: empty signing secret", id)
	}
	return &Key{id: id, secret: secret}, nil
}

// Generate creates a Key with a random id and secret.
func Generate() (*Key, error) {
	secret := make([]byte, SecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return New(uuid.NewString(), secret)
}

// ID returns the key identifier, carried as "kid" in token headers.
func (k *Key) ID() string {
	return k.id
}

// Secret returns the raw secret bytes.
func (k *Key) Secret() []byte {
	return k.secret
}

// Algorithm returns the signing algorithm. Symmetric HMAC-SHA-256 in the
// current design; the Key type is the extension point for asymmetric keys.
func (*Key) Algorithm() jose.SignatureAlgorithm {
	return jose.HS256
}

// JWK returns the key as a JSON Web Key, the shape the signer and any
// published key material work with. Note that go-jose does not copy a
// symmetric JWK's key id into token headers; signers set "kid" themselves.
func (k *Key) JWK() *jose.JSONWebKey {
	return &jose.JSONWebKey{
		Key:       k.secret,
		KeyID:     k.id,
		Algorithm: string(k.Algorithm()),
		Use:       "sig",
	}
}
