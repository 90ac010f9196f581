// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"
	"time"

	"github.com/ory/fosite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	t.Parallel()

	sess := New("Marvin")
	assert.Equal(t, "Marvin", sess.GetSubject())
	assert.True(t, sess.GetExpiresAt(fosite.AccessToken).IsZero())
}

func TestExtensionBag(t *testing.T) {
	t.Parallel()

	sess := New("Marvin")

	_, ok := sess.Extension("missing")
	assert.False(t, ok)

	sess.SetExtension("some::extension", "payload")
	got, ok := sess.Extension("some::extension")
	require.True(t, ok)
	assert.Equal(t, "payload", got)

	// replacing an entry keeps the latest value
	sess.SetExtension("some::extension", "other")
	got, _ = sess.Extension("some::extension")
	assert.Equal(t, "other", got)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	sess := New("Marvin")
	sess.SetExtension("some::extension", "payload")
	sess.SetExpiresAt(fosite.AccessToken, time.Now().Add(time.Hour))

	clone, ok := sess.Clone().(*Session)
	require.True(t, ok)

	assert.Equal(t, "Marvin", clone.GetSubject())
	got, ok := clone.Extension("some::extension")
	require.True(t, ok)
	assert.Equal(t, "payload", got)
	assert.False(t, clone.GetExpiresAt(fosite.AccessToken).IsZero())

	// mutating the clone's bag must not alias the original
	clone.SetExtension("some::extension", "changed")
	got, _ = sess.Extension("some::extension")
	assert.Equal(t, "payload", got)
}

func TestFromRequester(t *testing.T) {
	t.Parallel()

	sess := New("Marvin")
	req := fosite.NewRequest()
	req.Session = sess

	assert.Same(t, sess, FromRequester(req))

	req.Session = &fosite.DefaultSession{}
	assert.Nil(t, FromRequester(req))

	assert.Nil(t, FromRequester(nil))
}
