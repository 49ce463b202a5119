package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerRoundTrip(t *testing.T) {
	owner := uuid.New()
	tok, err := NewAccessToken(owner, "host@example.com", RoleOwner, "secret", time.Minute)
	require.NoError(t, err)

	caller, err := CallerFromToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, owner, caller.OwnerID)
	assert.Equal(t, "host@example.com", caller.Email)
	assert.True(t, caller.Owns(owner))
	assert.False(t, caller.Owns(uuid.New()))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := NewAccessToken(uuid.New(), "", RoleOwner, "secret", time.Minute)
	require.NoError(t, err)

	_, err = Parse(tok, "other")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	tok, err := NewAccessToken(uuid.New(), "", RoleOwner, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = CallerFromToken(tok, "secret")
	assert.Error(t, err)
}

func TestZeroCallerOwnsNothing(t *testing.T) {
	assert.False(t, Caller{}.Owns(uuid.Nil))
}
