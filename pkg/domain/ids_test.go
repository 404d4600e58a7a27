package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vendry/pkg/domain-errors"
)

func TestParseIDs(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})

	t.Run("session ids share the same invariants", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)

		validUUID := uuid.New()
		id, err := ParseSessionID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, SessionID(validUUID), id)
	})
}

func TestNewIDsAreDistinct(t *testing.T) {
	userID := NewUserID()
	sessionID := NewSessionID()
	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(sessionID))
}
