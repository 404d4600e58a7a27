// Package domain holds domain primitives shared across features: typed
// identifiers with parse-time invariants. Distinct ID types keep user and
// session identifiers from being swapped at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "vendry/pkg/domain-errors"
)

// UserID identifies an AuthProfile.
type UserID uuid.UUID

// SessionID identifies an authentication session.
type SessionID uuid.UUID

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewUserID mints a fresh user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewSessionID mints a fresh session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseUserID validates a string at the trust boundary. IDs must be valid,
// non-empty, non-nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseSessionID validates a string at the trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, "id is not a valid uuid", err)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil uuid")
	}
	return u, nil
}
