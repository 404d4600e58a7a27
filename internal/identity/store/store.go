// Package store defines the persistence contracts for identity records and
// their adapters. Stores are interface-driven so business logic stays
// testable and storage technology stays swappable: in-memory for tests and
// single-process deployments, Redis or Postgres for shared state.
//
// Missing records surface as sentinel.ErrNotFound (optionally wrapped);
// services translate them into domain errors.
package store

import (
	"context"

	"vendry/internal/identity/models"
	id "vendry/pkg/domain"
)

// ProfileStore owns AuthProfile records. Save rewrites the whole value;
// there are no partial-field writes, which keeps concurrent writers from
// interleaving read-modify-write races at the field level.
type ProfileStore interface {
	Load(ctx context.Context, userID id.UserID) (models.AuthProfile, error)
	Save(ctx context.Context, profile models.AuthProfile) error
	Delete(ctx context.Context, userID id.UserID) error
	// FindByContact resolves a profile by email or phone, for OTP login.
	FindByContact(ctx context.Context, contact string) (models.AuthProfile, error)
}

// SessionStore owns session records.
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// ActiveModeStore remembers the last explicitly chosen acting mode. Absent
// records mean the default (customer).
type ActiveModeStore interface {
	Save(ctx context.Context, userID id.UserID, mode models.ActiveMode) error
	Load(ctx context.Context, userID id.UserID) (models.ActiveMode, error)
	Delete(ctx context.Context, userID id.UserID) error
}

// OTPStore holds transient contact-verification requests keyed by contact.
type OTPStore interface {
	Save(ctx context.Context, pending models.OTPPending) error
	Find(ctx context.Context, contact string) (models.OTPPending, error)
	Delete(ctx context.Context, contact string) error
}
