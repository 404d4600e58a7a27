package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"vendry/internal/identity/models"
	id "vendry/pkg/domain"
	"vendry/pkg/platform/sentinel"
	"vendry/pkg/platform/tx"
)

// PostgresProfileStore persists profiles in PostgreSQL. The row mirrors the
// whole-value contract: every save is a full upsert, the onboarding state
// (including the draft) rides along as one JSONB column.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS profiles (
//	    id          UUID PRIMARY KEY,
//	    email       TEXT NOT NULL DEFAULT '',
//	    phone       TEXT NOT NULL DEFAULT '',
//	    name        TEXT NOT NULL DEFAULT '',
//	    role        TEXT NOT NULL DEFAULT '',
//	    active_role TEXT NOT NULL DEFAULT 'customer',
//	    onboarding  JSONB NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX IF NOT EXISTS profiles_email_idx ON profiles (email) WHERE email <> '';
//	CREATE INDEX IF NOT EXISTS profiles_phone_idx ON profiles (phone) WHERE phone <> '';
type PostgresProfileStore struct {
	db *sql.DB
}

// NewPostgresDB opens a database/sql pool over the pgx driver.
func NewPostgresDB(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the context's transaction when one is present so callers can
// group profile writes with other statements, and the pool otherwise.
func (s *PostgresProfileStore) conn(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresProfileStore) Load(ctx context.Context, userID id.UserID) (models.AuthProfile, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, email, phone, name, role, active_role, onboarding, created_at, updated_at
		FROM profiles WHERE id = $1`, userID.String())
	return scanProfile(row)
}

func (s *PostgresProfileStore) Save(ctx context.Context, profile models.AuthProfile) error {
	onboarding, err := json.Marshal(profile.Onboarding)
	if err != nil {
		return fmt.Errorf("encode onboarding state: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO profiles (id, email, phone, name, role, active_role, onboarding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			active_role = EXCLUDED.active_role,
			onboarding = EXCLUDED.onboarding,
			updated_at = EXCLUDED.updated_at`,
		profile.ID.String(), profile.Email, profile.Phone, profile.Name,
		string(profile.Role), string(profile.ActiveRole), onboarding,
		profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *PostgresProfileStore) Delete(ctx context.Context, userID id.UserID) error {
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func (s *PostgresProfileStore) FindByContact(ctx context.Context, contact string) (models.AuthProfile, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, email, phone, name, role, active_role, onboarding, created_at, updated_at
		FROM profiles WHERE (email = $1 AND email <> '') OR (phone = $1 AND phone <> '')
		LIMIT 1`, contact)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (models.AuthProfile, error) {
	var (
		profile    models.AuthProfile
		rawID      string
		role       string
		activeRole string
		onboarding []byte
	)
	err := row.Scan(&rawID, &profile.Email, &profile.Phone, &profile.Name,
		&role, &activeRole, &onboarding, &profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AuthProfile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AuthProfile{}, fmt.Errorf("scan profile: %w", err)
	}
	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return models.AuthProfile{}, fmt.Errorf("corrupt profile id: %w", err)
	}
	profile.ID = userID
	profile.Role = models.Role(role)
	profile.ActiveRole = models.ActiveMode(activeRole)
	if err := json.Unmarshal(onboarding, &profile.Onboarding); err != nil {
		return models.AuthProfile{}, fmt.Errorf("decode onboarding state: %w", err)
	}
	return profile, nil
}
