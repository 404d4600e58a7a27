package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vendry/internal/identity/models"
	id "vendry/pkg/domain"
	"vendry/pkg/platform/sentinel"
)

// Redis key prefixes. These are the stable persisted-record addresses; other
// deployments (browser clients, tooling) rely on them.
const (
	profileKeyPrefix    = "auth.profile:"
	sessionKeyPrefix    = "auth.session:"
	activeModeKeyPrefix = "auth.activeMode:"
	otpPendingKeyPrefix = "auth.otpPending:"
	contactIndexPrefix  = "auth.contact:"
)

// RedisProfileStore persists whole-profile JSON values. This is the
// production-recommended adapter when multiple instances share state.
type RedisProfileStore struct {
	client *redis.Client
}

func NewRedisProfileStore(client *redis.Client) *RedisProfileStore {
	return &RedisProfileStore{client: client}
}

func (s *RedisProfileStore) Load(ctx context.Context, userID id.UserID) (models.AuthProfile, error) {
	raw, err := s.client.Get(ctx, profileKeyPrefix+userID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AuthProfile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AuthProfile{}, fmt.Errorf("load profile: %w", err)
	}
	var profile models.AuthProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return models.AuthProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (s *RedisProfileStore) Save(ctx context.Context, profile models.AuthProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	// Whole-value write plus contact index entries, atomically.
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, profileKeyPrefix+profile.ID.String(), raw, 0)
	if profile.Email != "" {
		pipe.Set(ctx, contactIndexPrefix+profile.Email, profile.ID.String(), 0)
	}
	if profile.Phone != "" {
		pipe.Set(ctx, contactIndexPrefix+profile.Phone, profile.ID.String(), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *RedisProfileStore) Delete(ctx context.Context, userID id.UserID) error {
	profile, err := s.Load(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, profileKeyPrefix+userID.String())
	if profile.Email != "" {
		pipe.Del(ctx, contactIndexPrefix+profile.Email)
	}
	if profile.Phone != "" {
		pipe.Del(ctx, contactIndexPrefix+profile.Phone)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func (s *RedisProfileStore) FindByContact(ctx context.Context, contact string) (models.AuthProfile, error) {
	raw, err := s.client.Get(ctx, contactIndexPrefix+contact).Result()
	if errors.Is(err, redis.Nil) {
		return models.AuthProfile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AuthProfile{}, fmt.Errorf("lookup contact: %w", err)
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return models.AuthProfile{}, fmt.Errorf("corrupt contact index: %w", err)
	}
	return s.Load(ctx, userID)
}

// RedisSessionStore persists sessions with a TTL matching their expiry.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, session models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID.String()).Err()
}

// RedisActiveModeStore remembers the chosen acting mode per user.
type RedisActiveModeStore struct {
	client *redis.Client
}

func NewRedisActiveModeStore(client *redis.Client) *RedisActiveModeStore {
	return &RedisActiveModeStore{client: client}
}

func (s *RedisActiveModeStore) Save(ctx context.Context, userID id.UserID, mode models.ActiveMode) error {
	return s.client.Set(ctx, activeModeKeyPrefix+userID.String(), string(mode), 0).Err()
}

func (s *RedisActiveModeStore) Load(ctx context.Context, userID id.UserID) (models.ActiveMode, error) {
	raw, err := s.client.Get(ctx, activeModeKeyPrefix+userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load active mode: %w", err)
	}
	return models.ActiveMode(raw), nil
}

func (s *RedisActiveModeStore) Delete(ctx context.Context, userID id.UserID) error {
	return s.client.Del(ctx, activeModeKeyPrefix+userID.String()).Err()
}

// RedisOTPStore keeps pending verifications with the OTP TTL so stale codes
// expire without cleanup jobs.
type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func (s *RedisOTPStore) Save(ctx context.Context, pending models.OTPPending) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode otp pending: %w", err)
	}
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, otpPendingKeyPrefix+pending.Value, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save otp pending: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) Find(ctx context.Context, contact string) (models.OTPPending, error) {
	raw, err := s.client.Get(ctx, otpPendingKeyPrefix+contact).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.OTPPending{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.OTPPending{}, fmt.Errorf("load otp pending: %w", err)
	}
	var pending models.OTPPending
	if err := json.Unmarshal(raw, &pending); err != nil {
		return models.OTPPending{}, fmt.Errorf("decode otp pending: %w", err)
	}
	return pending, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, contact string) error {
	return s.client.Del(ctx, otpPendingKeyPrefix+contact).Err()
}
