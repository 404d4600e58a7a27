package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vendry/internal/identity/models"
	id "vendry/pkg/domain"
	"vendry/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	profiles *MemoryProfileStore
	sessions *MemorySessionStore
	modes    *MemoryActiveModeStore
	otps     *MemoryOTPStore
}

func (s *MemoryStoreSuite) SetupTest() {
	s.profiles = NewMemoryProfileStore()
	s.sessions = NewMemorySessionStore()
	s.modes = NewMemoryActiveModeStore()
	s.otps = NewMemoryOTPStore()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newProfile() models.AuthProfile {
	now := time.Now().UTC().Truncate(time.Second)
	return models.AuthProfile{
		ID:         id.NewUserID(),
		Email:      "ada@example.com",
		Name:       "Ada",
		Role:       models.RoleCustomer,
		ActiveRole: models.ModeCustomer,
		Onboarding: models.NewOnboardingState(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *MemoryStoreSuite) TestProfileRoundTrip() {
	s.Run("save then load returns an equal profile", func() {
		profile := s.newProfile()
		s.Require().NoError(s.profiles.Save(context.Background(), profile))

		loaded, err := s.profiles.Load(context.Background(), profile.ID)
		s.Require().NoError(err)
		s.Equal(profile, loaded)
	})

	s.Run("load of unknown user returns ErrNotFound", func() {
		_, err := s.profiles.Load(context.Background(), id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("loaded profile does not alias the stored value", func() {
		profile := s.newProfile()
		profile.Onboarding.Draft.Categories = []string{"books"}
		s.Require().NoError(s.profiles.Save(context.Background(), profile))

		loaded, err := s.profiles.Load(context.Background(), profile.ID)
		s.Require().NoError(err)
		loaded.Onboarding.Draft.Categories[0] = "mutated"

		again, err := s.profiles.Load(context.Background(), profile.ID)
		s.Require().NoError(err)
		s.Equal([]string{"books"}, again.Onboarding.Draft.Categories)
	})

	s.Run("delete removes the profile", func() {
		profile := s.newProfile()
		s.Require().NoError(s.profiles.Save(context.Background(), profile))
		s.Require().NoError(s.profiles.Delete(context.Background(), profile.ID))

		_, err := s.profiles.Load(context.Background(), profile.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestFindByContact() {
	s.Run("resolves by email", func() {
		profile := s.newProfile()
		s.Require().NoError(s.profiles.Save(context.Background(), profile))

		found, err := s.profiles.FindByContact(context.Background(), "ada@example.com")
		s.Require().NoError(err)
		s.Equal(profile.ID, found.ID)
	})

	s.Run("resolves by phone", func() {
		profile := s.newProfile()
		profile.Email = ""
		profile.Phone = "+254700000001"
		s.Require().NoError(s.profiles.Save(context.Background(), profile))

		found, err := s.profiles.FindByContact(context.Background(), "+254700000001")
		s.Require().NoError(err)
		s.Equal(profile.ID, found.ID)
	})

	s.Run("empty contact never matches profiles with empty fields", func() {
		profile := s.newProfile()
		profile.Email = ""
		s.Require().NoError(s.profiles.Save(context.Background(), profile))

		_, err := s.profiles.FindByContact(context.Background(), "")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestSessions() {
	s.Run("save then find returns the session", func() {
		session := models.Session{
			ID:        id.NewSessionID(),
			UserID:    id.NewUserID(),
			JTI:       "jti-1",
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		s.Require().NoError(s.sessions.Save(context.Background(), session))

		found, err := s.sessions.FindByID(context.Background(), session.ID)
		s.Require().NoError(err)
		s.Equal(session, found)
	})

	s.Run("delete makes the session unfindable", func() {
		session := models.Session{ID: id.NewSessionID(), UserID: id.NewUserID()}
		s.Require().NoError(s.sessions.Save(context.Background(), session))
		s.Require().NoError(s.sessions.Delete(context.Background(), session.ID))

		_, err := s.sessions.FindByID(context.Background(), session.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestActiveModes() {
	s.Run("save then load returns the mode", func() {
		userID := id.NewUserID()
		s.Require().NoError(s.modes.Save(context.Background(), userID, models.ModeVendor))

		mode, err := s.modes.Load(context.Background(), userID)
		s.Require().NoError(err)
		s.Equal(models.ModeVendor, mode)
	})

	s.Run("absent mode returns ErrNotFound", func() {
		_, err := s.modes.Load(context.Background(), id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestOTPPending() {
	s.Run("save then find returns the pending request", func() {
		pending := models.OTPPending{
			Method:    models.OTPMethodEmail,
			Value:     "ada@example.com",
			Flow:      models.OTPFlowLogin,
			CodeHash:  []byte("hash"),
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}
		s.Require().NoError(s.otps.Save(context.Background(), pending))

		found, err := s.otps.Find(context.Background(), "ada@example.com")
		s.Require().NoError(err)
		s.Equal(pending.CodeHash, found.CodeHash)
	})

	s.Run("expired request surfaces ErrExpired", func() {
		pending := models.OTPPending{
			Method:    models.OTPMethodEmail,
			Value:     "late@example.com",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		s.Require().NoError(s.otps.Save(context.Background(), pending))

		_, err := s.otps.Find(context.Background(), "late@example.com")
		s.Require().ErrorIs(err, sentinel.ErrExpired)
	})

	s.Run("saving again replaces the earlier request", func() {
		first := models.OTPPending{Value: "x@example.com", CodeHash: []byte("one"), ExpiresAt: time.Now().Add(time.Minute)}
		second := models.OTPPending{Value: "x@example.com", CodeHash: []byte("two"), ExpiresAt: time.Now().Add(time.Minute)}
		s.Require().NoError(s.otps.Save(context.Background(), first))
		s.Require().NoError(s.otps.Save(context.Background(), second))

		found, err := s.otps.Find(context.Background(), "x@example.com")
		s.Require().NoError(err)
		s.Equal([]byte("two"), found.CodeHash)
	})
}
