package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"vendry/internal/events"
	"vendry/internal/identity/models"
	"vendry/internal/identity/store"
	"vendry/internal/identity/token"
	"vendry/internal/notify"
	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/draft"
	"vendry/internal/onboarding/wizard"
	"vendry/internal/platform/metrics"
	id "vendry/pkg/domain"
	dErrors "vendry/pkg/domain-errors"
	"vendry/pkg/platform/sentinel"
	"vendry/pkg/requestcontext"
)

// captureSender records sent codes and can be told to fail.
type captureSender struct {
	codes map[string]string
	calls int
	err   error
}

func (s *captureSender) Send(_ context.Context, _ models.OTPMethod, contact, code string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.codes[contact] = code
	return nil
}

type ServiceSuite struct {
	suite.Suite
	svc      *Service
	profiles *store.MemoryProfileStore
	sessions *store.MemorySessionStore
	modes    *store.MemoryActiveModeStore
	sender   *captureSender
	notifier *notify.Memory
	tokens   *token.Service
}

func (s *ServiceSuite) SetupTest() {
	s.profiles = store.NewMemoryProfileStore()
	s.sessions = store.NewMemorySessionStore()
	s.modes = store.NewMemoryActiveModeStore()
	s.sender = &captureSender{codes: make(map[string]string)}
	s.notifier = notify.NewMemory()
	s.tokens = token.NewService("test-signing-key", "vendry-test")

	s.svc = New(
		s.profiles, s.sessions, s.modes, store.NewMemoryOTPStore(),
		s.tokens,
		s.sender,
		s.notifier,
		events.Noop{},
		metrics.NewWith(prometheus.NewRegistry()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{SessionTTL: time.Hour, OTPTTL: 5 * time.Minute, OTPMaxAttempts: 5},
	)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// signIn runs the full OTP flow for a contact and returns the session.
func (s *ServiceSuite) signIn(email string) VerifiedSession {
	ctx := context.Background()
	err := s.svc.RequestOTP(ctx, OTPRequest{
		Method: models.OTPMethodEmail,
		Value:  email,
		Flow:   models.OTPFlowSignup,
	})
	s.Require().NoError(err)

	verified, err := s.svc.VerifyOTP(ctx, models.OTPMethodEmail, email, s.sender.codes[email])
	s.Require().NoError(err)
	return verified
}

func (s *ServiceSuite) TestRequestOTP() {
	ctx := context.Background()

	s.Run("sends a six digit code", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "ada@example.com", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)
		s.Require().Len(s.sender.codes["ada@example.com"], 6)
	})

	s.Run("normalizes the email address", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "  MiXeD@Example.COM ", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)
		s.Contains(s.sender.codes, "mixed@example.com")
	})

	s.Run("rejects a malformed contact", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "not-an-email", Flow: models.OTPFlowLogin})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		err = s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodPhone, Value: "123", Flow: models.OTPFlowLogin})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("a new request invalidates the earlier code", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "replay@example.com", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)
		oldCode := s.sender.codes["replay@example.com"]

		err = s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "replay@example.com", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)

		if oldCode != s.sender.codes["replay@example.com"] {
			_, err = s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "replay@example.com", oldCode)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func (s *ServiceSuite) TestSenderCircuitBreaker() {
	ctx := context.Background()
	s.sender.err = errors.New("gateway down")

	for range 5 {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "down@example.com", Flow: models.OTPFlowLogin})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	}
	callsAtOpen := s.sender.calls

	// Circuit is open: the sender is no longer invoked.
	err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "down@example.com", Flow: models.OTPFlowLogin})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(callsAtOpen, s.sender.calls)
}

func (s *ServiceSuite) TestVerifyOTP() {
	ctx := context.Background()

	s.Run("success creates a customer profile with a derived name", func() {
		verified := s.signIn("ada.lovelace@example.com")

		s.Require().NotNil(verified.State.Profile)
		profile := verified.State.Profile
		s.Equal(models.RoleCustomer, profile.Role)
		s.Equal("ada.lovelace@example.com", profile.Email)
		s.Equal("Ada Lovelace", profile.Name)
		s.Equal(models.OnboardingNotStarted, profile.Onboarding.Status)
		s.ElementsMatch([]models.Capability{models.CanBuy}, verified.State.Capabilities)

		claims, err := s.tokens.ValidateToken(verified.Token)
		s.Require().NoError(err)
		s.Equal(profile.ID.String(), claims.UserID)

		session, err := s.sessions.FindByID(ctx, verified.SessionID)
		s.Require().NoError(err)
		s.Equal(profile.ID, session.UserID)
	})

	s.Run("verifying the same contact again reuses the profile", func() {
		first := s.signIn("repeat@example.com")
		second := s.signIn("repeat@example.com")
		s.Equal(first.State.Profile.ID, second.State.Profile.ID)
		s.NotEqual(first.SessionID, second.SessionID)
	})

	s.Run("wrong code burns an attempt but keeps the pending request", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "guess@example.com", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)

		_, err = s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "guess@example.com", "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		// The right code still works afterward.
		verified, err := s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "guess@example.com", s.sender.codes["guess@example.com"])
		s.Require().NoError(err)
		s.NotNil(verified.State.Profile)
	})

	s.Run("exhausting attempts destroys the pending request", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "brute@example.com", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)

		for range 5 {
			_, err = s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "brute@example.com", "000000")
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}

		// Even the right code is now rejected; the request is gone.
		_, err = s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "brute@example.com", s.sender.codes["brute@example.com"])
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("verification without a pending request is not found", func() {
		_, err := s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "nobody@example.com", "123456")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCancelOTP() {
	ctx := context.Background()

	s.Run("cancelling discards the pending code", func() {
		err := s.svc.RequestOTP(ctx, OTPRequest{Method: models.OTPMethodEmail, Value: "gone@example.com", Flow: models.OTPFlowLogin})
		s.Require().NoError(err)

		s.Require().NoError(s.svc.CancelOTP(ctx, models.OTPMethodEmail, "gone@example.com"))

		_, err = s.svc.VerifyOTP(ctx, models.OTPMethodEmail, "gone@example.com", s.sender.codes["gone@example.com"])
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cancelling with nothing pending succeeds", func() {
		s.NoError(s.svc.CancelOTP(ctx, models.OTPMethodEmail, "quiet@example.com"))
	})

	s.Run("rejects a malformed contact", func() {
		err := s.svc.CancelOTP(ctx, models.OTPMethodEmail, "not-an-email")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestState() {
	ctx := context.Background()

	s.Run("zero user is anonymous", func() {
		state, err := s.svc.State(ctx, id.UserID{})
		s.Require().NoError(err)
		s.Equal(models.StatusAnonymous, state.AuthStatus)
		s.Equal(models.ModeCustomer, state.ActiveMode)
	})

	s.Run("unknown user is anonymous, not an error", func() {
		state, err := s.svc.State(ctx, id.NewUserID())
		s.Require().NoError(err)
		s.Equal(models.StatusAnonymous, state.AuthStatus)
	})

	s.Run("known user derives from the stored profile", func() {
		verified := s.signIn("state@example.com")
		state, err := s.svc.State(ctx, verified.State.Profile.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAuthenticated, state.AuthStatus)
		s.Equal(models.RoleCustomer, state.Profile.Role)
	})
}

func (s *ServiceSuite) TestSetActiveMode() {
	ctx := context.Background()

	s.Run("vendor mode without can_sell is a silent no-op", func() {
		verified := s.signIn("customer@example.com")
		userID := verified.State.Profile.ID

		state, err := s.svc.SetActiveMode(ctx, userID, models.ModeVendor)
		s.Require().NoError(err)
		s.Equal(models.ModeCustomer, state.ActiveMode)

		_, err = s.modes.Load(ctx, userID)
		s.ErrorIs(err, sentinel.ErrNotFound, "nothing may be persisted on a no-op")
	})

	s.Run("vendor mode with can_sell persists and broadcasts", func() {
		verified := s.signIn("vendor@example.com")
		userID := verified.State.Profile.ID

		// Upgrade by completing onboarding first.
		_, err := s.svc.CompleteOnboarding(ctx, userID)
		s.Require().NoError(err)

		var pings int
		s.notifier.Subscribe(func() { pings++ })

		state, err := s.svc.SetActiveMode(ctx, userID, models.ModeCustomer)
		s.Require().NoError(err)
		s.Equal(models.ModeCustomer, state.ActiveMode)
		s.Equal(1, pings)

		state, err = s.svc.SetActiveMode(ctx, userID, models.ModeVendor)
		s.Require().NoError(err)
		s.Equal(models.ModeVendor, state.ActiveMode)

		mode, err := s.modes.Load(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.ModeVendor, mode)
	})

	s.Run("anonymous caller is rejected", func() {
		_, err := s.svc.SetActiveMode(ctx, id.NewUserID(), models.ModeCustomer)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestFlushDraft() {
	ctx := context.Background()
	verified := s.signIn("draft@example.com")
	userID := verified.State.Profile.ID

	d := draft.New()
	d.ItemTitle = "Vintage desk lamp"
	snap := wizard.Snapshot{
		Draft:      d,
		Step:       catalog.MilestoneAccount,
		QuestionID: "account.type",
	}

	s.Run("first flush moves onboarding to in_progress", func() {
		s.Require().NoError(s.svc.FlushDraft(ctx, userID, snap))

		stored, err := s.profiles.Load(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.OnboardingInProgress, stored.Onboarding.Status)
		s.Equal("Vintage desk lamp", stored.Onboarding.Draft.ItemTitle)
		s.Equal(catalog.MilestoneAccount, stored.Onboarding.CurrentStep)
		s.Equal("account.type", stored.Onboarding.CurrentQuestion)
	})

	s.Run("flusher is rejected for an anonymous user", func() {
		err := s.svc.Flusher(id.UserID{}).Flush(ctx, snap)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("flush after completion keeps the completed status", func() {
		_, err := s.svc.CompleteOnboarding(ctx, userID)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.FlushDraft(ctx, userID, snap))
		stored, err := s.profiles.Load(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.OnboardingCompleted, stored.Onboarding.Status)
	})
}

func (s *ServiceSuite) TestResetOnboarding() {
	ctx := context.Background()

	s.Run("in-progress onboarding resets to a fresh state", func() {
		verified := s.signIn("restart@example.com")
		userID := verified.State.Profile.ID

		d := draft.New()
		d.ItemTitle = "Half answered"
		snap := wizard.Snapshot{Draft: d, Step: catalog.MilestoneAccount, QuestionID: "account.type"}
		s.Require().NoError(s.svc.FlushDraft(ctx, userID, snap))

		state, err := s.svc.ResetOnboarding(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.OnboardingNotStarted, state.Onboarding.Status)
		s.Empty(state.Onboarding.Draft.ItemTitle)
	})

	s.Run("completed onboarding cannot be reset", func() {
		verified := s.signIn("done@example.com")
		userID := verified.State.Profile.ID
		_, err := s.svc.CompleteOnboarding(ctx, userID)
		s.Require().NoError(err)

		_, err = s.svc.ResetOnboarding(ctx, userID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestCompleteOnboarding() {
	ctx := context.Background()

	s.Run("anonymous caller needs auth", func() {
		_, err := s.svc.CompleteOnboarding(ctx, id.UserID{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("customer is upgraded and completed in one transaction", func() {
		verified := s.signIn("upgrade@example.com")
		userID := verified.State.Profile.ID

		at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		state, err := s.svc.CompleteOnboarding(requestcontext.WithTime(ctx, at), userID)
		s.Require().NoError(err)

		s.Equal(models.RoleVendor, state.Profile.Role)
		s.Equal(models.ModeVendor, state.ActiveMode)
		s.True(state.HasCapability(models.CanSell))
		s.Equal(models.OnboardingCompleted, state.Onboarding.Status)
		s.Require().NotNil(state.Onboarding.CompletedAt)
		s.Equal(at, *state.Onboarding.CompletedAt)

		// The durable profile carries the same facts.
		stored, err := s.profiles.Load(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.RoleVendor, stored.Role)
		s.Equal(models.OnboardingCompleted, stored.Onboarding.Status)
	})

	s.Run("an explicit customer mode choice survives the upgrade", func() {
		verified := s.signIn("browsing@example.com")
		userID := verified.State.Profile.ID

		_, err := s.svc.SetActiveMode(ctx, userID, models.ModeCustomer)
		s.Require().NoError(err)

		state, err := s.svc.CompleteOnboarding(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.RoleVendor, state.Profile.Role)
		s.Equal(models.ModeCustomer, state.ActiveMode)
		s.True(state.HasCapability(models.CanSell))

		mode, err := s.modes.Load(ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.ModeCustomer, mode)
	})

	s.Run("completion moves the resume position to the seller hub", func() {
		verified := s.signIn("direct@example.com")
		userID := verified.State.Profile.ID

		// Straight to completion without ever touching the wizard.
		state, err := s.svc.CompleteOnboarding(ctx, userID)
		s.Require().NoError(err)
		s.Equal(catalog.MilestoneSellerHub, state.Onboarding.CurrentStep)

		stored, err := s.profiles.Load(ctx, userID)
		s.Require().NoError(err)
		s.Equal(catalog.MilestoneSellerHub, stored.Onboarding.CurrentStep)
		s.Empty(stored.Onboarding.CurrentQuestion)
	})

	s.Run("completion is idempotent and the timestamp is stable", func() {
		verified := s.signIn("twice@example.com")
		userID := verified.State.Profile.ID

		first := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		state, err := s.svc.CompleteOnboarding(requestcontext.WithTime(ctx, first), userID)
		s.Require().NoError(err)
		s.Require().NotNil(state.Onboarding.CompletedAt)

		later := first.Add(48 * time.Hour)
		again, err := s.svc.CompleteOnboarding(requestcontext.WithTime(ctx, later), userID)
		s.Require().NoError(err)
		s.Equal(first, *again.Onboarding.CompletedAt, "completed_at must not move on re-completion")
		s.Equal(models.RoleVendor, again.Profile.Role)
	})
}

func (s *ServiceSuite) TestLogout() {
	ctx := context.Background()
	verified := s.signIn("bye@example.com")
	userID := verified.State.Profile.ID

	s.Require().NoError(s.svc.ValidateSession(ctx, verified.SessionID))
	s.Require().NoError(s.svc.Logout(ctx, userID, verified.SessionID))

	err := s.svc.ValidateSession(ctx, verified.SessionID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// The profile survives logout; only the session dies.
	_, err = s.profiles.Load(ctx, userID)
	s.Require().NoError(err)
}
