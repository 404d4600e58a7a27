package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"vendry/internal/events"
	"vendry/internal/identity/models"
	id "vendry/pkg/domain"
	dErrors "vendry/pkg/domain-errors"
	"vendry/pkg/email"
	"vendry/pkg/platform/sentinel"
	"vendry/pkg/requestcontext"
)

// OTPRequest asks for a verification code to be sent to a contact.
type OTPRequest struct {
	Method models.OTPMethod
	Value  string
	Flow   models.OTPFlow
	// Name and RoleIntent seed the profile when the signup flow creates one.
	Name       string
	RoleIntent models.Role
}

// VerifiedSession is the result of a successful OTP verification: the
// derived state plus the bearer token for the new session.
type VerifiedSession struct {
	State     models.AuthState
	Token     string
	SessionID id.SessionID
}

// RequestOTP issues a six-digit code for the contact, stores its bcrypt hash
// with a TTL, and hands the plaintext code to the sender. Requesting again
// for the same contact replaces the pending record, invalidating the earlier
// code.
func (s *Service) RequestOTP(ctx context.Context, req OTPRequest) error {
	contact, err := normalizeContact(req.Method, req.Value)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "generating code failed", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "hashing code failed", err)
	}

	pending := models.OTPPending{
		Method:     req.Method,
		Value:      contact,
		Flow:       req.Flow,
		Name:       strings.TrimSpace(req.Name),
		RoleIntent: req.RoleIntent,
		CodeHash:   hash,
		ExpiresAt:  requestcontext.Now(ctx).Add(s.cfg.OTPTTL),
	}
	if err := s.otps.Save(ctx, pending); err != nil {
		return dErrors.Wrap(dErrors.CodeUnavailable, "storing verification request failed", err)
	}

	if s.senderBreaker.IsOpen() {
		return dErrors.New(dErrors.CodeUnavailable, "code delivery is temporarily unavailable, try again shortly")
	}
	if err := s.sender.Send(ctx, req.Method, contact, code); err != nil {
		if _, change := s.senderBreaker.RecordFailure(); change.Opened {
			s.logger.ErrorContext(ctx, "otp sender circuit opened", "breaker", s.senderBreaker.Name())
		}
		return dErrors.Wrap(dErrors.CodeUnavailable, "sending the code failed", err)
	}
	if _, change := s.senderBreaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "otp sender circuit closed", "breaker", s.senderBreaker.Name())
	}

	s.metrics.OTPRequested.Inc()
	s.logger.InfoContext(ctx, "otp requested",
		"method", string(req.Method),
		"flow", string(req.Flow),
		"contact", maskContact(contact),
	)
	return nil
}

// CancelOTP discards the pending verification for a contact, for users who
// back out of the sign-in form. Cancelling when nothing is pending succeeds.
func (s *Service) CancelOTP(ctx context.Context, method models.OTPMethod, value string) error {
	contact, err := normalizeContact(method, value)
	if err != nil {
		return err
	}
	if err := s.otps.Delete(ctx, contact); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(dErrors.CodeUnavailable, "cancelling verification failed", err)
	}
	s.logger.InfoContext(ctx, "otp cancelled",
		"method", string(method),
		"contact", maskContact(contact),
	)
	return nil
}

// VerifyOTP checks a submitted code against the pending request. On success
// the pending record is consumed, the profile is loaded or created, and a
// fresh session with a signed token is issued. Wrong codes burn an attempt;
// once attempts are exhausted the pending record is destroyed and the user
// must request a new code.
func (s *Service) VerifyOTP(ctx context.Context, method models.OTPMethod, value, code string) (VerifiedSession, error) {
	contact, err := normalizeContact(method, value)
	if err != nil {
		return VerifiedSession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.otps.Find(ctx, contact)
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
		return VerifiedSession{}, dErrors.New(dErrors.CodeNotFound, "no pending verification for this contact, request a new code")
	case err != nil:
		return VerifiedSession{}, dErrors.Wrap(dErrors.CodeUnavailable, "loading verification request failed", err)
	}
	if requestcontext.Now(ctx).After(pending.ExpiresAt) {
		_ = s.otps.Delete(ctx, contact)
		return VerifiedSession{}, dErrors.New(dErrors.CodeNotFound, "the code expired, request a new one")
	}

	if bcrypt.CompareHashAndPassword(pending.CodeHash, []byte(code)) != nil {
		pending.Attempts++
		s.metrics.OTPRejected.Inc()
		if pending.Attempts >= s.cfg.OTPMaxAttempts {
			_ = s.otps.Delete(ctx, contact)
			return VerifiedSession{}, dErrors.New(dErrors.CodeInvalidInput, "too many wrong codes, request a new one")
		}
		if err := s.otps.Save(ctx, pending); err != nil {
			return VerifiedSession{}, dErrors.Wrap(dErrors.CodeUnavailable, "recording attempt failed", err)
		}
		return VerifiedSession{}, dErrors.New(dErrors.CodeInvalidInput, "that code is not right")
	}

	profile, created, err := s.findOrCreateProfile(ctx, pending)
	if err != nil {
		return VerifiedSession{}, err
	}

	session, tok, err := s.openSession(ctx, profile.ID)
	if err != nil {
		return VerifiedSession{}, err
	}

	if err := s.otps.Delete(ctx, contact); err != nil {
		s.logger.WarnContext(ctx, "clearing verified otp failed", "error", err.Error())
	}
	s.metrics.OTPVerified.Inc()
	if created {
		s.metrics.ProfilesCreated.Inc()
		s.events.Publish(ctx, events.Event{
			Type:      events.TypeProfileCreated,
			UserID:    profile.ID,
			At:        requestcontext.Now(ctx),
			RequestID: requestcontext.RequestID(ctx),
		})
	}
	s.broadcast(ctx)

	state := BuildAuthState(&profile, s.requestedMode(ctx, profile.ID))
	return VerifiedSession{State: state, Token: tok, SessionID: session.ID}, nil
}

func (s *Service) findOrCreateProfile(ctx context.Context, pending models.OTPPending) (models.AuthProfile, bool, error) {
	profile, err := s.profiles.FindByContact(ctx, pending.Value)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.AuthProfile{}, false, dErrors.Wrap(dErrors.CodeUnavailable, "looking up profile failed", err)
	}

	now := requestcontext.Now(ctx)
	profile = models.AuthProfile{
		ID:         id.NewUserID(),
		Name:       pending.Name,
		Role:       models.RoleCustomer,
		ActiveRole: models.ModeCustomer,
		Onboarding: models.NewOnboardingState(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch pending.Method {
	case models.OTPMethodEmail:
		profile.Email = pending.Value
		if profile.Name == "" {
			profile.Name = email.DeriveNameFromEmail(pending.Value)
		}
	case models.OTPMethodPhone:
		profile.Phone = pending.Value
		if profile.Name == "" {
			profile.Name = "Member"
		}
	}
	if err := s.saveProfileTimed(ctx, profile); err != nil {
		return models.AuthProfile{}, false, dErrors.Wrap(dErrors.CodeUnavailable, "creating profile failed", err)
	}
	return profile, true, nil
}

func (s *Service) openSession(ctx context.Context, userID id.UserID) (models.Session, string, error) {
	now := requestcontext.Now(ctx)
	session := models.Session{
		ID:        id.NewSessionID(),
		UserID:    userID,
		Device:    deviceName(requestcontext.UserAgent(ctx)),
		IPAddress: requestcontext.ClientIP(ctx),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	tok, jti, err := s.tokens.Generate(userID, session.ID, s.cfg.SessionTTL)
	if err != nil {
		return models.Session{}, "", dErrors.Wrap(dErrors.CodeInternal, "signing token failed", err)
	}
	session.JTI = jti
	if err := s.sessions.Save(ctx, session); err != nil {
		return models.Session{}, "", dErrors.Wrap(dErrors.CodeUnavailable, "saving session failed", err)
	}
	return session, tok, nil
}

func normalizeContact(method models.OTPMethod, value string) (string, error) {
	v := strings.TrimSpace(value)
	switch method {
	case models.OTPMethodEmail:
		addr, err := mail.ParseAddress(v)
		if err != nil {
			return "", dErrors.New(dErrors.CodeInvalidInput, "that email address does not look right")
		}
		return strings.ToLower(addr.Address), nil
	case models.OTPMethodPhone:
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '+' {
				return r
			}
			return -1
		}, v)
		if len(strings.TrimPrefix(digits, "+")) < 7 {
			return "", dErrors.New(dErrors.CodeInvalidInput, "that phone number does not look right")
		}
		return digits, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported verification method %q", method)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func deviceName(ua string) string {
	if ua == "" {
		return "unknown device"
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	os := parsed.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "unknown device"
	}
}
