// Package service implements the identity-capability engine: capability and
// acting-mode resolution, OTP authentication, and the onboarding completion
// transaction. All identity-mutating operations serialize through one lock so
// no two mutations are ever in flight against the same profile key; reads
// are unrestricted. In-memory results are only produced after the durable
// whole-profile write succeeds.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vendry/internal/events"
	"vendry/internal/identity/models"
	"vendry/internal/identity/store"
	"vendry/internal/identity/token"
	"vendry/internal/notify"
	"vendry/internal/platform/metrics"
	id "vendry/pkg/domain"
	dErrors "vendry/pkg/domain-errors"
	"vendry/pkg/platform/circuit"
	"vendry/pkg/platform/sentinel"
	"vendry/pkg/requestcontext"
)

// CodeSender delivers an OTP code over the chosen contact channel. The
// transport (SMS gateway, mail relay) is an external collaborator.
type CodeSender interface {
	Send(ctx context.Context, method models.OTPMethod, contact, code string) error
}

// LogSender logs instead of sending. Dev default.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, method models.OTPMethod, contact, code string) error {
	s.Logger.InfoContext(ctx, "otp code issued",
		"method", string(method),
		"contact", maskContact(contact),
	)
	return nil
}

// Config carries the service tunables.
type Config struct {
	SessionTTL     time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
}

// Service is the identity-capability engine façade.
type Service struct {
	profiles      store.ProfileStore
	sessions      store.SessionStore
	modes         store.ActiveModeStore
	otps          store.OTPStore
	tokens        *token.Service
	sender        CodeSender
	senderBreaker *circuit.Breaker
	notifier      notify.Notifier
	events        events.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
	cfg           Config

	// mu serializes identity-mutating operations (role changes, completion,
	// draft flushes). Reads never take it.
	mu sync.Mutex
}

func New(
	profiles store.ProfileStore,
	sessions store.SessionStore,
	modes store.ActiveModeStore,
	otps store.OTPStore,
	tokens *token.Service,
	sender CodeSender,
	notifier notify.Notifier,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		profiles:      profiles,
		sessions:      sessions,
		modes:         modes,
		otps:          otps,
		tokens:        tokens,
		sender:        sender,
		senderBreaker: circuit.New("otp-sender", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(1)),
		notifier:      notifier,
		events:        publisher,
		metrics:       m,
		logger:        logger,
		tracer:        otel.Tracer("vendry/identity"),
		cfg:           cfg,
	}
}

// State derives the AuthState for a user from the persisted profile and the
// last explicitly chosen acting mode. A zero user ID yields the anonymous
// state.
func (s *Service) State(ctx context.Context, userID id.UserID) (models.AuthState, error) {
	if userID.IsZero() {
		return BuildAuthState(nil, models.ModeCustomer), nil
	}
	profile, err := s.profiles.Load(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return BuildAuthState(nil, models.ModeCustomer), nil
	}
	if err != nil {
		return models.AuthState{}, dErrors.Wrap(dErrors.CodeUnavailable, "loading profile failed", err)
	}
	return BuildAuthState(&profile, s.requestedMode(ctx, userID)), nil
}

// requestedMode reads the stored explicit mode choice, defaulting to the
// profile's active role so a vendor stays in vendor mode across sessions.
func (s *Service) requestedMode(ctx context.Context, userID id.UserID) models.ActiveMode {
	mode, err := s.modes.Load(ctx, userID)
	if err == nil && mode != "" {
		return mode
	}
	profile, perr := s.profiles.Load(ctx, userID)
	if perr == nil && profile.ActiveRole != "" {
		return profile.ActiveRole
	}
	return models.ModeCustomer
}

// SetActiveMode records an explicit acting-mode choice. Requesting vendor
// without can_sell is a silent no-op: the prior state is returned unchanged
// and nothing is persisted.
func (s *Service) SetActiveMode(ctx context.Context, userID id.UserID, mode models.ActiveMode) (models.AuthState, error) {
	state, err := s.State(ctx, userID)
	if err != nil {
		return models.AuthState{}, err
	}
	if state.AuthStatus != models.StatusAuthenticated {
		return state, dErrors.New(dErrors.CodeUnauthorized, "sign in to switch modes")
	}
	if mode == models.ModeVendor && !state.HasCapability(models.CanSell) {
		return state, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.modes.Save(ctx, userID, mode); err != nil {
		return state, dErrors.Wrap(dErrors.CodeUnavailable, "saving mode failed", err)
	}

	profile := state.Profile.Clone()
	profile.ActiveRole = mode
	profile.UpdatedAt = requestcontext.Now(ctx)
	if err := s.profiles.Save(ctx, profile); err != nil {
		return state, dErrors.Wrap(dErrors.CodeUnavailable, "saving profile failed", err)
	}

	s.broadcast(ctx)
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeModeChanged,
		UserID:    userID,
		At:        requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Attrs:     map[string]string{"mode": string(mode)},
	})
	return BuildAuthState(&profile, mode), nil
}

// Logout tears down the session and the cached mode choice and broadcasts so
// other clients re-derive their state. The durable profile survives; only
// the acting session is destroyed.
func (s *Service) Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sessionID.IsZero() {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return dErrors.Wrap(dErrors.CodeUnavailable, "logout failed", err)
		}
	}
	if err := s.modes.Delete(ctx, userID); err != nil {
		return dErrors.Wrap(dErrors.CodeUnavailable, "logout failed", err)
	}
	s.broadcast(ctx)
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeLoggedOut,
		UserID:    userID,
		At:        requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// ValidateSession confirms the session behind a still-valid token exists.
// Logout deletes the session record, so a deleted session rejects the token
// before its expiry.
func (s *Service) ValidateSession(ctx context.Context, sessionID id.SessionID) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
		return dErrors.New(dErrors.CodeUnauthorized, "session is no longer active")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeUnavailable, "loading session failed", err)
	}
	if requestcontext.Now(ctx).After(session.ExpiresAt) {
		return dErrors.New(dErrors.CodeUnauthorized, "session expired")
	}
	return nil
}

func (s *Service) broadcast(ctx context.Context) {
	if err := s.notifier.Publish(ctx); err != nil {
		s.logger.WarnContext(ctx, "profile-changed broadcast failed", "error", err.Error())
	}
}

func maskContact(contact string) string {
	if len(contact) <= 4 {
		return "****"
	}
	return "****" + contact[len(contact)-4:]
}
