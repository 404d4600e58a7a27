package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"vendry/internal/events"
	"vendry/internal/identity/models"
	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/wizard"
	id "vendry/pkg/domain"
	dErrors "vendry/pkg/domain-errors"
	"vendry/pkg/platform/sentinel"
	"vendry/pkg/requestcontext"
)

// Flusher binds the wizard's draft-flush contract to one user's profile.
// Anonymous wizard sessions run with a nil flusher and stay memory-only
// until the user authenticates.
func (s *Service) Flusher(userID id.UserID) wizard.Flusher {
	return profileFlusher{svc: s, userID: userID}
}

type profileFlusher struct {
	svc    *Service
	userID id.UserID
}

func (f profileFlusher) Flush(ctx context.Context, snap wizard.Snapshot) error {
	return f.svc.FlushDraft(ctx, f.userID, snap)
}

// FlushDraft rewrites the profile's embedded draft and resume position. The
// first flush moves onboarding from not_started to in_progress; a completed
// onboarding record keeps its status and timestamp, since the retained draft
// may still be edited toward the seller's first listing.
func (s *Service) FlushDraft(ctx context.Context, userID id.UserID, snap wizard.Snapshot) error {
	if userID.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "sign in to save progress")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.profiles.Load(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeUnavailable, "loading profile failed", err)
	}

	next := profile.Clone()
	next.Onboarding.Draft = snap.Draft.Clone()
	next.Onboarding.CurrentStep = snap.Step
	next.Onboarding.CurrentQuestion = snap.QuestionID
	if next.Onboarding.Status == models.OnboardingNotStarted {
		next.Onboarding.Status = models.OnboardingInProgress
	}
	next.UpdatedAt = requestcontext.Now(ctx)

	if err := s.saveProfileTimed(ctx, next); err != nil {
		return dErrors.Wrap(dErrors.CodeUnavailable, "saving draft failed", err)
	}
	s.metrics.DraftFlushes.Inc()
	s.broadcast(ctx)
	return nil
}

// CompleteOnboarding runs the finalization transaction. The checkpoint is
// evaluated against freshly loaded state:
//
//   - needs_auth: rejected; the in-memory draft stays intact so the user can
//     authenticate and retry without losing answers.
//   - needs_upgrade: role is upgraded to vendor and onboarding marked
//     completed in a single whole-profile durable write. Capability and mode
//     changes become observable only after that write succeeds. The acting
//     mode flips to vendor unless the user explicitly chose customer.
//   - ready_to_complete: onboarding is marked completed. Re-running against
//     an already completed record is a no-op that preserves the original
//     completion timestamp.
//
// Completing moves the resume position to the seller hub milestone.
func (s *Service) CompleteOnboarding(ctx context.Context, userID id.UserID) (models.AuthState, error) {
	ctx, span := s.tracer.Start(ctx, "identity.CompleteOnboarding")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.State(ctx, userID)
	if err != nil {
		return models.AuthState{}, err
	}

	checkpoint := EvaluateCheckpoint(state)
	span.SetAttributes(attribute.String("checkpoint", string(checkpoint)))

	if checkpoint == models.CheckpointNeedsAuth {
		return state, dErrors.New(dErrors.CodeUnauthorized, "sign in to finish onboarding")
	}

	profile := state.Profile.Clone()
	now := requestcontext.Now(ctx)
	upgraded := false

	if checkpoint == models.CheckpointNeedsUpgrade {
		profile.Role = models.RoleVendor
		profile.ActiveRole = models.ModeVendor
		// An explicitly chosen customer mode survives the upgrade; the
		// user flips to vendor mode on their own terms.
		if stored, err := s.modes.Load(ctx, userID); err == nil && stored == models.ModeCustomer {
			profile.ActiveRole = models.ModeCustomer
		}
		upgraded = true
	}
	if profile.Onboarding.Status != models.OnboardingCompleted {
		profile.Onboarding.Status = models.OnboardingCompleted
		profile.Onboarding.CurrentStep = catalog.MilestoneSellerHub
		profile.Onboarding.CurrentQuestion = ""
		completedAt := now
		profile.Onboarding.CompletedAt = &completedAt
	}
	profile.UpdatedAt = now

	if err := s.saveProfileTimed(ctx, profile); err != nil {
		return state, dErrors.Wrap(dErrors.CodeUnavailable, "completing onboarding failed", err)
	}
	if upgraded && profile.ActiveRole == models.ModeVendor {
		if err := s.modes.Save(ctx, userID, models.ModeVendor); err != nil {
			s.logger.WarnContext(ctx, "mode save after upgrade failed", "error", err.Error())
		}
	}

	s.broadcast(ctx)
	if upgraded {
		s.metrics.RoleUpgrades.Inc()
		s.events.Publish(ctx, events.Event{
			Type:      events.TypeRoleUpgraded,
			UserID:    userID,
			At:        now,
			RequestID: requestcontext.RequestID(ctx),
			Attrs:     map[string]string{"role": string(models.RoleVendor)},
		})
	}
	s.metrics.OnboardingCompleted.Inc()
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeOnboardingCompleted,
		UserID:    userID,
		At:        now,
		RequestID: requestcontext.RequestID(ctx),
	})

	s.logger.InfoContext(ctx, "onboarding completed",
		"user_id", userID.String(),
		"upgraded", upgraded,
	)
	return BuildAuthState(&profile, profile.ActiveRole), nil
}

// ResetOnboarding discards the profile's draft and resume position, for users
// who abandon the flow and want a clean start. Completed onboarding cannot be
// reset.
func (s *Service) ResetOnboarding(ctx context.Context, userID id.UserID) (models.AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.profiles.Load(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.AuthState{}, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return models.AuthState{}, dErrors.Wrap(dErrors.CodeUnavailable, "loading profile failed", err)
	}
	if profile.Onboarding.Status == models.OnboardingCompleted {
		return models.AuthState{}, dErrors.New(dErrors.CodeConflict, "onboarding is already completed")
	}

	next := profile.Clone()
	next.Onboarding = models.NewOnboardingState()
	next.UpdatedAt = requestcontext.Now(ctx)
	if err := s.saveProfileTimed(ctx, next); err != nil {
		return models.AuthState{}, dErrors.Wrap(dErrors.CodeUnavailable, "resetting onboarding failed", err)
	}
	s.broadcast(ctx)
	return BuildAuthState(&next, s.requestedMode(ctx, userID)), nil
}

func (s *Service) saveProfileTimed(ctx context.Context, profile models.AuthProfile) error {
	start := time.Now()
	err := s.profiles.Save(ctx, profile)
	s.metrics.ProfileWriteDuration.Observe(float64(time.Since(start).Milliseconds()))
	return err
}
