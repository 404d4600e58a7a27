// Package models defines the identity records: the persisted AuthProfile
// (including its nested onboarding state and draft), sessions, pending OTP
// requests, and the derived AuthState. The profile is owned whole-value by
// the persistence layer; every mutation rewrites the entire record.
package models

import (
	"time"

	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/draft"
	id "vendry/pkg/domain"
)

// Role is the role a user holds. Empty means no role assigned yet.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
	RoleNone     Role = ""
)

// Capability is an atomic permission derived purely from role.
type Capability string

const (
	CanBuy   Capability = "can_buy"
	CanSell  Capability = "can_sell"
	CanAdmin Capability = "can_admin"
)

// ActiveMode is the role a user is currently acting as, distinct from the
// role they hold.
type ActiveMode string

const (
	ModeCustomer ActiveMode = "customer"
	ModeVendor   ActiveMode = "vendor"
)

// AuthStatus distinguishes anonymous visitors from authenticated users.
type AuthStatus string

const (
	StatusAnonymous     AuthStatus = "anonymous"
	StatusAuthenticated AuthStatus = "authenticated"
)

// OnboardingStatus tracks progress through vendor onboarding.
type OnboardingStatus string

const (
	OnboardingNotStarted OnboardingStatus = "not_started"
	OnboardingInProgress OnboardingStatus = "in_progress"
	OnboardingCompleted  OnboardingStatus = "completed"
)

// Checkpoint is the gate evaluated before finalizing onboarding.
type Checkpoint string

const (
	CheckpointNeedsAuth       Checkpoint = "needs_auth"
	CheckpointNeedsUpgrade    Checkpoint = "needs_upgrade"
	CheckpointReadyToComplete Checkpoint = "ready_to_complete"
)

// OnboardingState is the profile-embedded onboarding record. The draft is
// retained after completion so the seller's first listing can reuse it.
type OnboardingState struct {
	Status          OnboardingStatus  `json:"status"`
	CurrentStep     catalog.Milestone `json:"current_step"`
	CurrentQuestion string            `json:"current_question,omitempty"`
	Draft           draft.Draft       `json:"draft"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// NewOnboardingState returns a fresh, structurally complete onboarding state.
func NewOnboardingState() OnboardingState {
	return OnboardingState{
		Status:      OnboardingNotStarted,
		CurrentStep: catalog.MilestoneListing,
		Draft:       draft.New(),
	}
}

// AuthProfile is the identity record. It is created at first successful
// authentication (role customer) and mutated only by whole-value rewrites.
// Logout destroys the session and cached mode, never the profile.
type AuthProfile struct {
	ID         id.UserID       `json:"id"`
	Email      string          `json:"email,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Name       string          `json:"name,omitempty"`
	Role       Role            `json:"role"`
	ActiveRole ActiveMode      `json:"active_role"`
	Onboarding OnboardingState `json:"onboarding"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Clone deep-copies the profile so copy-on-write mutations never alias the
// stored value.
func (p AuthProfile) Clone() AuthProfile {
	out := p
	out.Onboarding.Draft = p.Onboarding.Draft.Clone()
	if p.Onboarding.CompletedAt != nil {
		t := *p.Onboarding.CompletedAt
		out.Onboarding.CompletedAt = &t
	}
	return out
}

// Session models one authenticated device.
type Session struct {
	ID        id.SessionID `json:"id"`
	UserID    id.UserID    `json:"user_id"`
	JTI       string       `json:"jti"`
	Device    string       `json:"device,omitempty"`
	IPAddress string       `json:"ip_address,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// OTPFlow distinguishes login from signup contact verification.
type OTPFlow string

const (
	OTPFlowLogin  OTPFlow = "login"
	OTPFlowSignup OTPFlow = "signup"
)

// OTPMethod is the contact channel a code was sent over.
type OTPMethod string

const (
	OTPMethodPhone OTPMethod = "phone"
	OTPMethodEmail OTPMethod = "email"
)

// OTPPending is the transient contact-verification request. The code is
// stored bcrypt-hashed; the record is cleared on successful verification or
// explicit cancellation, and survives failed attempts so the user can retry
// without re-entering their contact.
type OTPPending struct {
	Method     OTPMethod `json:"method"`
	Value      string    `json:"value"`
	Flow       OTPFlow   `json:"flow"`
	Name       string    `json:"name,omitempty"`
	RoleIntent Role      `json:"role_intent,omitempty"`
	CodeHash   []byte    `json:"code_hash"`
	Attempts   int       `json:"attempts"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AuthState is derived, never persisted verbatim: it is recomputed from the
// profile on every build so role and capability set cannot drift.
type AuthState struct {
	AuthStatus   AuthStatus       `json:"auth_status"`
	Profile      *AuthProfile     `json:"profile,omitempty"`
	Capabilities []Capability     `json:"capabilities"`
	ActiveMode   ActiveMode       `json:"active_mode"`
	Onboarding   *OnboardingState `json:"onboarding,omitempty"`
}

// HasCapability reports membership in the derived capability set.
func (s AuthState) HasCapability(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
