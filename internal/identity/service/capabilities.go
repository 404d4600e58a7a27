package service

import (
	"vendry/internal/identity/models"
)

// DeriveCapabilities is the total, pure role-to-capability mapping. Larger
// roles strictly contain smaller ones: admin ⊇ vendor ⊇ customer.
func DeriveCapabilities(role models.Role) []models.Capability {
	switch role {
	case models.RoleAdmin:
		return []models.Capability{models.CanAdmin, models.CanSell, models.CanBuy}
	case models.RoleVendor:
		return []models.Capability{models.CanSell, models.CanBuy}
	case models.RoleCustomer:
		return []models.Capability{models.CanBuy}
	default:
		return []models.Capability{}
	}
}

// ResolveActiveMode sanitizes a requested acting mode against capabilities:
// vendor mode requires can_sell, anything else resolves to customer. Runs on
// every state build, not only at login, so a capability loss can never leave
// a stale vendor mode in place.
func ResolveActiveMode(caps []models.Capability, requested models.ActiveMode) models.ActiveMode {
	if requested != models.ModeVendor {
		return models.ModeCustomer
	}
	for _, c := range caps {
		if c == models.CanSell {
			return models.ModeVendor
		}
	}
	return models.ModeCustomer
}

// BuildAuthState derives the full auth state from a profile and the last
// requested acting mode. Always recomputed, never persisted verbatim, so the
// capability set cannot drift from the role.
func BuildAuthState(profile *models.AuthProfile, requested models.ActiveMode) models.AuthState {
	if profile == nil {
		return models.AuthState{
			AuthStatus:   models.StatusAnonymous,
			Capabilities: []models.Capability{},
			ActiveMode:   models.ModeCustomer,
		}
	}
	caps := DeriveCapabilities(profile.Role)
	return models.AuthState{
		AuthStatus:   models.StatusAuthenticated,
		Profile:      profile,
		Capabilities: caps,
		ActiveMode:   ResolveActiveMode(caps, requested),
		Onboarding:   &profile.Onboarding,
	}
}

// EvaluateCheckpoint gates onboarding completion: authentication first, then
// the vendor role upgrade, then the completion proper.
func EvaluateCheckpoint(state models.AuthState) models.Checkpoint {
	if state.AuthStatus != models.StatusAuthenticated {
		return models.CheckpointNeedsAuth
	}
	if !state.HasCapability(models.CanSell) {
		return models.CheckpointNeedsUpgrade
	}
	return models.CheckpointReadyToComplete
}
