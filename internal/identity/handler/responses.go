package handler

import (
	"time"

	"vendry/internal/identity/models"
)

type verifyResponse struct {
	Token     string        `json:"token"`
	SessionID string        `json:"session_id"`
	State     stateResponse `json:"state"`
}

type stateResponse struct {
	AuthStatus   string              `json:"auth_status"`
	Profile      *profileResponse    `json:"profile,omitempty"`
	Capabilities []string            `json:"capabilities"`
	ActiveMode   string              `json:"active_mode"`
	Onboarding   *onboardingResponse `json:"onboarding,omitempty"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type onboardingResponse struct {
	Status          string     `json:"status"`
	CurrentStep     string     `json:"current_step"`
	CurrentQuestion string     `json:"current_question,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// fromAuthState flattens the derived state for transport. The draft is not
// included; onboarding endpoints own draft reads and writes.
func fromAuthState(state models.AuthState) stateResponse {
	out := stateResponse{
		AuthStatus:   string(state.AuthStatus),
		ActiveMode:   string(state.ActiveMode),
		Capabilities: make([]string, 0, len(state.Capabilities)),
	}
	for _, c := range state.Capabilities {
		out.Capabilities = append(out.Capabilities, string(c))
	}
	if state.Profile != nil {
		out.Profile = &profileResponse{
			ID:        state.Profile.ID.String(),
			Email:     state.Profile.Email,
			Phone:     state.Profile.Phone,
			Name:      state.Profile.Name,
			Role:      string(state.Profile.Role),
			CreatedAt: state.Profile.CreatedAt,
		}
	}
	if state.Onboarding != nil {
		out.Onboarding = &onboardingResponse{
			Status:          string(state.Onboarding.Status),
			CurrentStep:     string(state.Onboarding.CurrentStep),
			CurrentQuestion: state.Onboarding.CurrentQuestion,
			CompletedAt:     state.Onboarding.CompletedAt,
		}
	}
	return out
}
