// Package events publishes identity mutation events to Kafka. Events are
// observational: the durable profile write is the source of truth, so a
// publish failure is logged and never blocks or rolls back a mutation.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	id "vendry/pkg/domain"
)

// Type names one identity mutation.
type Type string

const (
	TypeProfileCreated      Type = "profile_created"
	TypeRoleUpgraded        Type = "role_upgraded"
	TypeOnboardingCompleted Type = "onboarding_completed"
	TypeModeChanged         Type = "mode_changed"
	TypeLoggedOut           Type = "logged_out"
)

// Event is one identity mutation record. Keep it transport-agnostic so sinks
// can fan out.
type Event struct {
	Type      Type              `json:"type"`
	UserID    id.UserID         `json:"user_id"`
	At        time.Time         `json:"at"`
	RequestID string            `json:"request_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Publisher emits identity events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Noop drops events. Wired when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

func encode(logger *slog.Logger, event Event) []byte {
	raw, err := json.Marshal(event)
	if err != nil {
		logger.Error("encode identity event", "type", string(event.Type), "error", err.Error())
		return nil
	}
	return raw
}
