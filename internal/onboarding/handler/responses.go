package handler

import (
	"time"

	"vendry/internal/identity/models"
	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/draft"
)

type attachFileRequest struct {
	Field    string `json:"field"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	// Data carries the file bytes base64-encoded. Optional: metadata-only
	// attachments record SizeBytes without landing bytes in the arena.
	Data      string `json:"data,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type questionResponse struct {
	ID        string   `json:"id"`
	Milestone string   `json:"milestone"`
	Fields    []string `json:"fields"`
	Kind      string   `json:"kind"`
	Heading   string   `json:"heading"`
	Subtitle  string   `json:"subtitle,omitempty"`
}

type currentResponse struct {
	Question  questionResponse   `json:"question"`
	Draft     draft.Draft        `json:"draft"`
	CanGoBack bool               `json:"can_go_back"`
	Completed bool               `json:"completed"`
	Progress  map[string]float64 `json:"progress"`
}

type advanceResponse struct {
	Question        *questionResponse  `json:"question,omitempty"`
	ValidationError string             `json:"validation_error,omitempty"`
	Completed       bool               `json:"completed"`
	Progress        map[string]float64 `json:"progress"`
}

type draftResponse struct {
	Draft draft.Draft `json:"draft"`
}

type completeResponse struct {
	Status       string     `json:"status"`
	Role         string     `json:"role"`
	ActiveMode   string     `json:"active_mode"`
	Capabilities []string   `json:"capabilities"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func fromQuestion(q catalog.Question) questionResponse {
	fields := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		fields = append(fields, string(f))
	}
	return questionResponse{
		ID:        q.ID,
		Milestone: string(q.Milestone),
		Fields:    fields,
		Kind:      string(q.Kind),
		Heading:   q.Heading,
		Subtitle:  q.Subtitle,
	}
}

func fromProgress(p map[catalog.Milestone]float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for m, v := range p {
		out[string(m)] = v
	}
	return out
}

func capabilityStrings(caps []models.Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	return out
}
