// Package handler exposes the onboarding wizard over HTTP: current question,
// forward/back navigation, draft edits, file attachment, and the completion
// transaction. Anonymous callers get a memory-only wizard keyed by the
// X-Wizard-Session header; authenticated callers resume from their profile
// and flush durably at milestone boundaries.
package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vendry/internal/identity/models"
	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/draft"
	"vendry/internal/onboarding/wizard"
	id "vendry/pkg/domain"
	dErrors "vendry/pkg/domain-errors"
	"vendry/pkg/platform/httputil"
	"vendry/pkg/requestcontext"
)

// wizardSessionHeader carries the anonymous wizard session ID. The server
// mints one on first contact and echoes it; clients replay it on every
// onboarding request until they authenticate.
const wizardSessionHeader = "X-Wizard-Session"

// maxFileBytes bounds a single attached file.
const maxFileBytes = 10 << 20

// Identity defines the identity operations the wizard handler depends on.
type Identity interface {
	State(ctx context.Context, userID id.UserID) (models.AuthState, error)
	CompleteOnboarding(ctx context.Context, userID id.UserID) (models.AuthState, error)
	ResetOnboarding(ctx context.Context, userID id.UserID) (models.AuthState, error)
	Flusher(userID id.UserID) wizard.Flusher
}

// Handler wires onboarding endpoints to wizard sessions and the identity
// service.
type Handler struct {
	identity Identity
	registry *registry
	logger   *slog.Logger
}

// New constructs an onboarding handler over the given catalog.
func New(identity Identity, c *catalog.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		identity: identity,
		registry: newRegistry(c),
		logger:   logger,
	}
}

// Register mounts onboarding endpoints on the router. All of them work for
// anonymous callers except completion and reset, which need a profile.
func (h *Handler) Register(r chi.Router) {
	r.Get("/onboarding/current", h.HandleCurrent)
	r.Get("/onboarding/progress", h.HandleProgress)
	r.Post("/onboarding/next", h.HandleNext)
	r.Post("/onboarding/back", h.HandleBack)
	r.Patch("/onboarding/draft", h.HandlePatchDraft)
	r.Post("/onboarding/draft/files", h.HandleAttachFile)
	r.Delete("/onboarding/draft/files", h.HandleRemoveFile)
	r.Post("/onboarding/complete", h.HandleComplete)
	r.Post("/onboarding/reset", h.HandleReset)
}

// session resolves the wizard session for this request. Authenticated
// requests adopt a still-live anonymous session first, so answers given
// before signing in survive authentication.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session, error) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	if userID.IsZero() {
		key := r.Header.Get(wizardSessionHeader)
		if key == "" {
			key = uuid.NewString()
		}
		w.Header().Set(wizardSessionHeader, key)
		return h.registry.anonymous(key), nil
	}

	if anonKey := r.Header.Get(wizardSessionHeader); anonKey != "" {
		if s, ok := h.registry.adopt(anonKey, userID, h.identity.Flusher(userID)); ok {
			if err := s.controller.FlushNow(ctx); err != nil {
				h.logger.WarnContext(ctx, "adopted draft flush failed",
					"user_id", userID.String(),
					"error", err,
				)
			}
			return s, nil
		}
	}

	state, err := h.identity.State(ctx, userID)
	if err != nil {
		return nil, err
	}
	return h.registry.forUser(userID, state.Onboarding, h.identity.Flusher(userID)), nil
}

// HandleCurrent handles GET /onboarding/current.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, currentResponse{
		Question:  fromQuestion(s.controller.Current()),
		Draft:     s.controller.Drafts().Snapshot(),
		CanGoBack: s.controller.CanGoBack(),
		Completed: s.controller.Completed(),
		Progress:  fromProgress(s.controller.Progress()),
	})
}

// HandleProgress handles GET /onboarding/progress.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]map[string]float64{
		"progress": fromProgress(s.controller.Progress()),
	})
}

// HandleNext handles POST /onboarding/next. Validation failures come back as
// 200 with a validation_error field: the position did not change and the
// client renders the message inline, not as a transport failure.
func (h *Handler) HandleNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	adv, err := s.controller.Next(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := advanceResponse{
		Completed: adv.Completed,
		Progress:  fromProgress(s.controller.Progress()),
	}
	switch {
	case adv.ValidationErr != nil:
		resp.ValidationError = adv.ValidationErr.Error()
		q := fromQuestion(s.controller.Current())
		resp.Question = &q
	case adv.Completed:
		// Terminal review passed; the client now calls /onboarding/complete.
	default:
		q := fromQuestion(adv.Question)
		resp.Question = &q
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleBack handles POST /onboarding/back.
func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := fromQuestion(s.controller.Back())
	httputil.WriteJSON(w, http.StatusOK, advanceResponse{
		Question: &q,
		Progress: fromProgress(s.controller.Progress()),
	})
}

// HandlePatchDraft handles PATCH /onboarding/draft. The body is a partial
// draft; absent fields stay untouched, present fields replace wholesale.
func (h *Handler) HandlePatchDraft(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	patch, ok := httputil.Decode[draft.Patch](w, r, h.logger)
	if !ok {
		return
	}
	next := s.controller.Drafts().Apply(patch)
	httputil.WriteJSON(w, http.StatusOK, draftResponse{Draft: next})
}

// HandleAttachFile handles POST /onboarding/draft/files. File bytes arrive
// base64-encoded and land in the session blob arena; the draft records only
// the metadata and the blob reference.
func (h *Handler) HandleAttachFile(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[attachFileRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file name is required"))
		return
	}

	meta := draft.FileMeta{Name: req.Name, MimeType: req.MimeType}
	if req.Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file data must be base64"))
			return
		}
		if len(data) > maxFileBytes {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file is too large"))
			return
		}
		meta.SizeBytes = int64(len(data))
		meta.BlobRef = s.blobs.Put(data)
	} else {
		meta.SizeBytes = req.SizeBytes
	}

	next, err := s.controller.Drafts().AppendFile(draft.FieldKey(req.Field), meta)
	if err != nil {
		if meta.BlobRef != "" {
			s.blobs.Release(meta.BlobRef)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, draftResponse{Draft: next})
}

// HandleRemoveFile handles DELETE /onboarding/draft/files?field=...&name=...
func (h *Handler) HandleRemoveFile(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	field := r.URL.Query().Get("field")
	name := r.URL.Query().Get("name")
	if field == "" || name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "field and name are required"))
		return
	}
	next, err := s.controller.Drafts().RemoveFile(draft.FieldKey(field), name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, draftResponse{Draft: next})
}

// HandleComplete handles POST /onboarding/complete: the finalization
// transaction. An unauthenticated caller is told to sign in and keeps their
// in-memory draft; an authenticated customer is upgraded and completed in
// one durable write.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in to finish onboarding"))
		return
	}

	// Resolve the session first so a draft built before signing in is
	// adopted, then flush it so the transaction evaluates those answers.
	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := s.controller.FlushNow(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}

	state, err := h.identity.CompleteOnboarding(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Next request rebuilds the wizard from the completed profile.
	h.registry.drop(userID)
	httputil.WriteJSON(w, http.StatusOK, completeResponse{
		Status:       string(state.Onboarding.Status),
		Role:         string(state.Profile.Role),
		ActiveMode:   string(state.ActiveMode),
		Capabilities: capabilityStrings(state.Capabilities),
		CompletedAt:  state.Onboarding.CompletedAt,
	})
}

// HandleReset handles POST /onboarding/reset, discarding the draft and all
// recorded progress.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	s, err := h.session(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if !userID.IsZero() {
		if _, err := h.identity.ResetOnboarding(ctx, userID); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	s.controller.ResetProgress()
	httputil.WriteJSON(w, http.StatusOK, currentResponse{
		Question:  fromQuestion(s.controller.Current()),
		Draft:     s.controller.Drafts().Snapshot(),
		CanGoBack: s.controller.CanGoBack(),
		Progress:  fromProgress(s.controller.Progress()),
	})
}
