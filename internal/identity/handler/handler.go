// Package handler wires the identity endpoints: OTP request/verify, derived
// auth state, acting-mode switches, and logout.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vendry/internal/identity/models"
	"vendry/internal/identity/service"
	id "vendry/pkg/domain"
	dErrors "vendry/pkg/domain-errors"
	"vendry/pkg/platform/httputil"
	"vendry/pkg/requestcontext"
)

// Service defines the identity operations the handler depends on.
type Service interface {
	State(ctx context.Context, userID id.UserID) (models.AuthState, error)
	SetActiveMode(ctx context.Context, userID id.UserID, mode models.ActiveMode) (models.AuthState, error)
	Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
	RequestOTP(ctx context.Context, req service.OTPRequest) error
	VerifyOTP(ctx context.Context, method models.OTPMethod, value, code string) (service.VerifiedSession, error)
	CancelOTP(ctx context.Context, method models.OTPMethod, value string) error
	ValidateSession(ctx context.Context, sessionID id.SessionID) error
}

// Handler wires identity endpoints to the identity service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an identity handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the endpoints reachable without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/otp/request", h.HandleRequestOTP)
	r.Post("/auth/otp/verify", h.HandleVerifyOTP)
	r.Post("/auth/otp/cancel", h.HandleCancelOTP)
	r.Get("/auth/state", h.HandleState)
}

// RegisterProtected mounts the endpoints that require authentication.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/auth/mode", h.HandleSetMode)
	r.Post("/auth/logout", h.HandleLogout)
}

// HandleRequestOTP handles POST /auth/otp/request.
func (h *Handler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.Decode[otpRequestBody](w, r, h.logger)
	if !ok {
		return
	}
	domainReq, err := req.toDomain()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RequestOTP(ctx, domainReq); err != nil {
		h.logger.ErrorContext(ctx, "otp request failed",
			"request_id", requestcontext.RequestID(ctx),
			"method", req.Method,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "otp requested",
		"request_id", requestcontext.RequestID(ctx),
		"method", req.Method,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

// HandleVerifyOTP handles POST /auth/otp/verify.
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[otpVerifyBody](w, r, h.logger)
	if !ok {
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Code == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "code is required"))
		return
	}

	verified, err := h.service.VerifyOTP(ctx, method, req.Value, req.Code)
	if err != nil {
		h.logger.WarnContext(ctx, "otp verification rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "otp verified",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", verified.State.Profile.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{
		Token:     verified.Token,
		SessionID: verified.SessionID.String(),
		State:     fromAuthState(verified.State),
	})
}

// HandleCancelOTP handles POST /auth/otp/cancel, discarding a pending code
// for users who back out before verifying.
func (h *Handler) HandleCancelOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[otpCancelBody](w, r, h.logger)
	if !ok {
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.CancelOTP(ctx, method, req.Value); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleState handles GET /auth/state. It works for anonymous callers too,
// returning the anonymous state with customer-only capabilities.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if !userID.IsZero() {
		if err := h.service.ValidateSession(ctx, requestcontext.SessionID(ctx)); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	state, err := h.service.State(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuthState(state))
}

// HandleSetMode handles POST /auth/mode.
func (h *Handler) HandleSetMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.Decode[modeBody](w, r, h.logger)
	if !ok {
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	state, err := h.service.SetActiveMode(ctx, userID, mode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuthState(state))
}

// HandleLogout handles POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	if err := h.service.Logout(ctx, userID, requestcontext.SessionID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "logged out",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
