package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/isdelr/stencil-be/internal/api/respond"
	"github.com/isdelr/stencil-be/internal/apperr"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/metrics"
	"github.com/isdelr/stencil-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// UserHandler handles signup, signin and password reset requests.
type UserHandler struct {
	service services.AuthServiceProvider
	metrics metrics.Recorder
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.AuthServiceProvider, rec metrics.Recorder) *UserHandler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &UserHandler{service: service, metrics: rec}
}

// SignupPayload defines the structure for registration requests.
type SignupPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// SigninPayload defines the structure for JSON login requests.
type SigninPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetRequestPayload starts a password reset.
type ResetRequestPayload struct {
	Email string `json:"email"`
}

// ResetConfirmPayload completes a password reset.
type ResetConfirmPayload struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *UserHandler) record(flow string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	h.metrics.RecordAuthAttempt(flow, outcome)
}

// Signup handles new user registration.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}

	_, err := h.service.Signup(r.Context(), services.RegisterInput{
		Email:    payload.Email,
		Username: payload.Username,
		FullName: payload.FullName,
		Password: payload.Password,
	})
	h.record("signup", err)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "User created successfully")
}

// Signin handles user authentication and token issuance. It accepts a JSON
// body or an OAuth2 password-grant form, whose username field carries the
// email address.
func (h *UserHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var payload SigninPayload
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		parse := r.ParseForm
		if mediaType == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxBodyBytes) }
		}
		if err := parse(); err != nil {
			respond.Error(w, r, apperr.InvalidInput("Invalid form body"))
			return
		}
		payload.Email = r.PostForm.Get("username")
		payload.Password = r.PostForm.Get("password")
	default:
		if err := decodeJSON(w, r, &payload); err != nil {
			respond.Error(w, r, err)
			return
		}
	}

	resp, err := h.service.Signin(r.Context(), payload.Email, payload.Password)
	h.record("signin", err)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			hlog.FromRequest(r).Warn().Msg("Failed authentication attempt")
		}
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

// RequestPasswordReset mails a reset token to the account owner.
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload ResetRequestPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}

	err := h.service.RequestPasswordReset(r.Context(), payload.Email)
	h.record("reset_request", err)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Password reset email sent")
}

// ConfirmPasswordReset sets a new password using a reset token.
func (h *UserHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload ResetConfirmPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}

	err := h.service.ConfirmPasswordReset(r.Context(), payload.Token, payload.NewPassword)
	h.record("reset_confirm", err)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Password reset successfully")
}

// GetMe returns the authenticated caller's account.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), auth.CallerFromContext(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}
