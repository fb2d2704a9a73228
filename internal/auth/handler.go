package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	rbac           rbac.Middleware
	validator      *validator.Validate
	loginLimit     int
}

// NewHandler constructs a Handler instance. loginLimit caps login attempts per
// IP and minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, rbacMW rbac.Middleware, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		rbac:           rbacMW,
		validator:      validator.New(),
		loginLimit:     loginLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	login := r.With()
	if h.loginLimit > 0 {
		login = r.With(httprate.LimitByIP(h.loginLimit, time.Minute))
	}
	login.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(h.rbac.Guard(rbac.OpAuthMe)).Get("/me", h.handleMe)
	r.Route("/password", func(r chi.Router) {
		r.With(h.rbac.Guard(rbac.OpAuthPasswordPolicy)).Get("/policy", h.handlePolicy)
		r.With(h.rbac.Guard(rbac.OpAuthPasswordChange)).Post("/change", h.handleChange)
		r.With(h.rbac.Guard(rbac.OpAuthPasswordReset)).Post("/reset/{userID}", h.handleReset)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserID             string   `json:"user_id"`
	Name               string   `json:"name"`
	Roles              []string `json:"roles"`
	Permissions        []string `json:"permissions"`
	Facilities         []string `json:"facilities"`
	Customers          []string `json:"customers"`
	MustChangePassword bool     `json:"must_change_password"`
	PasswordExpired    bool     `json:"password_expired"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logFailure("login", err)
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "internal error")
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(result.User.ID)

	ac := result.Access
	httpx.JSON(w, http.StatusOK, loginResponse{
		UserID:             result.User.ID,
		Name:               result.User.Name,
		Roles:              ac.Roles(),
		Permissions:        ac.Permissions(),
		Facilities:         ac.Facilities(),
		Customers:          ac.Customers(),
		MustChangePassword: result.MustChange,
		PasswordExpired:    result.Expired,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ac, _ := access.FromContext(r.Context())
	httpx.JSON(w, http.StatusOK, ac.Snapshot())
}

func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Policy())
}

type changeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthenticationRequired)
		return
	}
	var req changeRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.logFailure("change password", err)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrAuthenticationRequired)
		return
	}
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), id.UserID, chi.URLParam(r, "userID"), req.NewPassword); err != nil {
		h.logFailure("reset password", err)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
}
