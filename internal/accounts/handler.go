package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/splitbook/splitbook/internal/auth"
	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/shared"
)

// Handler wires HTTP endpoints for account settings and connections.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	authService *auth.Service
	validator   *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, authService *auth.Service) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		authService: authService,
		validator:   validator.New(),
	}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/account", h.account)
	r.Patch("/account/password", h.changePassword)
	r.Get("/account/settings", h.settings)
	r.Patch("/account/settings", h.updateSettings)
	r.Get("/connections/intentions", h.listIntentions)
	r.Post("/connections/intentions", h.propose)
	r.Delete("/connections/intentions/{id}", h.removeIntention)
}

type passwordRequest struct {
	Current string `json:"current" validate:"required"`
	Next    string `json:"next" validate:"required,min=8"`
}

type settingsRequest struct {
	AutoAcceptDebts bool `json:"autoAcceptDebts"`
}

type proposeRequest struct {
	UserID      int64  `json:"userId" validate:"required,gt=0"`
	TargetEmail string `json:"targetEmail" validate:"required,email"`
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	acc, err := h.authService.Account(r.Context(), shared.AccountID(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.authService.ChangePassword(r.Context(), shared.AccountID(r.Context()), req.Current, req.Next); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context(), shared.AccountID(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	settings, err := h.service.UpdateSettings(r.Context(), shared.AccountID(r.Context()), req.AutoAcceptDebts)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) listIntentions(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Intentions(r.Context(), shared.AccountID(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.ProposeConnection(r.Context(), shared.AccountID(r.Context()), req.UserID, req.TargetEmail)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) removeIntention(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.BadRequest("invalid intention id"))
		return
	}
	if err := h.service.RemoveIntention(r.Context(), shared.AccountID(r.Context()), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return httpx.Validate(h.validator, target)
}
