package debts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/shared"
)

// Handler wires HTTP endpoints for debts and sync intentions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/debts", h.list)
	r.Post("/debts", h.add)
	r.Post("/debts/batch", h.addBatch)
	r.Patch("/debts/batch", h.updateBatch)
	r.Get("/debts/sync-intentions", h.listIntentions)
	r.Get("/debts/{id}", h.get)
	r.Patch("/debts/{id}", h.update)
	r.Delete("/debts/{id}", h.remove)
	r.Post("/debts/{id}/sync-intentions", h.proposeSync)
	r.Post("/debts/{id}/sync-intentions/accept", h.acceptSync)
	r.Delete("/debts/{id}/sync-intentions", h.removeSync)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.BadRequest("invalid userId filter"))
			return
		}
		userID = &id
	}
	out, err := h.service.List(r.Context(), shared.AccountID(r.Context()), userID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	d, err := h.service.Get(r.Context(), shared.AccountID(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req AddDebtRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	d, err := h.service.Add(r.Context(), shared.AccountID(r.Context()), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) addBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out, err := h.service.AddBatch(r.Context(), shared.AccountID(r.Context()), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req UpdateDebtRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	d, err := h.service.Update(r.Context(), shared.AccountID(r.Context()), id, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request) {
	var req UpdateBatchRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out, err := h.service.UpdateBatch(r.Context(), shared.AccountID(r.Context()), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Remove(r.Context(), shared.AccountID(r.Context()), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listIntentions(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Intentions(r.Context(), shared.AccountID(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) proposeSync(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in, err := h.service.ProposeSync(r.Context(), shared.AccountID(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, in)
}

func (h *Handler) acceptSync(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.AcceptSync(r.Context(), shared.AccountID(r.Context()), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeSync(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.RemoveSync(r.Context(), shared.AccountID(r.Context()), id); err != nil {
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

func debtID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", httpx.BadRequest("invalid debt id")
	}
	return id, nil
}
