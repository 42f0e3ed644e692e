package currency

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/splitbook/splitbook/internal/platform/httpx"
)

// Handler wires HTTP endpoints for currency codes and rates.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers currency routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/currency/codes", h.codes)
	r.Get("/currency/rates", h.rates)
}

func (h *Handler) codes(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Codes())
}

func (h *Handler) rates(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		httpx.RespondError(w, h.logger, httpx.BadRequest("from and to query parameters are required"))
		return
	}
	rates, err := h.service.Rates(r.Context(), from, strings.Split(to, ","))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}
