package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/splitbook/splitbook/internal/accounts"
	"github.com/splitbook/splitbook/internal/auth"
	"github.com/splitbook/splitbook/internal/currency"
	"github.com/splitbook/splitbook/internal/debts"
	"github.com/splitbook/splitbook/internal/observability"
	"github.com/splitbook/splitbook/internal/receipts"
	"github.com/splitbook/splitbook/internal/users"
	"github.com/splitbook/splitbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthMiddleware  *auth.Middleware
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	UsersHandler    *users.Handler
	ReceiptsHandler *receipts.Handler
	DebtsHandler    *debts.Handler
	CurrencyHandler *currency.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}
	r.Use(chimw.Logger)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAccount)
			params.AuthHandler.MountRoutes(r)
			params.AccountsHandler.MountRoutes(r)
			params.UsersHandler.MountRoutes(r)
			params.ReceiptsHandler.MountRoutes(r)
			params.DebtsHandler.MountRoutes(r)
			params.CurrencyHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
