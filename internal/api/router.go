package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/api/middleware"
	"github.com/example/liquor-inventory/internal/auth"
	"github.com/example/liquor-inventory/internal/metrics"
)

// RouterConfig holds the dependencies of the HTTP router
type RouterConfig struct {
	Handlers       *Handlers
	JWTService     *auth.JWTService
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := cfg.Handlers
	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTService))
		writer := middleware.RequireRole(auth.RoleOperator)

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.ListInventory)
			r.Get("/{product_id}/{warehouse_id}", h.GetInventory)

			r.Group(func(r chi.Router) {
				r.Use(writer)
				r.Post("/", h.CreateInventory)
				r.Post("/add", h.AddStock)
				r.Post("/reduce", h.ReduceStock)
				r.Post("/move", h.MoveStock)
				r.Post("/scan", h.RunScan)
				r.Put("/{product_id}/{warehouse_id}/best-before-date", h.UpdateBestBeforeDate)
				r.Delete("/{product_id}/{warehouse_id}", h.DeleteInventory)
			})
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Get("/{alert_id}", h.GetAlert)
			r.Post("/{alert_id}/read", h.MarkAlertRead)
			r.With(writer).Post("/", h.CreateAlert)
		})
	})

	return r
}
