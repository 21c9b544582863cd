package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/taxfolio/declaration/src/security"
	"github.com/username/taxfolio/declaration/src/services"
	"github.com/username/taxfolio/declaration/src/utils"
	"golang.org/x/time/rate"
)

// RouterConfig holds what the HTTP API needs.
type RouterConfig struct {
	Reports            services.ReportService
	Auth               *security.AuthService
	MaxUploadSizeBytes int64
	RateLimitRPS       int
	RateLimitBurst     int
	AllowedOrigins     []string
}

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	h := NewReportHandler(cfg.Reports, cfg.MaxUploadSizeBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS(cfg.AllowedOrigins))
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"message": "Tax declaration service is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/parsers", h.HandleListParsers)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Auth))
			r.Post("/reports", h.HandleCreateReport)
			r.Get("/reports/{runID}", h.HandleGetReport)
			r.Get("/reports/{runID}/export/{table}", h.HandleExport)
		})
	})
	return r
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
