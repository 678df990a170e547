package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ratelimitmw "phonecheck/internal/ratelimit/middleware"
	platformmetrics "phonecheck/internal/platform/metrics"
	"phonecheck/pkg/platform/middleware/admin"
	"phonecheck/pkg/platform/middleware/auth"
	"phonecheck/pkg/platform/middleware/metadata"
	"phonecheck/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// RouterConfig collects the cross-cutting pieces mounted around the handler.
// Nil RateLimit, Auth or Metrics leave that layer out.
type RouterConfig struct {
	Handler    *Handler
	Logger     *slog.Logger
	RateLimit  *ratelimitmw.Middleware
	Auth       auth.TokenValidator
	AdminToken string
	Metrics    *platformmetrics.Metrics
	Gatherer   prometheus.Gatherer
}

// NewRouter builds the HTTP handler. /api/health and /metrics stay outside
// auth and rate limiting.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := cfg.Handler

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))
			if cfg.RateLimit != nil {
				r.Use(cfg.RateLimit.GlobalThrottle())
				r.Use(cfg.RateLimit.RateLimit())
			}
			if cfg.Auth != nil {
				r.Use(auth.RequireAuth(cfg.Auth, logger))
			}
			mountProtected(r, h, cfg.AdminToken, logger)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w)
	})
	return r
}

func mountProtected(r chi.Router, h *Handler, adminToken string, logger *slog.Logger) {
	r.Post("/phone/lookup", h.HandleLookup)

	r.Get("/safelist/{number}", h.HandleGetSafelist)
	r.Get("/blacklist", h.HandleListBlacklist)
	r.Get("/blacklist/{number}", h.HandleCheckBlacklist)

	r.Post("/otp/send", h.HandleSendOTP)
	r.Post("/otp/verify", h.HandleVerifyOTP)

	r.Get("/stats/summary", h.HandleStatsSummary)
	r.Get("/stats/performance", h.HandleStatsPerformance)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		r.Post("/safelist", h.HandleAddSafelist)
		r.Post("/blacklist", h.HandleAddBlacklist)
		r.Delete("/blacklist/{number}", h.HandleRemoveBlacklist)
	})
}
