package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"phonecheck/internal/api"
	"phonecheck/internal/app"
	jwttoken "phonecheck/internal/jwt_token"
	pipelinemetrics "phonecheck/internal/pipeline/metrics"
	"phonecheck/internal/platform/config"
	"phonecheck/internal/platform/httpserver"
	"phonecheck/internal/platform/logger"
	platformmetrics "phonecheck/internal/platform/metrics"
	ratelimitmetrics "phonecheck/internal/ratelimit/metrics"
	ratelimitmw "phonecheck/internal/ratelimit/middleware"
	"phonecheck/internal/ratelimit/models"
	ratelimitsvc "phonecheck/internal/ratelimit/service"
	"phonecheck/internal/ratelimit/store/bucket"
	"phonecheck/pkg/platform/middleware/auth"
)

// main wires the HTTP API around the lookup pipeline. Business logic lives
// in internal service packages.
func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./phonecheck.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer

	a, err := app.Build(ctx, cfg, log, app.WithPipelineMetrics(pipelinemetrics.NewWithRegistry(reg)))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to close resources", "error", err)
		}
	}()

	var validator auth.TokenValidator
	if cfg.Auth.Disabled {
		log.Warn("api authentication disabled")
	} else {
		jwtSvc, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return err
		}
		validator = jwtSvc.Validator()
	}

	var buckets ratelimitsvc.BucketStore = bucket.NewInMemoryBucketStore()
	if cfg.Storage.RateLimit == config.BackendRedis {
		buckets = bucket.NewRedisStore(a.Redis.Client)
	}
	limiter := ratelimitsvc.New(buckets, models.Limits{
		PerIP:        cfg.RateLimit.PerIP,
		IPWindow:     cfg.RateLimit.IPWindow,
		Global:       cfg.RateLimit.Global,
		GlobalWindow: cfg.RateLimit.GlobalWindow,
	})

	opts := []api.Option{api.WithVersion(cfg.Server.Version)}
	for name, check := range a.HealthChecks() {
		opts = append(opts, api.WithHealthCheck(name, check))
	}
	handler := api.New(api.Services{
		Analyzer:  a.Pipeline,
		Safelist:  a.Safelist,
		Blacklist: a.Blacklist,
		OTP:       a.OTP,
		Stats:     a.Recorder,
	}, log, opts...)

	router := api.NewRouter(api.RouterConfig{
		Handler: handler,
		Logger:  log,
		RateLimit: ratelimitmw.New(limiter, log,
			ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
			ratelimitmw.WithMetrics(ratelimitmetrics.NewWithRegistry(reg)),
		),
		Auth:       validator,
		AdminToken: cfg.Auth.AdminToken,
		Metrics:    platformmetrics.NewWithRegistry(reg),
		Gatherer:   prometheus.DefaultGatherer,
	})

	log.Info("starting phonecheck api",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"version", cfg.Server.Version,
	)
	return httpserver.Run(ctx, httpserver.New(cfg.Server, router), cfg.Server, log)
}
