// Package app builds the object graph shared by the server, the bot and the
// admin CLI from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"phonecheck/internal/analytics"
	"phonecheck/internal/blacklist"
	blackliststore "phonecheck/internal/blacklist/store"
	"phonecheck/internal/evidence/providers"
	"phonecheck/internal/evidence/providers/carrier"
	"phonecheck/internal/evidence/providers/judgment"
	"phonecheck/internal/evidence/providers/search"
	historystore "phonecheck/internal/history/store"
	"phonecheck/internal/otp"
	otpstore "phonecheck/internal/otp/store"
	"phonecheck/internal/phone"
	"phonecheck/internal/pipeline"
	pipelinemetrics "phonecheck/internal/pipeline/metrics"
	"phonecheck/internal/platform/config"
	"phonecheck/internal/platform/postgres"
	"phonecheck/internal/platform/redis"
	"phonecheck/internal/safelist"
	safeliststore "phonecheck/internal/safelist/store"
	"phonecheck/internal/scoring"
)

// App holds the wired services and the connections they share.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Normalizer phone.Normalizer

	Redis    *redis.Client
	Postgres *postgres.DB

	Safelist  *safelist.Service
	Blacklist *blacklist.Service
	OTP       *otp.Service
	Pipeline  *pipeline.Service
	Recorder  *analytics.Recorder
	Kafka     *analytics.KafkaPublisher
	Metrics   *pipelinemetrics.Metrics

	closers []func(context.Context) error
}

// Option adjusts how Build wires the graph.
type Option func(*buildOptions)

type buildOptions struct {
	metrics  *pipelinemetrics.Metrics
	noKafka  bool
	noOTP    bool
	provider *http.Client
}

// WithPipelineMetrics records pipeline and provider metrics on m.
func WithPipelineMetrics(m *pipelinemetrics.Metrics) Option {
	return func(o *buildOptions) {
		o.metrics = m
	}
}

// WithoutKafka skips the analytics publisher even when brokers are set.
func WithoutKafka() Option {
	return func(o *buildOptions) {
		o.noKafka = true
	}
}

// WithoutOTP skips the OTP service.
func WithoutOTP() Option {
	return func(o *buildOptions) {
		o.noOTP = true
	}
}

// WithProviderClient overrides the HTTP client used by the carrier and
// search providers.
func WithProviderClient(c *http.Client) Option {
	return func(o *buildOptions) {
		o.provider = c
	}
}

// Build connects to the configured backends and wires every service. Close
// releases what Build opened, even when Build fails part way.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Normalizer: phone.Normalizer{DefaultCallingCode: cfg.Pipeline.DefaultCallingCode},
		Metrics:    o.metrics,
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if a.Redis, err = redis.Open(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if a.Redis != nil {
		a.closers = append(a.closers, func(context.Context) error { return a.Redis.Close() })
	}
	if a.Postgres, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return nil, err
	}
	if a.Postgres != nil {
		a.closers = append(a.closers, func(context.Context) error { return a.Postgres.Close() })
	}

	safelistStore, err := a.safelistStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Safelist = safelist.NewService(safelistStore, safelist.WithLogger(logger), safelist.WithNormalizer(a.Normalizer))

	historyStore, err := a.historyStore(ctx)
	if err != nil {
		return nil, err
	}

	blacklistStore, err := a.blacklistStore()
	if err != nil {
		return nil, err
	}
	a.Blacklist = blacklist.NewService(blacklistStore, blacklist.WithLogger(logger), blacklist.WithNormalizer(a.Normalizer))

	if !o.noOTP {
		if a.OTP, err = a.otpService(); err != nil {
			return nil, err
		}
	}

	a.Recorder = analytics.NewRecorder(cfg.Analytics.Capacity)
	sinks := analytics.MultiSink{a.Recorder}
	if cfg.Kafka.Enabled() && !o.noKafka {
		kcfg := analytics.KafkaConfig{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		}
		if err := analytics.EnsureTopic(ctx, kcfg); err != nil {
			logger.WarnContext(ctx, "kafka topic bootstrap failed", "topic", kcfg.Topic, "error", err)
		}
		if a.Kafka, err = analytics.NewKafkaPublisher(kcfg, logger); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Kafka.Close)
		sinks = append(sinks, a.Kafka)
	}

	a.Pipeline = pipeline.New(a.Safelist, historyStore,
		a.fetcher(carrier.New(carrier.Config{
			AccountSID: cfg.Providers.Twilio.AccountSID,
			AuthToken:  cfg.Providers.Twilio.AuthToken,
			BaseURL:    cfg.Providers.Twilio.LookupURL,
			HTTPClient: o.provider,
		}), cfg.Providers.Carrier.Timeout),
		a.fetcher(search.New(search.Config{
			Endpoint:   cfg.Providers.Search.Endpoint,
			HTTPClient: o.provider,
		}), cfg.Providers.Search.Timeout),
		a.fetcher(judgment.New(judgment.Config{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			Model:   cfg.Providers.OpenAI.Model,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
		}), cfg.Providers.Judgment.Timeout),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(o.metrics),
		pipeline.WithSink(sinks),
		pipeline.WithPolicy(scoring.New(cfg.Pipeline.Weights, scoring.WithTerms(cfg.Pipeline.Keywords))),
		pipeline.WithFreshness(cfg.Pipeline.Freshness),
		pipeline.WithNormalizer(a.Normalizer),
	)
	return a, nil
}

func (a *App) fetcher(src providers.Source, timeout time.Duration) *providers.Adapter {
	opts := []providers.AdapterOption{providers.WithLogger(a.Logger)}
	if a.Metrics != nil {
		opts = append(opts, providers.WithObserver(a.Metrics))
	}
	return providers.NewAdapter(src, timeout, opts...)
}

func (a *App) safelistStore(ctx context.Context) (safelist.Store, error) {
	switch a.Config.Storage.Safelist {
	case config.BackendPostgres:
		s := safeliststore.NewPostgres(a.Postgres.SQL)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate safelist: %w", err)
		}
		return s, nil
	case config.BackendJSON:
		s, err := safeliststore.OpenJSONFile(a.Config.Storage.SafelistFile, safeliststore.WithFileNormalizer(a.Normalizer))
		if err != nil {
			return nil, err
		}
		if skipped := s.Skipped(); len(skipped) > 0 {
			a.Logger.WarnContext(ctx, "safelist file has entries that are not phone numbers",
				"file", a.Config.Storage.SafelistFile,
				"skipped", skipped,
			)
		}
		return s, nil
	default:
		return safeliststore.NewInMemoryStore(), nil
	}
}

func (a *App) historyStore(ctx context.Context) (pipeline.HistoryStore, error) {
	switch a.Config.Storage.History {
	case config.BackendPostgres:
		s := historystore.NewPostgres(a.Postgres.Pool)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate history: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		return historystore.NewRedis(a.Redis.Client, historystore.WithRetention(a.Config.Redis.HistoryRetention)), nil
	default:
		return historystore.NewInMemoryStore(), nil
	}
}

func (a *App) blacklistStore() (blacklist.Store, error) {
	if a.Config.Storage.Blacklist == config.BackendRedis {
		return blackliststore.NewRedis(a.Redis.Client), nil
	}
	return blackliststore.NewInMemoryStore(), nil
}

func (a *App) otpService() (*otp.Service, error) {
	cfg := a.Config
	var store otp.Store = otpstore.NewInMemoryStore()
	if cfg.Storage.OTP == config.BackendRedis {
		store = otpstore.NewRedis(a.Redis.Client)
	}

	var sender otp.Sender = otp.LogSender{Logger: a.Logger}
	switch cfg.OTP.Sender {
	case "twilio":
		if cfg.Providers.Twilio.From == "" {
			return nil, errors.New("otp.sender=twilio requires providers.twilio.from")
		}
		sender = otp.NewTwilioSender(otp.TwilioConfig{
			AccountSID: cfg.Providers.Twilio.AccountSID,
			AuthToken:  cfg.Providers.Twilio.AuthToken,
			From:       cfg.Providers.Twilio.From,
			BaseURL:    cfg.Providers.Twilio.APIURL,
		})
	case "log", "":
	default:
		return nil, fmt.Errorf("otp.sender: unknown sender %q", cfg.OTP.Sender)
	}

	return otp.NewService(store, sender,
		otp.WithLogger(a.Logger),
		otp.WithNormalizer(a.Normalizer),
		otp.WithTTL(cfg.OTP.TTL),
		otp.WithMaxAttempts(cfg.OTP.MaxAttempts),
	), nil
}

// HealthChecks returns a probe per connected backend.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres.Health
	}
	return checks
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
