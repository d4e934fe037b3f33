package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tournevent/fezdelivery/internal/config"
	"github.com/tournevent/fezdelivery/internal/telemetry"
	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/fez"
	"github.com/tournevent/fezdelivery/pkg/label"
	"github.com/tournevent/fezdelivery/pkg/session"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// app bundles the wired workflow components.
type app struct {
	cfg        *config.Config
	logger     *otelzap.Logger
	registry   *prometheus.Registry
	metrics    *telemetry.Metrics
	sessions   session.Store
	orders     commerce.OrderStore
	engine     *delivery.QuoteEngine
	submitter  *delivery.Submitter
	dispatcher *delivery.Dispatcher
	status     *delivery.StatusReader
	rates      *delivery.RateCalculator
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Closing resource failed", zap.Error(err))
		}
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel,
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.Version),
	)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

func initMetrics() (*prometheus.Registry, *telemetry.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, telemetry.NewMetrics(reg)
}

func initSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.SessionStore {
	case "redis":
		store, err := session.NewRedisStore(cfg.RedisURL, session.Namespace, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return session.NewMemoryStore(session.Namespace), nil, nil
	}
}

func initOrderStore(ctx context.Context, cfg *config.Config) (commerce.OrderStore, func() error, error) {
	switch cfg.OrderStore {
	case "postgres":
		store, err := commerce.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case "woocommerce":
		return commerce.NewWooCommerceStore(commerce.WooCommerceConfig{
			StoreURL:       cfg.WooCommerceURL,
			ConsumerKey:    cfg.WooCommerceKey,
			ConsumerSecret: cfg.WooCommerceSecret,
		}), nil, nil
	default:
		return commerce.NewMemoryStore(), nil, nil
	}
}

func initProvider(cfg *config.Config, logger *otelzap.Logger, metrics *telemetry.Metrics) *fez.Client {
	tracer := otel.Tracer(cfg.ServiceName)

	return fez.New(fez.Config{
		BaseURL:           cfg.APIBaseURL(),
		UserID:            cfg.FezUserID,
		Password:          cfg.FezPassword,
		Timeout:           cfg.FezTimeout,
		RequestsPerSecond: cfg.FezRequestsPerSecond,
		UseMock:           cfg.FezUseMock,
	}, logger, tracer).WithRecorder(metrics)
}

// initApp wires every component from configuration.
func initApp(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	a.registry, a.metrics = initMetrics()

	sessions, closeSessions, err := initSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	a.sessions = sessions
	if closeSessions != nil {
		a.closers = append(a.closers, closeSessions)
	}

	orders, closeOrders, err := initOrderStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("order store: %w", err)
	}
	a.orders = orders
	if closeOrders != nil {
		a.closers = append(a.closers, closeOrders)
	}

	trigger, err := delivery.ParseTrigger(cfg.FezTrigger)
	if err != nil {
		a.Close()
		return nil, err
	}

	provider := initProvider(cfg, logger, a.metrics)
	states := delivery.DefaultStateTable()

	a.engine = delivery.NewQuoteEngine(provider, states, logger)
	a.submitter = delivery.NewSubmitter(provider, orders, a.engine, delivery.SubmitterConfig{
		PickupState:       cfg.FezPickupState,
		HomeCountry:       cfg.FezHomeCountry,
		CODMethods:        cfg.FezCODMethods,
		UniqueIDPrefix:    cfg.FezUniqueIDPrefix,
		DefaultItemWeight: cfg.FezDefaultItemWeight,
	}, logger).WithObserver(a.metrics)
	a.dispatcher = delivery.NewDispatcher(trigger, a.submitter, logger)
	a.status = delivery.NewStatusReader(provider, label.NewRenderer(label.Config{
		TempDir:    cfg.LabelTempDir,
		BarcodeURL: cfg.LabelBarcodeURL,
	}), cfg.TrackingBaseURL(), logger)
	a.rates = delivery.NewRateCalculator(cfg.FezEnabled, states, cfg.FezDefaultItemWeight, logger)

	return a, nil
}
