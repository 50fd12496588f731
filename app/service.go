// Package app assembles the dispatch engine from configuration: storage,
// collaborator clients, notification transport, telemetry sinks, the HTTP
// API and the background sweep.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/strayaid/rescuedispatch/api"
	"github.com/strayaid/rescuedispatch/config"
	"github.com/strayaid/rescuedispatch/core/dispatch"
	coremetrics "github.com/strayaid/rescuedispatch/core/metrics"
	"github.com/strayaid/rescuedispatch/core/store"
	"github.com/strayaid/rescuedispatch/infra/events"
	"github.com/strayaid/rescuedispatch/infra/logger"
	"github.com/strayaid/rescuedispatch/infra/metrics"
	"github.com/strayaid/rescuedispatch/infra/notify"
	"github.com/strayaid/rescuedispatch/infra/registry"
	"github.com/strayaid/rescuedispatch/infra/reports"
	"github.com/strayaid/rescuedispatch/infra/store/postgres"
	"github.com/strayaid/rescuedispatch/internal/eventbus"
	"github.com/strayaid/rescuedispatch/jobs/redispatch"
)

// Service orchestrates the dispatch manager and its adapters.
type Service struct {
	Manager *dispatch.Manager

	cfg      *config.Config
	store    store.Store
	bus      eventbus.EventBus
	notifier *notify.MQTTNotifier
	bridge   *events.AMQPBridge
	sweeper  *redispatch.Sweeper
	server   *http.Server
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.NewZerologLogger("service", cfg.Logging.Level)

	st, err := newStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	reg, err := newRegistry(cfg.Registry)
	if err != nil {
		return nil, err
	}
	reps, err := newReports(cfg.Reports)
	if err != nil {
		return nil, err
	}

	var notifier *notify.MQTTNotifier
	if cfg.Notifier.Enabled {
		notifier, err = notify.NewMQTTNotifier(cfg.Notifier, logger.NewZerologLogger("notifier", cfg.Logging.Level))
		if err != nil {
			return nil, fmt.Errorf("notifier: %w", err)
		}
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()

	var bridge *events.AMQPBridge
	if cfg.Events.Enabled {
		bridge, err = events.NewAMQPBridge(cfg.Events, logger.NewZerologLogger("events", cfg.Logging.Level))
		if err != nil {
			return nil, fmt.Errorf("event bridge: %w", err)
		}
	}

	var managerNotifier dispatch.Notifier
	if notifier != nil {
		managerNotifier = notifier
	}
	manager, err := dispatch.NewManager(st, reg, reps, managerNotifier, cfg.Dispatch, sink, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}

	svc := &Service{
		Manager:  manager,
		cfg:      cfg,
		store:    st,
		bus:      bus,
		notifier: notifier,
		bridge:   bridge,
		log:      logg,
	}
	if cfg.Redispatch.Enabled {
		svc.sweeper = redispatch.NewSweeper(st, manager, cfg.Redispatch, logger.NewZerologLogger("redispatch", cfg.Logging.Level))
	}
	handler := api.NewHandler(manager, logger.NewZerologLogger("api", cfg.Logging.Level))
	svc.server = &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Router()}
	return svc, nil
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	default:
		return store.NewMemoryStore(), nil
	}
}

func newRegistry(cfg config.CollaboratorConfig) (dispatch.VolunteerRegistry, error) {
	switch cfg.Backend {
	case "http":
		return registry.NewHTTPRegistry(cfg.BaseURL), nil
	default:
		return registry.NewMemoryRegistry(), nil
	}
}

func newReports(cfg config.CollaboratorConfig) (dispatch.ReportService, error) {
	switch cfg.Backend {
	case "http":
		return reports.NewHTTPReports(cfg.BaseURL), nil
	default:
		return reports.NewMemoryReports(), nil
	}
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.bridge != nil {
		go s.bridge.Run(s.bus)
	}

	var runner *cron.Cron
	if s.sweeper != nil {
		runner = cron.New()
		if _, err := s.sweeper.Schedule(runner, s.cfg.Redispatch.Schedule); err != nil {
			return fmt.Errorf("schedule redispatch: %w", err)
		}
		runner.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http api listening on %s", s.cfg.HTTP.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if runner != nil {
		<-runner.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.bridge != nil {
		s.bridge.Stop()
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
	s.bus.Close()
	return s.store.Close()
}
