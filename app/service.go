// Package app assembles the dispatch service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/ers/config"
	"github.com/kilianp07/ers/core/dispatch"
	"github.com/kilianp07/ers/core/events"
	coremetrics "github.com/kilianp07/ers/core/metrics"
	coremon "github.com/kilianp07/ers/core/monitoring"
	"github.com/kilianp07/ers/core/simulation"
	corestore "github.com/kilianp07/ers/core/store"
	"github.com/kilianp07/ers/infra/logger"
	"github.com/kilianp07/ers/infra/metrics"
	"github.com/kilianp07/ers/infra/monitoring"
	"github.com/kilianp07/ers/infra/mqtt"
	"github.com/kilianp07/ers/infra/redis"
	"github.com/kilianp07/ers/infra/routing"
	"github.com/kilianp07/ers/internal/eventbus"
)

// sinkBuffer is the bus subscription size of each external event sink.
const sinkBuffer = 512

// Service owns the coordinator, the simulator and every adapter around them.
type Service struct {
	Coordinator *dispatch.Coordinator
	Simulator   *simulation.Simulator

	cfg   *config.Config
	log   logger.Logger
	store corestore.Store
	bus   *eventbus.Bus[events.Event]
	sink  coremetrics.MetricsSink
	mqtt  *mqtt.EventPublisher
	redis *redis.Publisher
	mon   coremon.Monitor
}

// New creates a Service from the configuration. External sinks are
// connected here so a bad broker address fails at startup.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{
		cfg: cfg,
		log: logger.New("service"),
		bus: eventbus.New[events.Event](),
		mon: mon,
	}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	if s.store, err = cfg.Store.Open(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s.Coordinator, err = dispatch.NewCoordinator(s.store, s.bus, cfg.Dispatch, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	journal, err := cfg.Logging.Open()
	if err != nil {
		return nil, fmt.Errorf("dispatch journal: %w", err)
	}
	s.Coordinator.SetJournal(journal)

	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.Coordinator.SetMetricsSink(s.sink)

	if cfg.Routing.Enabled() {
		ors, err := routing.NewORSClient(cfg.Routing)
		if err != nil {
			return nil, fmt.Errorf("routing: %w", err)
		}
		s.Coordinator.SetETAProvider(ors)
	}
	if cfg.MQTT.Enabled() {
		if s.mqtt, err = mqtt.NewEventPublisher(cfg.MQTT, logger.New("mqtt")); err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
	}
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if s.redis, err = redis.NewPublisher(rdb, cfg.Redis, logger.New("redis")); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	if s.Simulator, err = simulation.New(s.Coordinator, s.bus, cfg.Simulation, logger.New("simulation")); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	if cfg.Seed.File != "" {
		if _, err := s.SeedFile(ctx, cfg.Seed.File); err != nil {
			return nil, err
		}
	}
	ok = true
	return s, nil
}

// SeedFile loads fixtures from path into the store.
func (s *Service) SeedFile(ctx context.Context, path string) (SeedResult, error) {
	f, err := LoadFixtures(path)
	if err != nil {
		return SeedResult{}, err
	}
	res, err := Seed(ctx, s.Coordinator, f)
	if err != nil {
		return res, err
	}
	s.log.Infof("seeded %d vehicles and %d hospitals from %s", res.Vehicles, res.Hospitals, path)
	return res, nil
}

// Run starts the adapters and blocks until ctx is canceled or a server
// fails.
func (s *Service) Run(ctx context.Context) error {
	defer coremon.Recover()
	g, ctx := errgroup.WithContext(ctx)

	metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	if s.mqtt != nil {
		eventbus.Forward(ctx, s.bus, sinkBuffer, s.mqtt.Publish)
	}
	if s.redis != nil {
		eventbus.Forward(ctx, s.bus, sinkBuffer, s.redis.Publish)
	}
	if s.cfg.Simulation.Enabled {
		g.Go(func() error {
			s.Simulator.Run(ctx)
			return nil
		})
	}
	if addr := s.cfg.HTTP.MetricsAddr; addr != "" {
		g.Go(func() error {
			return metrics.StartPromServer(ctx, addr, nil, logger.New("metrics"))
		})
	}
	g.Go(func() error { return s.serve(ctx) })
	return g.Wait()
}

func (s *Service) serve(ctx context.Context) error {
	hc := s.cfg.HTTP
	srv := &http.Server{
		Addr:              hc.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(hc.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(hc.WriteTimeoutMS) * time.Millisecond,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(hc.ShutdownTimeoutMS)*time.Millisecond)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving API on %s", hc.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	var errs []error
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.Coordinator != nil {
		errs = append(errs, s.Coordinator.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.mon != nil {
		s.mon.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
