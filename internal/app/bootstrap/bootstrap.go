package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	councilengine "coai/contexts/incident-governance/council-engine"
	"coai/contexts/incident-governance/council-engine/adapters/notify"
	"coai/contexts/incident-governance/council-engine/application/workers"
	"coai/contexts/incident-governance/council-engine/ports"
	"coai/internal/platform/config"
	"coai/internal/platform/httpserver"
	"coai/internal/platform/messaging"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	idempotencyTTL = 7 * 24 * time.Hour
	dedupTTL       = 7 * 24 * time.Hour
)

type APIApp struct {
	server  *httpserver.Server
	council councilengine.Module
	storage storage
	// worker is set only for the memory driver, where no worker process can
	// see the store; the API then runs the background cycles itself.
	worker *inProcessWorker
	logger *slog.Logger
}

// inProcessWorker is the worker loop run inside the API process: the cutoff
// sweeper, the outbox relay and the finalization consumer on a private bus.
type inProcessWorker struct {
	bus          *messaging.Kafka
	consumer     workers.FinalizationConsumer
	sweepCutoffs bool
	consume      bool
	pollInterval time.Duration
}

type WorkerApp struct {
	council      councilengine.Module
	storage      storage
	bus          *messaging.Kafka
	consumer     workers.FinalizationConsumer
	sweepCutoffs bool
	consume      bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	roster, err := openRoster(ctx, cfg.CouncilRosterPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var bus *messaging.Kafka
	if store.driver == config.StoreDriverMemory {
		bus, err = messaging.NewKafka(nil, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	events := notify.NewBroadcaster(64)
	module := buildCouncilModule(cfg, store, roster, bus, notify.Multi{notify.LogNotifier{Logger: logger}, events}, logger)
	module.Events = events

	app := &APIApp{
		server:  httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		council: module,
		storage: store,
		logger:  logger,
	}
	if bus != nil {
		consumer := councilengine.NewFinalizationConsumer(bus, store.store, store.store, store.ids, store.clock, logger)
		consumer.DedupTTL = dedupTTL
		app.worker = &inProcessWorker{
			bus:          bus,
			consumer:     consumer,
			sweepCutoffs: cfg.EnableCouncilCutoffSweeper,
			consume:      cfg.EnableCouncilFinalizationConsumer,
			pollInterval: cfg.WorkerPollInterval,
		}
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if cfg.StoreDriver == config.StoreDriverMemory {
		return nil, errors.New("worker requires STORE_DRIVER postgres or sqlite")
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	roster, err := openRoster(ctx, cfg.CouncilRosterPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Sessions the sweeper finalizes notify through the use case; the consumer
	// only feeds the review queue.
	module := buildCouncilModule(cfg, store, roster, kafka, notify.LogNotifier{Logger: logger}, logger)
	consumer := councilengine.NewFinalizationConsumer(kafka, store.store, store.store, store.ids, store.clock, logger)
	consumer.DedupTTL = dedupTTL

	return &WorkerApp{
		council:      module,
		storage:      store,
		bus:          kafka,
		consumer:     consumer,
		sweepCutoffs: cfg.EnableCouncilCutoffSweeper,
		consume:      cfg.EnableCouncilFinalizationConsumer,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}, nil
}

// buildCouncilModule wires the engine on one storage handle. A nil bus leaves
// the outbox relay unset.
func buildCouncilModule(
	cfg config.Config,
	store storage,
	roster ports.RosterSource,
	bus *messaging.Kafka,
	notifier ports.Notifier,
	logger *slog.Logger,
) councilengine.Module {
	deps := councilengine.Dependencies{
		Sessions:           store.store,
		Idempotency:        store.store,
		Outbox:             store.store,
		Reviews:            store.store,
		Notifier:           notifier,
		Roster:             roster,
		Clock:              store.clock,
		IDGen:              store.ids,
		DefaultThreshold:   cfg.CouncilDefaultThreshold,
		DefaultCouncilSize: cfg.CouncilDefaultSize,
		VotingWindow:       cfg.CouncilVotingWindow,
		IdempotencyTTL:     idempotencyTTL,
		Logger:             logger,
	}
	if bus != nil {
		deps.OutboxRepository = store.store
		deps.Publisher = bus
	}
	return councilengine.NewModule(deps)
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"store_driver", a.storage.driver,
		"in_process_worker", a.worker != nil,
	)
	g, gctx := errgroup.WithContext(ctx)
	if a.worker != nil && a.worker.consume {
		if err := a.worker.consumer.Start(gctx); err != nil {
			return err
		}
	}
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	if a.worker == nil {
		return g.Wait()
	}
	g.Go(func() error {
		return poll(gctx, a.worker.pollInterval, a.logger, "in_process_worker_cycle", func(ctx context.Context) error {
			return runWorkerCycle(ctx, a.council, a.worker.sweepCutoffs)
		})
	})
	err := g.Wait()
	a.worker.bus.Wait()
	return err
}

func (a *APIApp) Close() error {
	return a.storage.Close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if w.consume {
		if err := w.consumer.Start(gctx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"cutoff_sweeper", w.sweepCutoffs,
		"finalization_consumer", w.consume,
	)

	g.Go(func() error {
		return poll(gctx, w.pollInterval, w.logger, "worker_cycle", func(ctx context.Context) error {
			return runWorkerCycle(ctx, w.council, w.sweepCutoffs)
		})
	})
	err := g.Wait()
	w.bus.Wait()
	return err
}

func (w *WorkerApp) Close() error {
	return w.storage.Close()
}

// runWorkerCycle finalizes expired sessions first so their events go out in
// the same relay pass.
func runWorkerCycle(ctx context.Context, module councilengine.Module, sweepCutoffs bool) error {
	var errs []error
	if sweepCutoffs {
		errs = append(errs, module.CutoffSweeper.RunOnce(ctx))
	}
	errs = append(errs, module.OutboxRelay.RunOnce(ctx))
	return errors.Join(errs...)
}

// poll runs fn immediately and then on every tick until ctx ends. Cycle
// failures are logged and retried on the next tick.
func poll(ctx context.Context, interval time.Duration, logger *slog.Logger, name string, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("background cycle failed",
				"event", "bootstrap_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"cycle", name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
