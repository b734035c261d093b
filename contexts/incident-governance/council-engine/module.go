package councilengine

import (
	"log/slog"
	"time"

	httpadapter "coai/contexts/incident-governance/council-engine/adapters/http"
	"coai/contexts/incident-governance/council-engine/adapters/memory"
	"coai/contexts/incident-governance/council-engine/adapters/notify"
	rosteradapter "coai/contexts/incident-governance/council-engine/adapters/roster"
	"coai/contexts/incident-governance/council-engine/application/commands"
	"coai/contexts/incident-governance/council-engine/application/queries"
	"coai/contexts/incident-governance/council-engine/application/workers"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/ports"
)

type Module struct {
	Handler       httpadapter.Handler
	Council       commands.CouncilUseCase
	Queries       queries.CouncilQueryUseCase
	OutboxRelay   workers.OutboxRelay
	CutoffSweeper workers.CutoffSweeper
	// Events streams finalized sessions to live listeners; nil disables the stream route.
	Events *notify.Broadcaster
	Store  *memory.Store
}

type Dependencies struct {
	Sessions           ports.SessionRepository
	Idempotency        ports.IdempotencyStore
	Outbox             ports.OutboxWriter
	OutboxRepository   ports.OutboxRepository
	Publisher          ports.EventPublisher
	Reviews            ports.ReviewQueue
	Notifier           ports.Notifier
	Roster             ports.RosterSource
	Clock              ports.Clock
	IDGen              ports.IDGenerator
	DefaultThreshold   float64
	DefaultCouncilSize int
	VotingWindow       time.Duration
	IdempotencyTTL     time.Duration
	Logger             *slog.Logger
}

func NewModule(deps Dependencies) Module {
	council := commands.CouncilUseCase{
		Sessions:           deps.Sessions,
		Idempotency:        deps.Idempotency,
		Outbox:             deps.Outbox,
		Notifier:           deps.Notifier,
		Roster:             deps.Roster,
		Clock:              deps.Clock,
		IDGen:              deps.IDGen,
		DefaultThreshold:   deps.DefaultThreshold,
		DefaultCouncilSize: deps.DefaultCouncilSize,
		VotingWindow:       deps.VotingWindow,
		IdempotencyTTL:     deps.IdempotencyTTL,
		Logger:             deps.Logger,
	}
	query := queries.CouncilQueryUseCase{
		Sessions: deps.Sessions,
		Rosters:  deps.Roster,
		Reviews:  deps.Reviews,
	}
	module := Module{
		Handler: httpadapter.Handler{
			Council: council,
			Queries: query,
			Logger:  deps.Logger,
		},
		Council: council,
		Queries: query,
		CutoffSweeper: workers.CutoffSweeper{
			Sessions: deps.Sessions,
			Council:  council,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
	}
	if deps.OutboxRepository != nil && deps.Publisher != nil {
		module.OutboxRelay = workers.OutboxRelay{
			Outbox:    deps.OutboxRepository,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		}
	}
	return module
}

// NewFinalizationConsumer wires the review queue feed for finalized sessions
// against the given store.
func NewFinalizationConsumer(
	subscriber ports.EventSubscriber,
	dedup ports.EventDedupStore,
	reviews ports.ReviewQueue,
	idGen ports.IDGenerator,
	clock ports.Clock,
	logger *slog.Logger,
) workers.FinalizationConsumer {
	return workers.FinalizationConsumer{
		Subscriber: subscriber,
		Dedup:      dedup,
		Reviews:    reviews,
		Clock:      clock,
		IDGen:      idGen,
		Logger:     logger,
	}
}

// NewInMemoryModule runs the engine on the in-process store and the default
// 33-agent roster.
func NewInMemoryModule(seed []entities.Session, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	events := notify.NewBroadcaster(64)
	module := NewModule(Dependencies{
		Sessions:         store,
		Idempotency:      store,
		Outbox:           store,
		OutboxRepository: store,
		Reviews:          store,
		Notifier:         notify.Multi{notify.LogNotifier{Logger: logger}, events},
		Roster:           rosteradapter.StaticSource{},
		Clock:            store,
		IDGen:            store,
		IdempotencyTTL:   24 * time.Hour,
		Logger:           logger,
	})
	module.Store = store
	module.Events = events
	return module
}
