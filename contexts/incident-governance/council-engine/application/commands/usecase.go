package commands

import (
	"context"
	"log/slog"
	"time"

	application "coai/contexts/incident-governance/council-engine/application"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/ports"
)

const moduleName = application.ModuleName

// CouncilUseCase orchestrates council session commands. Tallying and
// classification are delegated to the pure domain services; this type owns
// validation at the boundary, idempotency, lifecycle transitions, outbox
// emission and the single notification per terminal transition.
type CouncilUseCase struct {
	Sessions           ports.SessionRepository
	Idempotency        ports.IdempotencyStore
	Outbox             ports.OutboxWriter
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

func (uc CouncilUseCase) logger() *slog.Logger {
	return application.ResolveLogger(uc.Logger)
}

func (uc CouncilUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc CouncilUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc CouncilUseCase) resolveThreshold() float64 {
	if uc.DefaultThreshold <= 0 {
		return entities.DefaultConsensusThreshold
	}
	return uc.DefaultThreshold
}

func (uc CouncilUseCase) loadRoster(ctx context.Context) (entities.Roster, error) {
	if uc.Roster == nil {
		return entities.Roster{}, nil
	}
	return uc.Roster.Roster(ctx)
}

func (uc CouncilUseCase) appendEvent(
	ctx context.Context,
	eventType string,
	sessionID string,
	occurredAt time.Time,
	data any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newCouncilEnvelope(eventID, eventType, sessionID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
