package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "coai/contexts/incident-governance/council-engine/application"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/ports"
	eventsv1 "coai/contracts/gen/events/v1"
)

const defaultFinalizationCG = "council-engine-finalization-cg"

// FinalizationConsumer queues escalated sessions from council.session.finalized
// for a human reviewer. Notification is not its concern: the council use case
// notifies once, when the terminal transition is saved.
type FinalizationConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Reviews       ports.ReviewQueue
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c FinalizationConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultFinalizationCG
	}
	if err := c.Subscriber.Subscribe(ctx, eventsv1.EventCouncilSessionFinalized, group, c.handleSessionFinalized); err != nil {
		logger.Error("finalization consumer subscribe failed",
			"event", "council_finalization_consumer_subscribe_failed",
			"module", moduleName,
			"layer", "worker",
			"topic", eventsv1.EventCouncilSessionFinalized,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("finalization consumer subscription active",
		"event", "council_finalization_consumer_started",
		"module", moduleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c FinalizationConsumer) handleSessionFinalized(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(c.dedupTTL()))
	if err != nil {
		logger.Error("council finalized event dedupe failed",
			"event", "council_finalization_dedupe_failed",
			"module", moduleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("council.session.finalized replay skipped",
			"event", "council_finalization_replayed",
			"module", moduleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload eventsv1.SessionFinalizedData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("council.session.finalized payload decode failed",
			"event", "council_finalization_decode_failed",
			"module", moduleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if c.Reviews == nil || entities.FinalDecision(payload.FinalDecision) != entities.FinalDecisionEscalated {
		return nil
	}
	return c.enqueueReview(ctx, event.EventID, payload)
}

func (c FinalizationConsumer) enqueueReview(ctx context.Context, eventID string, payload eventsv1.SessionFinalizedData) error {
	logger := application.ResolveLogger(c.Logger)
	reviewID, err := c.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	request := entities.ReviewRequest{
		ReviewID:    reviewID,
		SessionID:   strings.TrimSpace(payload.SessionID),
		SubjectID:   strings.TrimSpace(payload.SubjectID),
		SubjectType: entities.SubjectType(payload.SubjectType),
		Tally: entities.Tally{
			Approve:  payload.Approve,
			Reject:   payload.Reject,
			Escalate: payload.Escalate,
		},
		Cutoff:    payload.Cutoff,
		CreatedAt: c.now(),
	}
	if err := c.Reviews.EnqueueReview(ctx, request); err != nil {
		logger.Error("council review enqueue failed",
			"event", "council_review_enqueue_failed",
			"module", moduleName,
			"layer", "worker",
			"event_id", eventID,
			"session_id", request.SessionID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("council escalation queued for human review",
		"event", "council_review_enqueued",
		"module", moduleName,
		"layer", "worker",
		"event_id", eventID,
		"session_id", request.SessionID,
		"review_id", request.ReviewID,
	)
	return nil
}

func (c FinalizationConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}

func (c FinalizationConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
