package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "coai/contexts/incident-governance/council-engine/application"
	"coai/contexts/incident-governance/council-engine/ports"
	eventsv1 "coai/contracts/gen/events/v1"
)

const moduleName = application.ModuleName

// ErrUnsupportedEventType marks an outbox row whose event type is not one of
// the council topics. The row stays pending.
var ErrUnsupportedEventType = errors.New("unsupported council event type")

var councilTopics = map[string]struct{}{
	eventsv1.EventCouncilSessionOpened:    {},
	eventsv1.EventCouncilVoteCast:         {},
	eventsv1.EventCouncilSessionFinalized: {},
	eventsv1.EventCouncilSessionCompleted: {},
}

// OutboxRelay publishes persisted council outbox records to the event bus.
//
// Rows are partitioned by session. Within a session they are published in
// outbox order, so a consumer never sees council.session.finalized before the
// votes that led to it. A failing row holds back the rest of its session until
// the next cycle; other sessions in the batch are still published.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows and marks each row
// published only after broker publish succeeds. It returns every failure of
// the cycle joined together.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("council outbox list failed",
			"event", "council_outbox_list_failed",
			"module", moduleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		logger.Debug("council outbox relay found no pending rows",
			"event", "council_outbox_relay_noop",
			"module", moduleName,
			"layer", "worker",
			"batch_size", limit,
		)
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	var (
		errs      []error
		held      = make(map[string]struct{})
		published = make(map[string]int)
		deferred  int
	)
	for _, row := range pending {
		session := sessionKey(row)
		if _, ok := held[session]; ok {
			deferred++
			continue
		}
		topic, err := r.relay(ctx, logger, row, now)
		if err != nil {
			held[session] = struct{}{}
			errs = append(errs, err)
			continue
		}
		published[topic]++
	}

	logger.Info("council outbox relay cycle completed",
		"event", "council_outbox_relay_completed",
		"module", moduleName,
		"layer", "worker",
		"opened", published[eventsv1.EventCouncilSessionOpened],
		"votes", published[eventsv1.EventCouncilVoteCast],
		"finalized", published[eventsv1.EventCouncilSessionFinalized],
		"completed", published[eventsv1.EventCouncilSessionCompleted],
		"held_sessions", len(held),
		"deferred_rows", deferred,
	)
	return errors.Join(errs...)
}

func (r OutboxRelay) relay(ctx context.Context, logger *slog.Logger, row ports.OutboxMessage, now time.Time) (string, error) {
	var event ports.EventEnvelope
	if err := json.Unmarshal(row.Payload, &event); err != nil {
		logger.Error("council outbox decode failed",
			"event", "council_outbox_decode_failed",
			"module", moduleName,
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"error", err.Error(),
		)
		return "", err
	}
	topic := strings.TrimSpace(event.EventType)
	if topic == "" {
		topic = row.EventType
	}
	if _, ok := councilTopics[topic]; !ok {
		logger.Error("council outbox row has unsupported event type",
			"event", "council_outbox_unsupported_event_type",
			"module", moduleName,
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"event_type", topic,
		)
		return "", fmt.Errorf("%w: %q (outbox %s)", ErrUnsupportedEventType, topic, row.OutboxID)
	}
	if err := r.Publisher.Publish(ctx, topic, event); err != nil {
		logger.Error("council outbox publish failed",
			"event", "council_outbox_publish_failed",
			"module", moduleName,
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"event_id", event.EventID,
			"event_type", topic,
			"session_id", event.PartitionKey,
			"error", err.Error(),
		)
		return "", err
	}
	if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
		logger.Error("council outbox mark published failed",
			"event", "council_outbox_mark_published_failed",
			"module", moduleName,
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"error", err.Error(),
		)
		return "", err
	}
	return topic, nil
}

// sessionKey is the ordering key of a row. Rows without a partition key are
// ordered only against themselves.
func sessionKey(row ports.OutboxMessage) string {
	if key := strings.TrimSpace(row.PartitionKey); key != "" {
		return key
	}
	return "outbox:" + row.OutboxID
}
