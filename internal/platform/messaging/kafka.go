package messaging

import (
	"context"
	"log/slog"
	"sync"

	eventsv1 "coai/contracts/gen/events/v1"
)

const groupBuffer = 128

// Kafka is the event bus used by the outbox relay and the council consumers.
// Delivery is in-process: each consumer group on a topic owns one buffered
// channel, so every group sees every event and members of a group compete for
// it, the way broker consumer groups behave.
type Kafka struct {
	mu      sync.RWMutex
	groups  map[string]map[string]chan eventsv1.Envelope
	members map[string]int
	brokers []string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		groups:  make(map[string]map[string]chan eventsv1.Envelope),
		members: make(map[string]int),
		brokers: append([]string(nil), brokers...),
		logger:  logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event eventsv1.Envelope) error {
	k.mu.RLock()
	targets := make(map[string]chan eventsv1.Envelope, len(k.groups[topic]))
	for group, ch := range k.groups[topic] {
		targets[group] = ch
	}
	k.mu.RUnlock()

	for group, ch := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- event:
		default:
			k.logger.Warn("dropping event for slow consumer group",
				"event", "kafka_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", group,
				"event_id", event.EventID,
			)
		}
	}

	k.logger.Debug("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"consumer_groups", len(targets),
	)
	return nil
}

// Subscribe starts a consumer goroutine that runs until ctx is cancelled.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, eventsv1.Envelope) error,
) error {
	k.mu.Lock()
	byGroup, ok := k.groups[topic]
	if !ok {
		byGroup = make(map[string]chan eventsv1.Envelope)
		k.groups[topic] = byGroup
	}
	ch, ok := byGroup[consumerGroup]
	if !ok {
		ch = make(chan eventsv1.Envelope, groupBuffer)
		byGroup[consumerGroup] = ch
	}
	k.members[topic+"/"+consumerGroup]++
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		for {
			select {
			case <-ctx.Done():
				k.leave(topic, consumerGroup)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

// Wait blocks until every consumer goroutine has exited.
func (k *Kafka) Wait() {
	k.wg.Wait()
}

func (k *Kafka) Brokers() []string {
	return append([]string(nil), k.brokers...)
}

func (k *Kafka) leave(topic string, consumerGroup string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	key := topic + "/" + consumerGroup
	k.members[key]--
	if k.members[key] > 0 {
		return
	}
	delete(k.members, key)
	delete(k.groups[topic], consumerGroup)
	if len(k.groups[topic]) == 0 {
		delete(k.groups, topic)
	}
}
