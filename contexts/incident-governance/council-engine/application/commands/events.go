package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"coai/contexts/incident-governance/council-engine/ports"
)

const sourceService = "council-engine"

func newCouncilEnvelope(
	eventID string,
	eventType string,
	sessionID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	// Council events are partitioned by session so consumers see one session's
	// events in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "session_id",
		PartitionKey:     sessionID,
		Data:             payload,
	}, nil
}

func hashRequest(payload map[string]string) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
