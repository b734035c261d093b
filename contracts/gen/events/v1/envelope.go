package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope shared by every
// producer and consumer on the bus. Fields are append-only.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Council event types. All of them are partitioned by session_id.
const (
	EventCouncilSessionOpened    = "council.session.opened"
	EventCouncilVoteCast         = "council.vote.cast"
	EventCouncilSessionFinalized = "council.session.finalized"
	EventCouncilSessionCompleted = "council.session.completed"
)

// SessionFinalizedData is the payload of council.session.finalized.
type SessionFinalizedData struct {
	SessionID     string    `json:"session_id"`
	SubjectID     string    `json:"subject_id"`
	SubjectType   string    `json:"subject_type"`
	FinalDecision string    `json:"final_decision"`
	Status        string    `json:"status"`
	Approve       int       `json:"approve"`
	Reject        int       `json:"reject"`
	Escalate      int       `json:"escalate"`
	Cutoff        bool      `json:"cutoff"`
	OccurredAt    time.Time `json:"occurred_at"`
}
