package ports

import (
	"context"
	"time"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	eventsv1 "coai/contracts/gen/events/v1"
)

// SessionRepository is the persistence boundary of the council engine.
// AppendVote must reject a second vote by the same agent with
// ErrDuplicateVote and must increment the session vote count atomically with
// the insert. SaveSessionResult only transitions sessions still in voting
// whose vote count equals expectedVoteCount, and returns ErrConflict
// otherwise.
type SessionRepository interface {
	CreateSession(ctx context.Context, session entities.Session) error
	GetSession(ctx context.Context, sessionID string) (entities.Session, error)
	ListSessions(ctx context.Context, filter entities.SessionFilter) ([]entities.Session, error)
	AppendVote(ctx context.Context, vote entities.Vote) (entities.Session, error)
	ListVotes(ctx context.Context, sessionID string) ([]entities.Vote, error)
	SaveSessionResult(ctx context.Context, sessionID string, result entities.Classification, expectedVoteCount int, finalizedAt time.Time) (entities.Session, error)
	CompleteSession(ctx context.Context, sessionID string, reviewerID string, notes string, completedAt time.Time) (entities.Session, error)
	ListExpiredVotingSessions(ctx context.Context, now time.Time, limit int) ([]entities.Session, error)
}

// SessionFinalizedNotice is handed to the notification layer once per
// terminal transition.
type SessionFinalizedNotice struct {
	SessionID     string
	SubjectID     string
	SubjectType   entities.SubjectType
	FinalDecision entities.FinalDecision
	Status        entities.SessionStatus
	Tally         entities.Tally
}

type Notifier interface {
	NotifySessionFinalized(ctx context.Context, notice SessionFinalizedNotice) error
}

// ReviewQueue holds escalated sessions awaiting a human reviewer. Enqueue is
// keyed by session, so re-delivery of the same escalation is a no-op.
type ReviewQueue interface {
	EnqueueReview(ctx context.Context, request entities.ReviewRequest) error
	ListReviews(ctx context.Context, limit int) ([]entities.ReviewRequest, error)
}

type RosterSource interface {
	Roster(ctx context.Context) (entities.Roster, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	ResourceID  string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type EventEnvelope = eventsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
