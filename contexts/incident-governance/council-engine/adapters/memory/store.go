package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	seq       int64
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-process council store. It satisfies every persistence port
// of the engine and is used by NewInMemoryModule and the tests.
type Store struct {
	mu sync.RWMutex

	sessions    map[string]entities.Session
	votes       map[string][]entities.Vote
	voters      map[string]map[string]struct{}
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	outboxSeq   int64
	eventDedup  map[string]dedupRecord
	reviews     map[string]entities.ReviewRequest
}

func NewStore(seed []entities.Session) *Store {
	sessions := make(map[string]entities.Session, len(seed))
	for _, session := range seed {
		sessions[session.SessionID] = session
	}
	return &Store{
		sessions:    sessions,
		votes:       make(map[string][]entities.Vote),
		voters:      make(map[string]map[string]struct{}),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
		reviews:     make(map[string]entities.ReviewRequest),
	}
}

func (s *Store) CreateSession(_ context.Context, session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(session.SessionID)
	if _, exists := s.sessions[key]; exists {
		return domainerrors.ErrConflict
	}
	session.SessionID = key
	s.sessions[key] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[strings.TrimSpace(sessionID)]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) ListSessions(_ context.Context, filter entities.SessionFilter) ([]entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if filter.SubjectType != "" && session.SubjectType != filter.SubjectType {
			continue
		}
		items = append(items, session)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].SessionID < items[j].SessionID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

// AppendVote inserts the vote and bumps the session vote count under one
// lock, so concurrent submissions never overfill a council.
func (s *Store) AppendVote(_ context.Context, vote entities.Vote) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := strings.TrimSpace(vote.SessionID)
	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	if session.IsTerminal() || session.IsFull() {
		return entities.Session{}, domainerrors.ErrSessionClosed
	}
	voters, ok := s.voters[sessionID]
	if !ok {
		voters = make(map[string]struct{})
		s.voters[sessionID] = voters
	}
	agentID := strings.TrimSpace(vote.AgentID)
	if _, exists := voters[agentID]; exists {
		return entities.Session{}, domainerrors.ErrDuplicateVote
	}

	voters[agentID] = struct{}{}
	s.votes[sessionID] = append(s.votes[sessionID], vote)
	session.VoteCount++
	session.UpdatedAt = vote.CreatedAt.UTC()
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) ListVotes(_ context.Context, sessionID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID = strings.TrimSpace(sessionID)
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domainerrors.ErrSessionNotFound
	}
	items := append([]entities.Vote(nil), s.votes[sessionID]...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) SaveSessionResult(
	_ context.Context,
	sessionID string,
	result entities.Classification,
	expectedVoteCount int,
	finalizedAt time.Time,
) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID = strings.TrimSpace(sessionID)
	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	if session.IsTerminal() || session.VoteCount != expectedVoteCount {
		return entities.Session{}, domainerrors.ErrConflict
	}
	at := finalizedAt.UTC()
	session.Status = result.Status
	session.FinalDecision = result.FinalDecision
	session.FinalizedAt = &at
	session.UpdatedAt = at
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) CompleteSession(
	_ context.Context,
	sessionID string,
	reviewerID string,
	notes string,
	completedAt time.Time,
) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID = strings.TrimSpace(sessionID)
	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	switch session.Status {
	case entities.SessionStatusVoting:
		return entities.Session{}, domainerrors.ErrSessionNotTerminal
	case entities.SessionStatusCompleted:
		return entities.Session{}, domainerrors.ErrConflict
	}
	at := completedAt.UTC()
	session.Status = entities.SessionStatusCompleted
	session.ReviewerID = strings.TrimSpace(reviewerID)
	session.ReviewNotes = strings.TrimSpace(notes)
	session.CompletedAt = &at
	session.UpdatedAt = at
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) ListExpiredVotingSessions(_ context.Context, now time.Time, limit int) ([]entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Session, 0)
	for _, session := range s.sessions {
		if session.Status != entities.SessionStatusVoting || !session.CutoffPassed(now) {
			continue
		}
		items = append(items, session)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CutoffAt.Before(*items[j].CutoffAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) EnqueueReview(_ context.Context, request entities.ReviewRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(request.SessionID)
	if _, exists := s.reviews[key]; exists {
		return nil
	}
	request.SessionID = key
	request.CreatedAt = request.CreatedAt.UTC()
	s.reviews[key] = request
	return nil
}

func (s *Store) ListReviews(_ context.Context, limit int) ([]entities.ReviewRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.ReviewRequest, 0, len(s.reviews))
	for sessionID, review := range s.reviews {
		if session, ok := s.sessions[sessionID]; ok && session.Status == entities.SessionStatusCompleted {
			continue
		}
		items = append(items, review)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if existing, exists := s.idempotency[key]; exists {
		if existing.RequestHash != record.RequestHash || existing.ResourceID != record.ResourceID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResourceID:  strings.TrimSpace(record.ResourceID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outboxSeq++
	s.outbox[outboxID] = outboxRecord{
		seq: s.outboxSeq,
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	// Append order breaks ties so events of one session keep their order.
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].message.CreatedAt.Equal(rows[j].message.CreatedAt) {
			return rows[i].message.CreatedAt.Before(rows[j].message.CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(outboxID)
	row, ok := s.outbox[key]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[key] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	if existing, ok := s.eventDedup[key]; ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
