package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "coai/contexts/incident-governance/council-engine/application"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates the council tables. The (session_id, agent_id) unique
// index is what rejects a second vote from the same agent.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&sessionModel{},
		&voteModel{},
		&reviewModel{},
		&idempotencyModel{},
		&outboxModel{},
		&eventDedupModel{},
	); err != nil {
		return r.logError("council_repo_auto_migrate_failed", err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, session entities.Session) error {
	row := sessionModelFromEntity(session)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("council_repo_create_session_failed", err, "session_id", row.ID)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sessionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, domainerrors.ErrSessionNotFound
		}
		return entities.Session{}, r.logError("council_repo_get_session_failed", err,
			"session_id", strings.TrimSpace(sessionID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListSessions(ctx context.Context, filter entities.SessionFilter) ([]entities.Session, error) {
	tx := r.db.WithContext(ctx).Model(&sessionModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.SubjectType != "" {
		tx = tx.Where("subject_type = ?", string(filter.SubjectType))
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	var rows []sessionModel
	if err := tx.Order("created_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("council_repo_list_sessions_failed", err,
			"status", string(filter.Status),
			"subject_type", string(filter.SubjectType),
		)
	}
	return toSessionEntities(rows), nil
}

// AppendVote locks the session row, inserts the vote and bumps the count in
// one transaction. Concurrent submissions for a session serialize on the lock.
func (r *Repository) AppendVote(ctx context.Context, vote entities.Vote) (entities.Session, error) {
	sessionID := strings.TrimSpace(vote.SessionID)
	var updated entities.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session sessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrSessionNotFound
			}
			return err
		}
		current := session.toEntity()
		if current.IsTerminal() || current.IsFull() {
			return domainerrors.ErrSessionClosed
		}

		row := voteModelFromEntity(vote)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateVote
			}
			return err
		}

		updatedAt := vote.CreatedAt.UTC()
		if err := tx.Model(&sessionModel{}).
			Where("id = ?", sessionID).
			Updates(map[string]any{
				"vote_count": gorm.Expr("vote_count + 1"),
				"updated_at": updatedAt,
			}).Error; err != nil {
			return err
		}
		current.VoteCount++
		current.UpdatedAt = updatedAt
		updated = current
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateVote) ||
			errors.Is(err, domainerrors.ErrSessionClosed) ||
			errors.Is(err, domainerrors.ErrSessionNotFound) {
			return entities.Session{}, err
		}
		return entities.Session{}, r.logError("council_repo_append_vote_failed", err,
			"session_id", sessionID,
			"agent_id", strings.TrimSpace(vote.AgentID),
		)
	}
	return updated, nil
}

func (r *Repository) ListVotes(ctx context.Context, sessionID string) ([]entities.Vote, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("council_repo_list_votes_failed", err,
			"session_id", strings.TrimSpace(sessionID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// SaveSessionResult only transitions rows still in voting whose vote_count
// matches the tally; a lost race or a late vote surfaces as ErrConflict.
func (r *Repository) SaveSessionResult(
	ctx context.Context,
	sessionID string,
	result entities.Classification,
	expectedVoteCount int,
	finalizedAt time.Time,
) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	at := finalizedAt.UTC()
	update := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id = ? AND status = ? AND vote_count = ?", sessionID, string(entities.SessionStatusVoting), expectedVoteCount).
		Updates(map[string]any{
			"status":         string(result.Status),
			"final_decision": string(result.FinalDecision),
			"finalized_at":   at,
			"updated_at":     at,
		})
	if update.Error != nil {
		return entities.Session{}, r.logError("council_repo_save_session_result_failed", update.Error,
			"session_id", sessionID,
			"expected_vote_count", expectedVoteCount,
		)
	}
	if update.RowsAffected == 0 {
		if _, err := r.GetSession(ctx, sessionID); err != nil {
			return entities.Session{}, err
		}
		return entities.Session{}, domainerrors.ErrConflict
	}
	return r.GetSession(ctx, sessionID)
}

func (r *Repository) CompleteSession(
	ctx context.Context,
	sessionID string,
	reviewerID string,
	notes string,
	completedAt time.Time,
) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	at := completedAt.UTC()
	update := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id = ? AND status IN ?", sessionID, []string{
			string(entities.SessionStatusConsensusReached),
			string(entities.SessionStatusEscalatedToHuman),
		}).
		Updates(map[string]any{
			"status":       string(entities.SessionStatusCompleted),
			"reviewer_id":  strings.TrimSpace(reviewerID),
			"review_notes": strings.TrimSpace(notes),
			"completed_at": at,
			"updated_at":   at,
		})
	if update.Error != nil {
		return entities.Session{}, r.logError("council_repo_complete_session_failed", update.Error,
			"session_id", sessionID,
		)
	}
	if update.RowsAffected == 0 {
		current, err := r.GetSession(ctx, sessionID)
		if err != nil {
			return entities.Session{}, err
		}
		if current.Status == entities.SessionStatusVoting {
			return entities.Session{}, domainerrors.ErrSessionNotTerminal
		}
		return entities.Session{}, domainerrors.ErrConflict
	}
	return r.GetSession(ctx, sessionID)
}

func (r *Repository) ListExpiredVotingSessions(ctx context.Context, now time.Time, limit int) ([]entities.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []sessionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.SessionStatusVoting)).
		Where("cutoff_at IS NOT NULL AND cutoff_at <= ?", now.UTC()).
		Order("cutoff_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("council_repo_list_expired_sessions_failed", err, "limit", limit)
	}
	return toSessionEntities(rows), nil
}

func (r *Repository) EnqueueReview(ctx context.Context, request entities.ReviewRequest) error {
	row := reviewModel{
		ID:          strings.TrimSpace(request.ReviewID),
		SessionID:   strings.TrimSpace(request.SessionID),
		SubjectID:   strings.TrimSpace(request.SubjectID),
		SubjectType: string(request.SubjectType),
		Approve:     request.Tally.Approve,
		Reject:      request.Tally.Reject,
		Escalate:    request.Tally.Escalate,
		Cutoff:      request.Cutoff,
		CreatedAt:   request.CreatedAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return r.logError("council_repo_enqueue_review_failed", err, "session_id", row.SessionID)
	}
	return nil
}

func (r *Repository) ListReviews(ctx context.Context, limit int) ([]entities.ReviewRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []reviewModel
	if err := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM council_sessions s WHERE s.id = council_review_queue.session_id AND s.status = ?)",
			string(entities.SessionStatusCompleted)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("council_repo_list_reviews_failed", err, "limit", limit)
	}
	items := make([]entities.ReviewRequest, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("council_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && !row.ExpiresAt.After(now.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("council_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		ResourceID:  row.ResourceID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResourceID:  strings.TrimSpace(record.ResourceID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("council_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("council_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.ResourceID != row.ResourceID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("council_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("council_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("council_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("council_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("council_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("council_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("council_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	if isUndefinedTable(err) {
		fields = append(fields, "hint", "council tables missing; run AutoMigrate")
	}
	fields = append(fields, attrs...)
	r.logger.Error("council repository operation failed", fields...)
	return err
}

type sessionModel struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	SubjectID          string     `gorm:"column:subject_id;index"`
	SubjectType        string     `gorm:"column:subject_type"`
	CouncilSize        int        `gorm:"column:council_size"`
	ConsensusThreshold float64    `gorm:"column:consensus_threshold"`
	Status             string     `gorm:"column:status;index"`
	FinalDecision      string     `gorm:"column:final_decision"`
	VoteCount          int        `gorm:"column:vote_count"`
	CutoffAt           *time.Time `gorm:"column:cutoff_at"`
	FinalizedAt        *time.Time `gorm:"column:finalized_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
	ReviewerID         string     `gorm:"column:reviewer_id"`
	ReviewNotes        string     `gorm:"column:review_notes"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string {
	return "council_sessions"
}

func sessionModelFromEntity(session entities.Session) sessionModel {
	return sessionModel{
		ID:                 strings.TrimSpace(session.SessionID),
		SubjectID:          strings.TrimSpace(session.SubjectID),
		SubjectType:        string(session.SubjectType),
		CouncilSize:        session.CouncilSize,
		ConsensusThreshold: session.ConsensusThreshold,
		Status:             string(session.Status),
		FinalDecision:      string(session.FinalDecision),
		VoteCount:          session.VoteCount,
		CutoffAt:           normalizeOptionalTime(session.CutoffAt),
		FinalizedAt:        normalizeOptionalTime(session.FinalizedAt),
		CompletedAt:        normalizeOptionalTime(session.CompletedAt),
		ReviewerID:         session.ReviewerID,
		ReviewNotes:        session.ReviewNotes,
		CreatedAt:          session.CreatedAt.UTC(),
		UpdatedAt:          session.UpdatedAt.UTC(),
	}
}

func (m sessionModel) toEntity() entities.Session {
	return entities.Session{
		SessionID:          m.ID,
		SubjectID:          m.SubjectID,
		SubjectType:        entities.SubjectType(m.SubjectType),
		CouncilSize:        m.CouncilSize,
		ConsensusThreshold: m.ConsensusThreshold,
		Status:             entities.SessionStatus(m.Status),
		FinalDecision:      entities.FinalDecision(m.FinalDecision),
		VoteCount:          m.VoteCount,
		CutoffAt:           normalizeOptionalTime(m.CutoffAt),
		FinalizedAt:        normalizeOptionalTime(m.FinalizedAt),
		CompletedAt:        normalizeOptionalTime(m.CompletedAt),
		ReviewerID:         m.ReviewerID,
		ReviewNotes:        m.ReviewNotes,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type voteModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	SessionID  string    `gorm:"column:session_id;uniqueIndex:idx_council_votes_session_agent"`
	AgentID    string    `gorm:"column:agent_id;uniqueIndex:idx_council_votes_session_agent"`
	AgentRole  string    `gorm:"column:agent_role"`
	Provider   string    `gorm:"column:provider"`
	Decision   string    `gorm:"column:decision"`
	Confidence float64   `gorm:"column:confidence"`
	Reasoning  string    `gorm:"column:reasoning"`
	LatencyMs  int64     `gorm:"column:latency_ms"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "council_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ID:         strings.TrimSpace(vote.VoteID),
		SessionID:  strings.TrimSpace(vote.SessionID),
		AgentID:    strings.TrimSpace(vote.AgentID),
		AgentRole:  string(vote.AgentRole),
		Provider:   strings.TrimSpace(vote.Provider),
		Decision:   string(vote.Decision),
		Confidence: vote.Confidence,
		Reasoning:  vote.Reasoning,
		LatencyMs:  vote.LatencyMs,
		CreatedAt:  vote.CreatedAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:     m.ID,
		SessionID:  m.SessionID,
		AgentID:    m.AgentID,
		AgentRole:  entities.AgentRole(m.AgentRole),
		Provider:   m.Provider,
		Decision:   entities.Decision(m.Decision),
		Confidence: m.Confidence,
		Reasoning:  m.Reasoning,
		LatencyMs:  m.LatencyMs,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type reviewModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	SessionID   string    `gorm:"column:session_id;uniqueIndex"`
	SubjectID   string    `gorm:"column:subject_id"`
	SubjectType string    `gorm:"column:subject_type"`
	Approve     int       `gorm:"column:approve"`
	Reject      int       `gorm:"column:reject"`
	Escalate    int       `gorm:"column:escalate"`
	Cutoff      bool      `gorm:"column:cutoff"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (reviewModel) TableName() string {
	return "council_review_queue"
}

func (m reviewModel) toEntity() entities.ReviewRequest {
	return entities.ReviewRequest{
		ReviewID:    m.ID,
		SessionID:   m.SessionID,
		SubjectID:   m.SubjectID,
		SubjectType: entities.SubjectType(m.SubjectType),
		Tally: entities.Tally{
			Approve:  m.Approve,
			Reject:   m.Reject,
			Escalate: m.Escalate,
		},
		Cutoff:    m.Cutoff,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	ResourceID  string    `gorm:"column:resource_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "council_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "council_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "council_event_dedup"
}

func toSessionEntities(rows []sessionModel) []entities.Session {
	items := make([]entities.Session, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.SessionRepository = (*Repository)(nil)
var _ ports.ReviewQueue = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
