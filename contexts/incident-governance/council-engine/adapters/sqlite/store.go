package sqliteadapter

import (
	"context"
	"database/sql"
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
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Fixed-width UTC timestamps keep text comparison in SQL chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the single-node council store for local runs and the CLI. It
// expects a handle from db.OpenSQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{db: db, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS council_sessions (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			subject_type TEXT NOT NULL,
			council_size INTEGER NOT NULL,
			consensus_threshold REAL NOT NULL,
			status TEXT NOT NULL,
			final_decision TEXT NOT NULL DEFAULT '',
			vote_count INTEGER NOT NULL DEFAULT 0,
			cutoff_at TEXT,
			finalized_at TEXT,
			completed_at TEXT,
			reviewer_id TEXT NOT NULL DEFAULT '',
			review_notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_council_sessions_status ON council_sessions(status, cutoff_at);`,
		`CREATE TABLE IF NOT EXISTS council_votes (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES council_sessions(id),
			agent_id TEXT NOT NULL,
			agent_role TEXT NOT NULL,
			provider TEXT NOT NULL,
			decision TEXT NOT NULL,
			confidence REAL NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_council_votes_session_agent ON council_votes(session_id, agent_id);`,
		`CREATE TABLE IF NOT EXISTS council_review_queue (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			subject_id TEXT NOT NULL,
			subject_type TEXT NOT NULL,
			approve INTEGER NOT NULL,
			reject INTEGER NOT NULL,
			escalate INTEGER NOT NULL,
			cutoff INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS council_idempotency (
			key TEXT PRIMARY KEY,
			request_hash TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS council_outbox (
			outbox_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			payload BLOB NOT NULL,
			published INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			published_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS council_event_dedup (
			event_id TEXT PRIMARY KEY,
			payload_hash TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return s.logError("council_sqlite_init_schema_failed", err)
		}
	}
	return nil
}

const sessionColumns = `id, subject_id, subject_type, council_size, consensus_threshold, status,
	final_decision, vote_count, cutoff_at, finalized_at, completed_at, reviewer_id, review_notes,
	created_at, updated_at`

func (s *Store) CreateSession(ctx context.Context, session entities.Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO council_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(session.SessionID),
		strings.TrimSpace(session.SubjectID),
		string(session.SubjectType),
		session.CouncilSize,
		session.ConsensusThreshold,
		string(session.Status),
		string(session.FinalDecision),
		session.VoteCount,
		formatOptionalTime(session.CutoffAt),
		formatOptionalTime(session.FinalizedAt),
		formatOptionalTime(session.CompletedAt),
		session.ReviewerID,
		session.ReviewNotes,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return s.logError("council_sqlite_create_session_failed", err, "session_id", session.SessionID)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	return s.getSession(ctx, s.db, sessionID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getSession(ctx context.Context, q queryer, sessionID string) (entities.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM council_sessions WHERE id = ?`,
		strings.TrimSpace(sessionID))
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.Session{}, domainerrors.ErrSessionNotFound
		}
		return entities.Session{}, s.logError("council_sqlite_get_session_failed", err,
			"session_id", strings.TrimSpace(sessionID),
		)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, filter entities.SessionFilter) ([]entities.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM council_sessions WHERE 1 = 1`
	args := make([]any, 0, 3)
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SubjectType != "" {
		query += ` AND subject_type = ?`
		args = append(args, string(filter.SubjectType))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.logError("council_sqlite_list_sessions_failed", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *Store) AppendVote(ctx context.Context, vote entities.Vote) (entities.Session, error) {
	sessionID := strings.TrimSpace(vote.SessionID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entities.Session{}, s.logError("council_sqlite_begin_failed", err, "session_id", sessionID)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := s.getSession(ctx, tx, sessionID)
	if err != nil {
		return entities.Session{}, err
	}
	if session.IsTerminal() || session.IsFull() {
		return entities.Session{}, domainerrors.ErrSessionClosed
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO council_votes
		(id, session_id, agent_id, agent_role, provider, decision, confidence, reasoning, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(vote.VoteID),
		sessionID,
		strings.TrimSpace(vote.AgentID),
		string(vote.AgentRole),
		strings.TrimSpace(vote.Provider),
		string(vote.Decision),
		vote.Confidence,
		vote.Reasoning,
		vote.LatencyMs,
		formatTime(vote.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return entities.Session{}, domainerrors.ErrDuplicateVote
		}
		return entities.Session{}, s.logError("council_sqlite_insert_vote_failed", err,
			"session_id", sessionID,
			"agent_id", vote.AgentID,
		)
	}

	updatedAt := vote.CreatedAt.UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE council_sessions SET vote_count = vote_count + 1, updated_at = ? WHERE id = ?`,
		formatTime(updatedAt), sessionID,
	); err != nil {
		return entities.Session{}, s.logError("council_sqlite_bump_vote_count_failed", err, "session_id", sessionID)
	}
	if err := tx.Commit(); err != nil {
		return entities.Session{}, s.logError("council_sqlite_commit_vote_failed", err, "session_id", sessionID)
	}
	session.VoteCount++
	session.UpdatedAt = updatedAt
	return session, nil
}

func (s *Store) ListVotes(ctx context.Context, sessionID string) ([]entities.Vote, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, agent_id, agent_role, provider, decision,
		confidence, reasoning, latency_ms, created_at
		FROM council_votes WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		strings.TrimSpace(sessionID))
	if err != nil {
		return nil, s.logError("council_sqlite_list_votes_failed", err, "session_id", sessionID)
	}
	defer rows.Close()

	items := make([]entities.Vote, 0)
	for rows.Next() {
		var (
			vote      entities.Vote
			role      string
			decision  string
			createdAt string
		)
		if err := rows.Scan(
			&vote.VoteID,
			&vote.SessionID,
			&vote.AgentID,
			&role,
			&vote.Provider,
			&decision,
			&vote.Confidence,
			&vote.Reasoning,
			&vote.LatencyMs,
			&createdAt,
		); err != nil {
			return nil, s.logError("council_sqlite_scan_vote_failed", err, "session_id", sessionID)
		}
		vote.AgentRole = entities.AgentRole(role)
		vote.Decision = entities.Decision(decision)
		vote.CreatedAt = parseTime(createdAt)
		items = append(items, vote)
	}
	return items, rows.Err()
}

func (s *Store) SaveSessionResult(
	ctx context.Context,
	sessionID string,
	result entities.Classification,
	expectedVoteCount int,
	finalizedAt time.Time,
) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	at := formatTime(finalizedAt)
	res, err := s.db.ExecContext(ctx, `UPDATE council_sessions
		SET status = ?, final_decision = ?, finalized_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND vote_count = ?`,
		string(result.Status), string(result.FinalDecision), at, at,
		sessionID, string(entities.SessionStatusVoting), expectedVoteCount,
	)
	if err != nil {
		return entities.Session{}, s.logError("council_sqlite_save_session_result_failed", err,
			"session_id", sessionID,
			"expected_vote_count", expectedVoteCount,
		)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return entities.Session{}, err
		}
		return entities.Session{}, domainerrors.ErrConflict
	}
	return s.GetSession(ctx, sessionID)
}

func (s *Store) CompleteSession(
	ctx context.Context,
	sessionID string,
	reviewerID string,
	notes string,
	completedAt time.Time,
) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	at := formatTime(completedAt)
	res, err := s.db.ExecContext(ctx, `UPDATE council_sessions
		SET status = ?, reviewer_id = ?, review_notes = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(entities.SessionStatusCompleted),
		strings.TrimSpace(reviewerID),
		strings.TrimSpace(notes),
		at, at,
		sessionID,
		string(entities.SessionStatusConsensusReached),
		string(entities.SessionStatusEscalatedToHuman),
	)
	if err != nil {
		return entities.Session{}, s.logError("council_sqlite_complete_session_failed", err, "session_id", sessionID)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, err := s.GetSession(ctx, sessionID)
		if err != nil {
			return entities.Session{}, err
		}
		if current.Status == entities.SessionStatusVoting {
			return entities.Session{}, domainerrors.ErrSessionNotTerminal
		}
		return entities.Session{}, domainerrors.ErrConflict
	}
	return s.GetSession(ctx, sessionID)
}

func (s *Store) ListExpiredVotingSessions(ctx context.Context, now time.Time, limit int) ([]entities.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM council_sessions
		WHERE status = ? AND cutoff_at IS NOT NULL AND cutoff_at <= ?
		ORDER BY cutoff_at ASC LIMIT ?`,
		string(entities.SessionStatusVoting), formatTime(now), limit,
	)
	if err != nil {
		return nil, s.logError("council_sqlite_list_expired_sessions_failed", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *Store) EnqueueReview(ctx context.Context, request entities.ReviewRequest) error {
	reviewID := strings.TrimSpace(request.ReviewID)
	if reviewID == "" {
		reviewID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO council_review_queue
		(id, session_id, subject_id, subject_type, approve, reject, escalate, cutoff, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		reviewID,
		strings.TrimSpace(request.SessionID),
		strings.TrimSpace(request.SubjectID),
		string(request.SubjectType),
		request.Tally.Approve,
		request.Tally.Reject,
		request.Tally.Escalate,
		request.Cutoff,
		formatTime(request.CreatedAt),
	)
	if err != nil {
		return s.logError("council_sqlite_enqueue_review_failed", err, "session_id", request.SessionID)
	}
	return nil
}

func (s *Store) ListReviews(ctx context.Context, limit int) ([]entities.ReviewRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.session_id, r.subject_id, r.subject_type, r.approve, r.reject,
		r.escalate, r.cutoff, r.created_at FROM council_review_queue r
		WHERE NOT EXISTS (SELECT 1 FROM council_sessions s WHERE s.id = r.session_id AND s.status = ?)
		ORDER BY r.created_at ASC LIMIT ?`,
		string(entities.SessionStatusCompleted), limit,
	)
	if err != nil {
		return nil, s.logError("council_sqlite_list_reviews_failed", err)
	}
	defer rows.Close()

	items := make([]entities.ReviewRequest, 0)
	for rows.Next() {
		var (
			item        entities.ReviewRequest
			subjectType string
			createdAt   string
		)
		if err := rows.Scan(
			&item.ReviewID,
			&item.SessionID,
			&item.SubjectID,
			&subjectType,
			&item.Tally.Approve,
			&item.Tally.Reject,
			&item.Tally.Escalate,
			&item.Cutoff,
			&createdAt,
		); err != nil {
			return nil, s.logError("council_sqlite_scan_review_failed", err)
		}
		item.SubjectType = entities.SubjectType(subjectType)
		item.CreatedAt = parseTime(createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key = strings.TrimSpace(key)
	var (
		record    ports.IdempotencyRecord
		expiresAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, request_hash, resource_id, expires_at FROM council_idempotency WHERE key = ?`, key,
	).Scan(&record.Key, &record.RequestHash, &record.ResourceID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, s.logError("council_sqlite_idempotency_get_failed", err,
			"idempotency_key", key,
		)
	}
	record.ExpiresAt = parseTime(expiresAt)
	if !record.ExpiresAt.After(now.UTC()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM council_idempotency WHERE key = ?`, key); err != nil {
			return ports.IdempotencyRecord{}, false, s.logError("council_sqlite_idempotency_expire_failed", err,
				"idempotency_key", key,
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	key := strings.TrimSpace(record.Key)
	res, err := s.db.ExecContext(ctx, `INSERT INTO council_idempotency (key, request_hash, resource_id, expires_at)
		VALUES (?, ?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		key,
		strings.TrimSpace(record.RequestHash),
		strings.TrimSpace(record.ResourceID),
		formatTime(record.ExpiresAt),
	)
	if err != nil {
		return s.logError("council_sqlite_idempotency_put_failed", err, "idempotency_key", key)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	var requestHash, resourceID string
	if err := s.db.QueryRowContext(ctx,
		`SELECT request_hash, resource_id FROM council_idempotency WHERE key = ?`, key,
	).Scan(&requestHash, &resourceID); err != nil {
		return s.logError("council_sqlite_idempotency_load_existing_failed", err, "idempotency_key", key)
	}
	if requestHash != strings.TrimSpace(record.RequestHash) || resourceID != strings.TrimSpace(record.ResourceID) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO council_outbox
		(outbox_id, event_type, partition_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(outbox_id) DO NOTHING`,
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		payload,
		formatTime(createdAt),
	)
	if err != nil {
		return s.logError("council_sqlite_append_outbox_failed", err, "outbox_id", outboxID)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	var existing []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM council_outbox WHERE outbox_id = ?`, outboxID,
	).Scan(&existing); err != nil {
		return s.logError("council_sqlite_append_outbox_load_existing_failed", err, "outbox_id", outboxID)
	}
	if string(existing) != string(payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT outbox_id, event_type, partition_key, payload, created_at
		FROM council_outbox WHERE published = 0 ORDER BY created_at ASC, rowid ASC LIMIT ?`, limit)
	if err != nil {
		return nil, s.logError("council_sqlite_list_pending_outbox_failed", err, "limit", limit)
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0)
	for rows.Next() {
		var (
			item      ports.OutboxMessage
			createdAt string
		)
		if err := rows.Scan(&item.OutboxID, &item.EventType, &item.PartitionKey, &item.Payload, &createdAt); err != nil {
			return nil, s.logError("council_sqlite_scan_outbox_failed", err)
		}
		item.CreatedAt = parseTime(createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE council_outbox SET published = 1, published_at = ? WHERE outbox_id = ?`,
		formatTime(publishedAt), strings.TrimSpace(outboxID),
	)
	if err != nil {
		return s.logError("council_sqlite_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (s *Store) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	payloadHash = strings.TrimSpace(payloadHash)
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM council_event_dedup WHERE event_id = ? AND expires_at < ?`, eventID, formatTime(now),
	); err != nil {
		return false, s.logError("council_sqlite_reserve_event_expire_failed", err, "event_id", eventID)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO council_event_dedup (event_id, payload_hash, expires_at)
		VALUES (?, ?, ?) ON CONFLICT(event_id) DO NOTHING`,
		eventID, payloadHash, formatTime(expiresAt),
	)
	if err != nil {
		return false, s.logError("council_sqlite_reserve_event_failed", err, "event_id", eventID)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return false, nil
	}
	var existing string
	if err := s.db.QueryRowContext(ctx,
		`SELECT payload_hash FROM council_event_dedup WHERE event_id = ?`, eventID,
	).Scan(&existing); err != nil {
		return false, s.logError("council_sqlite_reserve_event_load_existing_failed", err, "event_id", eventID)
	}
	if existing != payloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("council sqlite operation failed", fields...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (entities.Session, error) {
	var (
		session       entities.Session
		subjectType   string
		status        string
		finalDecision string
		cutoffAt      sql.NullString
		finalizedAt   sql.NullString
		completedAt   sql.NullString
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(
		&session.SessionID,
		&session.SubjectID,
		&subjectType,
		&session.CouncilSize,
		&session.ConsensusThreshold,
		&status,
		&finalDecision,
		&session.VoteCount,
		&cutoffAt,
		&finalizedAt,
		&completedAt,
		&session.ReviewerID,
		&session.ReviewNotes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return entities.Session{}, err
	}
	session.SubjectType = entities.SubjectType(subjectType)
	session.Status = entities.SessionStatus(status)
	session.FinalDecision = entities.FinalDecision(finalDecision)
	session.CutoffAt = parseOptionalTime(cutoffAt)
	session.FinalizedAt = parseOptionalTime(finalizedAt)
	session.CompletedAt = parseOptionalTime(completedAt)
	session.CreatedAt = parseTime(createdAt)
	session.UpdatedAt = parseTime(updatedAt)
	return session, nil
}

func collectSessions(rows *sql.Rows) ([]entities.Session, error) {
	items := make([]entities.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, session)
	}
	return items, rows.Err()
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func formatOptionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseOptionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	parsed := parseTime(raw.String)
	return &parsed
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

var _ ports.SessionRepository = (*Store)(nil)
var _ ports.ReviewQueue = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
