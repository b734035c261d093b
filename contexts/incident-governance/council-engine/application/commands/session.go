package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"
	"coai/contexts/incident-governance/council-engine/ports"
	eventsv1 "coai/contracts/gen/events/v1"
)

// OpenSessionCommand configures a new deliberation. A nil CouncilSize or
// ConsensusThreshold selects the default; an explicit value, zero included,
// is validated as given. A zero VotingWindow leaves the session without a
// cutoff.
type OpenSessionCommand struct {
	IdempotencyKey     string
	SubjectID          string
	SubjectType        entities.SubjectType
	CouncilSize        *int
	ConsensusThreshold *float64
	VotingWindow       time.Duration
}

type OpenSessionResult struct {
	Session  entities.Session
	Replayed bool
}

// CompleteSessionCommand records the human reviewer closing an engine-decided
// session. It never changes the final decision.
type CompleteSessionCommand struct {
	SessionID      string
	ReviewerID     string
	Notes          string
	IdempotencyKey string
}

// OpenSession validates council configuration before any vote can be accepted
// and creates the session in voting status with zero votes.
func (uc CouncilUseCase) OpenSession(ctx context.Context, cmd OpenSessionCommand) (OpenSessionResult, error) {
	logger := uc.logger()
	subjectID := strings.TrimSpace(cmd.SubjectID)
	logger.Info("council session open started",
		"event", "council_session_open_started",
		"module", moduleName,
		"layer", "application",
		"subject_id", subjectID,
		"subject_type", string(cmd.SubjectType),
	)
	if subjectID == "" || !cmd.SubjectType.IsValid() || cmd.VotingWindow < 0 {
		logger.Warn("council session open validation failed",
			"event", "council_session_open_validation_failed",
			"module", moduleName,
			"layer", "application",
			"subject_id", subjectID,
			"subject_type", string(cmd.SubjectType),
		)
		return OpenSessionResult{}, domainerrors.ErrInvalidSessionInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return OpenSessionResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	roster, err := uc.loadRoster(ctx)
	if err != nil {
		return OpenSessionResult{}, err
	}
	var councilSize int
	switch {
	case cmd.CouncilSize != nil:
		councilSize = *cmd.CouncilSize
	case uc.DefaultCouncilSize > 0:
		councilSize = uc.DefaultCouncilSize
	case !roster.IsEmpty():
		councilSize = roster.Size()
	default:
		councilSize = entities.DefaultCouncilSize
	}
	threshold := uc.resolveThreshold()
	if cmd.ConsensusThreshold != nil {
		threshold = *cmd.ConsensusThreshold
	}
	if err := services.ValidateCouncilConfig(councilSize, threshold); err != nil {
		logger.Warn("council session configuration rejected",
			"event", "council_session_configuration_rejected",
			"module", moduleName,
			"layer", "application",
			"subject_id", subjectID,
			"council_size", councilSize,
			"consensus_threshold", threshold,
			"error", err.Error(),
		)
		return OpenSessionResult{}, err
	}
	if !roster.IsEmpty() && councilSize > roster.Size() {
		return OpenSessionResult{}, fmt.Errorf("%w: council size %d exceeds roster of %d",
			domainerrors.ErrConfiguration, councilSize, roster.Size())
	}

	now := uc.now()
	requestHash := hashRequest(map[string]string{
		"subject_id":          subjectID,
		"subject_type":        string(cmd.SubjectType),
		"council_size":        strconv.Itoa(councilSize),
		"consensus_threshold": strconv.FormatFloat(threshold, 'f', -1, 64),
		"voting_window":       cmd.VotingWindow.String(),
		"op":                  "open_session",
	})
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return OpenSessionResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			logger.Warn("council session open idempotency conflict",
				"event", "council_session_open_idempotency_conflict",
				"module", moduleName,
				"layer", "application",
				"subject_id", subjectID,
			)
			return OpenSessionResult{}, domainerrors.ErrIdempotencyConflict
		}
		session, err := uc.Sessions.GetSession(ctx, record.ResourceID)
		if err != nil {
			return OpenSessionResult{}, err
		}
		return OpenSessionResult{Session: session, Replayed: true}, nil
	}

	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return OpenSessionResult{}, err
	}
	session := entities.Session{
		SessionID:          sessionID,
		SubjectID:          subjectID,
		SubjectType:        cmd.SubjectType,
		CouncilSize:        councilSize,
		ConsensusThreshold: threshold,
		Status:             entities.SessionStatusVoting,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	window := cmd.VotingWindow
	if window == 0 {
		window = uc.VotingWindow
	}
	if window > 0 {
		cutoff := now.Add(window)
		session.CutoffAt = &cutoff
	}

	if err := uc.Sessions.CreateSession(ctx, session); err != nil {
		return OpenSessionResult{}, err
	}
	if err := uc.appendEvent(ctx, eventsv1.EventCouncilSessionOpened, session.SessionID, now, map[string]any{
		"session_id":          session.SessionID,
		"subject_id":          session.SubjectID,
		"subject_type":        string(session.SubjectType),
		"council_size":        session.CouncilSize,
		"consensus_threshold": session.ConsensusThreshold,
		"occurred_at":         now.Format(time.RFC3339),
	}); err != nil {
		return OpenSessionResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		ResourceID:  session.SessionID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return OpenSessionResult{}, err
	}

	logger.Info("council session opened",
		"event", "council_session_opened",
		"module", moduleName,
		"layer", "application",
		"session_id", session.SessionID,
		"subject_id", session.SubjectID,
		"council_size", session.CouncilSize,
		"consensus_threshold", session.ConsensusThreshold,
	)
	return OpenSessionResult{Session: session}, nil
}

// CompleteSession is the external human action that moves an engine-decided
// session to completed.
func (uc CouncilUseCase) CompleteSession(ctx context.Context, cmd CompleteSessionCommand) (entities.Session, error) {
	logger := uc.logger()
	sessionID := strings.TrimSpace(cmd.SessionID)
	reviewerID := strings.TrimSpace(cmd.ReviewerID)
	if sessionID == "" || reviewerID == "" {
		return entities.Session{}, domainerrors.ErrInvalidSessionInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return entities.Session{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashRequest(map[string]string{
		"session_id":  sessionID,
		"reviewer_id": reviewerID,
		"notes":       strings.TrimSpace(cmd.Notes),
		"op":          "complete_session",
	})
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return entities.Session{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return entities.Session{}, domainerrors.ErrIdempotencyConflict
		}
		return uc.Sessions.GetSession(ctx, record.ResourceID)
	}

	session, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return entities.Session{}, err
	}
	switch session.Status {
	case entities.SessionStatusVoting:
		return entities.Session{}, domainerrors.ErrSessionNotTerminal
	case entities.SessionStatusCompleted:
		return entities.Session{}, domainerrors.ErrAlreadyCompleted
	}

	completed, err := uc.Sessions.CompleteSession(ctx, sessionID, reviewerID, strings.TrimSpace(cmd.Notes), now)
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return entities.Session{}, domainerrors.ErrAlreadyCompleted
		}
		return entities.Session{}, err
	}
	if err := uc.appendEvent(ctx, eventsv1.EventCouncilSessionCompleted, sessionID, now, map[string]any{
		"session_id":     sessionID,
		"final_decision": string(completed.FinalDecision),
		"reviewer_id":    reviewerID,
		"occurred_at":    now.Format(time.RFC3339),
	}); err != nil {
		return entities.Session{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		ResourceID:  sessionID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return entities.Session{}, err
	}

	logger.Info("council session completed by reviewer",
		"event", "council_session_completed",
		"module", moduleName,
		"layer", "application",
		"session_id", sessionID,
		"reviewer_id", reviewerID,
		"final_decision", string(completed.FinalDecision),
	)
	return completed, nil
}
