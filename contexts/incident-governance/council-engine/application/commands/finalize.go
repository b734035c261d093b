package commands

import (
	"context"
	"errors"
	"strings"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"
	"coai/contexts/incident-governance/council-engine/ports"
	eventsv1 "coai/contracts/gen/events/v1"
)

// FinalizeSessionCommand closes voting. Cutoff marks an external deadline that
// fired before the council was full.
type FinalizeSessionCommand struct {
	SessionID string
	Cutoff    bool
}

// FinalizeSessionResult carries the stored outcome. Replayed is true when the
// session was already terminal; Tally is only populated on the call that
// performed the transition.
type FinalizeSessionResult struct {
	Session        entities.Session
	Classification entities.Classification
	Tally          entities.Tally
	Replayed       bool
}

// FinalizeSession is idempotent: a terminal session returns its stored result
// without re-tallying and without notifying again.
func (uc CouncilUseCase) FinalizeSession(ctx context.Context, cmd FinalizeSessionCommand) (FinalizeSessionResult, error) {
	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return FinalizeSessionResult{}, domainerrors.ErrInvalidSessionInput
	}
	session, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return FinalizeSessionResult{}, err
	}
	return uc.finalize(ctx, session, cmd.Cutoff)
}

// maxFinalizeAttempts bounds how often finalize re-tallies after a vote lands
// between the tally and the save.
const maxFinalizeAttempts = 3

func (uc CouncilUseCase) finalize(ctx context.Context, session entities.Session, cutoff bool) (FinalizeSessionResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := uc.finalizeOnce(ctx, session, cutoff)
		if !errors.Is(err, domainerrors.ErrConflict) || attempt == maxFinalizeAttempts {
			return result, err
		}
		uc.logger().Warn("council finalize retrying after concurrent write",
			"event", "council_session_finalize_retry",
			"module", moduleName,
			"layer", "application",
			"session_id", session.SessionID,
			"attempt", attempt,
		)
		session, err = uc.Sessions.GetSession(ctx, session.SessionID)
		if err != nil {
			return FinalizeSessionResult{}, err
		}
	}
}

// finalizeOnce tallies the stored votes and saves the outcome only if no vote
// was appended since the tally. ErrConflict means the caller should reload.
func (uc CouncilUseCase) finalizeOnce(ctx context.Context, session entities.Session, cutoff bool) (FinalizeSessionResult, error) {
	logger := uc.logger()
	if session.IsTerminal() {
		logger.Info("council finalize replayed",
			"event", "council_session_finalize_replayed",
			"module", moduleName,
			"layer", "application",
			"session_id", session.SessionID,
			"status", string(session.Status),
			"final_decision", string(session.FinalDecision),
		)
		return storedResult(session), nil
	}

	now := uc.now()
	cutoff = cutoff || session.CutoffPassed(now)
	if !session.IsFull() && !cutoff {
		logger.Warn("council finalize rejected for incomplete session",
			"event", "council_session_finalize_incomplete",
			"module", moduleName,
			"layer", "application",
			"session_id", session.SessionID,
			"vote_count", session.VoteCount,
			"council_size", session.CouncilSize,
		)
		return FinalizeSessionResult{}, domainerrors.ErrIncompleteSession
	}

	votes, err := uc.Sessions.ListVotes(ctx, session.SessionID)
	if err != nil {
		return FinalizeSessionResult{}, err
	}
	tally := services.TallyVotes(votes)
	classification, err := services.Classify(tally, session.CouncilSize, session.ConsensusThreshold)
	if err != nil {
		return FinalizeSessionResult{}, err
	}

	saved, err := uc.Sessions.SaveSessionResult(ctx, session.SessionID, classification, len(votes), now)
	if err != nil {
		return FinalizeSessionResult{}, err
	}
	uc.notify(ctx, saved, tally)

	if err := uc.appendEvent(ctx, eventsv1.EventCouncilSessionFinalized, saved.SessionID, now, eventsv1.SessionFinalizedData{
		SessionID:     saved.SessionID,
		SubjectID:     saved.SubjectID,
		SubjectType:   string(saved.SubjectType),
		FinalDecision: string(saved.FinalDecision),
		Status:        string(saved.Status),
		Approve:       tally.Approve,
		Reject:        tally.Reject,
		Escalate:      tally.Escalate,
		Cutoff:        cutoff,
		OccurredAt:    now,
	}); err != nil {
		logger.Error("council finalized event not recorded",
			"event", "council_session_finalized_outbox_failed",
			"module", moduleName,
			"layer", "application",
			"session_id", saved.SessionID,
			"error", err.Error(),
		)
		return FinalizeSessionResult{}, err
	}

	approveShare, rejectShare := services.Shares(tally, saved.CouncilSize)
	logger.Info("council session finalized",
		"event", "council_session_finalized",
		"module", moduleName,
		"layer", "application",
		"session_id", saved.SessionID,
		"final_decision", string(saved.FinalDecision),
		"status", string(saved.Status),
		"approve", tally.Approve,
		"reject", tally.Reject,
		"escalate", tally.Escalate,
		"approve_share", approveShare,
		"reject_share", rejectShare,
		"cutoff", cutoff,
	)
	return FinalizeSessionResult{
		Session:        saved,
		Classification: classification,
		Tally:          tally,
	}, nil
}

// notify hands the terminal transition to the notification layer. It runs
// right after the transition is persisted and before the outbox write, so a
// notifier failure is logged, not returned.
func (uc CouncilUseCase) notify(ctx context.Context, session entities.Session, tally entities.Tally) {
	if uc.Notifier == nil {
		return
	}
	err := uc.Notifier.NotifySessionFinalized(ctx, ports.SessionFinalizedNotice{
		SessionID:     session.SessionID,
		SubjectID:     session.SubjectID,
		SubjectType:   session.SubjectType,
		FinalDecision: session.FinalDecision,
		Status:        session.Status,
		Tally:         tally,
	})
	if err != nil {
		uc.logger().Error("council finalization notification failed",
			"event", "council_session_notify_failed",
			"module", moduleName,
			"layer", "application",
			"session_id", session.SessionID,
			"error", err.Error(),
		)
	}
}

func storedResult(session entities.Session) FinalizeSessionResult {
	status := session.Status
	if status == entities.SessionStatusCompleted {
		// Completion is a human step after classification; report the
		// classification the engine stored.
		status = statusForDecision(session.FinalDecision)
	}
	return FinalizeSessionResult{
		Session: session,
		Classification: entities.Classification{
			FinalDecision: session.FinalDecision,
			Status:        status,
		},
		Replayed: true,
	}
}

func statusForDecision(decision entities.FinalDecision) entities.SessionStatus {
	if decision == entities.FinalDecisionEscalated {
		return entities.SessionStatusEscalatedToHuman
	}
	return entities.SessionStatusConsensusReached
}
