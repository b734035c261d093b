package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"
	eventsv1 "coai/contracts/gen/events/v1"
)

type SubmitVoteCommand struct {
	SessionID  string
	AgentID    string
	AgentRole  entities.AgentRole
	Provider   string
	Decision   entities.Decision
	Confidence float64
	Reasoning  string
	LatencyMs  int64
}

// SubmitVoteResult reports whether the vote was accepted. A duplicate agent is
// not an error: Accepted is false, Duplicate is true and the tally is
// unchanged. Classification is set when this vote completed the council.
type SubmitVoteResult struct {
	Vote           entities.Vote
	Accepted       bool
	Duplicate      bool
	Session        entities.Session
	Classification *entities.Classification
}

// SubmitVote appends one agent's vote. Votes for the same session are
// serialized by the repository; the vote that fills the council finalizes the
// session in the same call.
func (uc CouncilUseCase) SubmitVote(ctx context.Context, cmd SubmitVoteCommand) (SubmitVoteResult, error) {
	logger := uc.logger()
	sessionID := strings.TrimSpace(cmd.SessionID)
	vote := entities.Vote{
		SessionID:  sessionID,
		AgentID:    strings.TrimSpace(cmd.AgentID),
		AgentRole:  cmd.AgentRole,
		Provider:   strings.TrimSpace(cmd.Provider),
		Decision:   cmd.Decision,
		Confidence: cmd.Confidence,
		Reasoning:  strings.TrimSpace(cmd.Reasoning),
		LatencyMs:  cmd.LatencyMs,
	}
	logger.Info("council vote submission started",
		"event", "council_vote_submit_started",
		"module", moduleName,
		"layer", "application",
		"session_id", sessionID,
		"agent_id", vote.AgentID,
		"decision", string(vote.Decision),
	)
	if sessionID == "" {
		return SubmitVoteResult{}, fmt.Errorf("%w: session_id is required", domainerrors.ErrInvalidVoteInput)
	}
	if vote.AgentID == "" {
		return SubmitVoteResult{}, fmt.Errorf("%w: agent_id is required", domainerrors.ErrInvalidVoteInput)
	}

	roster, err := uc.loadRoster(ctx)
	if err != nil {
		return SubmitVoteResult{}, err
	}
	if !roster.IsEmpty() {
		member, ok := roster.Member(vote.AgentID)
		if !ok {
			logger.Warn("council vote from unknown agent rejected",
				"event", "council_vote_unknown_agent",
				"module", moduleName,
				"layer", "application",
				"session_id", sessionID,
				"agent_id", vote.AgentID,
			)
			return SubmitVoteResult{}, domainerrors.ErrUnknownAgent
		}
		if vote.AgentRole == "" {
			vote.AgentRole = member.AgentRole
		}
		if vote.Provider == "" {
			vote.Provider = member.Provider
		}
		if vote.AgentRole != member.AgentRole || !strings.EqualFold(vote.Provider, member.Provider) {
			return SubmitVoteResult{}, fmt.Errorf("%w: agent %q is registered as %s/%s",
				domainerrors.ErrInvalidVoteInput, vote.AgentID, member.AgentRole, member.Provider)
		}
	}
	if err := services.ValidateVote(vote); err != nil {
		logger.Warn("council vote validation failed",
			"event", "council_vote_validation_failed",
			"module", moduleName,
			"layer", "application",
			"session_id", sessionID,
			"agent_id", vote.AgentID,
			"error", err.Error(),
		)
		return SubmitVoteResult{}, err
	}

	session, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SubmitVoteResult{}, err
	}
	now := uc.now()
	if session.IsTerminal() || session.CutoffPassed(now) {
		logger.Warn("council vote rejected for closed session",
			"event", "council_vote_session_closed",
			"module", moduleName,
			"layer", "application",
			"session_id", sessionID,
			"agent_id", vote.AgentID,
			"status", string(session.Status),
		)
		return SubmitVoteResult{}, domainerrors.ErrSessionClosed
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SubmitVoteResult{}, err
	}
	vote.VoteID = voteID
	vote.CreatedAt = now

	updated, err := uc.Sessions.AppendVote(ctx, vote)
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateVote) {
			logger.Warn("council duplicate vote rejected",
				"event", "council_vote_duplicate",
				"module", moduleName,
				"layer", "application",
				"session_id", sessionID,
				"agent_id", vote.AgentID,
			)
			current, loadErr := uc.Sessions.GetSession(ctx, sessionID)
			if loadErr != nil {
				return SubmitVoteResult{}, loadErr
			}
			return SubmitVoteResult{Accepted: false, Duplicate: true, Session: current}, nil
		}
		return SubmitVoteResult{}, err
	}

	eventErr := uc.appendEvent(ctx, eventsv1.EventCouncilVoteCast, sessionID, now, map[string]any{
		"session_id":  sessionID,
		"vote_id":     vote.VoteID,
		"agent_id":    vote.AgentID,
		"agent_role":  string(vote.AgentRole),
		"provider":    vote.Provider,
		"decision":    string(vote.Decision),
		"confidence":  vote.Confidence,
		"latency_ms":  vote.LatencyMs,
		"vote_count":  updated.VoteCount,
		"occurred_at": now.Format(time.RFC3339),
	})
	if eventErr != nil {
		logger.Error("council vote event not recorded",
			"event", "council_vote_outbox_failed",
			"module", moduleName,
			"layer", "application",
			"session_id", sessionID,
			"vote_id", vote.VoteID,
			"error", eventErr.Error(),
		)
	}

	logger.Info("council vote accepted",
		"event", "council_vote_accepted",
		"module", moduleName,
		"layer", "application",
		"session_id", sessionID,
		"vote_id", vote.VoteID,
		"agent_id", vote.AgentID,
		"decision", string(vote.Decision),
		"vote_count", updated.VoteCount,
		"council_size", updated.CouncilSize,
	)

	// The vote is stored even when its event was not, so a full council still
	// finalizes before the outbox error is returned.
	result := SubmitVoteResult{Vote: vote, Accepted: true, Session: updated}
	if updated.IsFull() {
		finalized, err := uc.finalize(ctx, updated, false)
		if err != nil {
			return SubmitVoteResult{}, errors.Join(eventErr, err)
		}
		result.Session = finalized.Session
		result.Classification = &finalized.Classification
	}
	if eventErr != nil {
		return SubmitVoteResult{}, eventErr
	}
	return result, nil
}
