package services

import (
	"fmt"
	"math"
	"strings"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
)

// ValidateCouncilConfig rejects council sizes below one and thresholds outside
// (0,1]. It runs when a session is opened, before any vote is accepted.
func ValidateCouncilConfig(councilSize int, threshold float64) error {
	if councilSize <= 0 {
		return fmt.Errorf("%w: council size must be positive, got %d", domainerrors.ErrConfiguration, councilSize)
	}
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return fmt.Errorf("%w: consensus threshold must be in (0,1], got %v", domainerrors.ErrConfiguration, threshold)
	}
	return nil
}

// RequiredVotes converts a threshold share into the number of votes an outcome
// needs. Thresholds are configured at percentage precision (0.67 stands for
// two thirds), so the share is rounded to the nearest whole vote, with a floor
// of one vote.
func RequiredVotes(totalExpectedVotes int, threshold float64) int {
	required := int(math.Round(threshold * float64(totalExpectedVotes)))
	if required < 1 {
		required = 1
	}
	if required > totalExpectedVotes {
		required = totalExpectedVotes
	}
	return required
}

// Classify maps a tally onto a final decision. Shares are measured against the
// expected council size, not the votes received so far. Approve is evaluated
// before reject, so a tie at the threshold always resolves to approved.
func Classify(tally entities.Tally, totalExpectedVotes int, threshold float64) (entities.Classification, error) {
	if err := ValidateCouncilConfig(totalExpectedVotes, threshold); err != nil {
		return entities.Classification{}, err
	}

	required := RequiredVotes(totalExpectedVotes, threshold)
	switch {
	case tally.Approve >= required:
		return entities.Classification{
			FinalDecision: entities.FinalDecisionApproved,
			Status:        entities.SessionStatusConsensusReached,
		}, nil
	case tally.Reject >= required:
		return entities.Classification{
			FinalDecision: entities.FinalDecisionRejected,
			Status:        entities.SessionStatusConsensusReached,
		}, nil
	default:
		return entities.Classification{
			FinalDecision: entities.FinalDecisionEscalated,
			Status:        entities.SessionStatusEscalatedToHuman,
		}, nil
	}
}

// Shares reports approve and reject shares of the expected council size.
func Shares(tally entities.Tally, totalExpectedVotes int) (float64, float64) {
	if totalExpectedVotes <= 0 {
		return 0, 0
	}
	return float64(tally.Approve) / float64(totalExpectedVotes),
		float64(tally.Reject) / float64(totalExpectedVotes)
}

// ValidateVote checks the enum and range constraints of a single vote.
func ValidateVote(vote entities.Vote) error {
	switch {
	case strings.TrimSpace(vote.AgentID) == "":
		return fmt.Errorf("%w: agent_id is required", domainerrors.ErrInvalidVoteInput)
	case !vote.Decision.IsValid():
		return fmt.Errorf("%w: decision %q is not one of approve, reject, escalate", domainerrors.ErrInvalidVoteInput, vote.Decision)
	case !vote.AgentRole.IsValid():
		return fmt.Errorf("%w: agent_role %q is not a council role", domainerrors.ErrInvalidVoteInput, vote.AgentRole)
	case strings.TrimSpace(vote.Provider) == "":
		return fmt.Errorf("%w: provider is required", domainerrors.ErrInvalidVoteInput)
	case math.IsNaN(vote.Confidence) || vote.Confidence < 0 || vote.Confidence > 1:
		return fmt.Errorf("%w: confidence must be in [0,1], got %v", domainerrors.ErrInvalidVoteInput, vote.Confidence)
	case vote.LatencyMs < 0:
		return fmt.Errorf("%w: latency_ms must not be negative", domainerrors.ErrInvalidVoteInput)
	}
	return nil
}

// ValidateRoster requires unique, non-empty agent ids with known roles.
func ValidateRoster(roster entities.Roster) error {
	seen := make(map[string]struct{}, len(roster.Members))
	for i, member := range roster.Members {
		agentID := strings.TrimSpace(member.AgentID)
		if agentID == "" {
			return fmt.Errorf("%w: member %d has no agent id", domainerrors.ErrInvalidRoster, i)
		}
		if _, ok := seen[agentID]; ok {
			return fmt.Errorf("%w: duplicate agent id %q", domainerrors.ErrInvalidRoster, agentID)
		}
		seen[agentID] = struct{}{}
		if !member.AgentRole.IsValid() {
			return fmt.Errorf("%w: agent %q has unknown role %q", domainerrors.ErrInvalidRoster, agentID, member.AgentRole)
		}
		if strings.TrimSpace(member.Provider) == "" {
			return fmt.Errorf("%w: agent %q has no provider", domainerrors.ErrInvalidRoster, agentID)
		}
	}
	return nil
}
