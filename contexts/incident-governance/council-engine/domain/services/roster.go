package services

import (
	"fmt"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
)

var defaultProviders = []string{"openai", "anthropic", "google"}

// DefaultRoster builds the standing 33-agent council: eleven agents per role,
// providers assigned round-robin inside each role.
func DefaultRoster() entities.Roster {
	members := make([]entities.CouncilMember, 0, entities.DefaultCouncilSize)
	perRole := entities.DefaultCouncilSize / len(entities.AgentRoles)
	for _, role := range entities.AgentRoles {
		for i := 0; i < perRole; i++ {
			members = append(members, entities.CouncilMember{
				AgentID:   fmt.Sprintf("%s-%02d", role, i+1),
				AgentRole: role,
				Provider:  defaultProviders[i%len(defaultProviders)],
			})
		}
	}
	return entities.Roster{Members: members}
}

// DistributeVotes assigns decisions to roster members in roster order:
// the first approve members approve, the next reject members reject, and the
// next escalate members escalate. Members beyond the requested counts abstain.
func DistributeVotes(roster entities.Roster, approve, reject, escalate int, confidence float64) ([]entities.Vote, error) {
	if approve < 0 || reject < 0 || escalate < 0 {
		return nil, fmt.Errorf("%w: vote counts must not be negative", domainerrors.ErrInvalidVoteInput)
	}
	total := approve + reject + escalate
	if total > roster.Size() {
		return nil, fmt.Errorf("%w: %d votes requested for a council of %d", domainerrors.ErrInvalidVoteInput, total, roster.Size())
	}

	votes := make([]entities.Vote, 0, total)
	for i := 0; i < total; i++ {
		member := roster.Members[i]
		decision := entities.DecisionEscalate
		switch {
		case i < approve:
			decision = entities.DecisionApprove
		case i < approve+reject:
			decision = entities.DecisionReject
		}
		votes = append(votes, entities.Vote{
			AgentID:    member.AgentID,
			AgentRole:  member.AgentRole,
			Provider:   member.Provider,
			Decision:   decision,
			Confidence: confidence,
		})
	}
	return votes, nil
}
