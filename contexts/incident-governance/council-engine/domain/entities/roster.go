package entities

import "strings"

type CouncilMember struct {
	AgentID   string
	AgentRole AgentRole
	Provider  string
}

// Roster is the fixed population of voting identities a council draws from.
type Roster struct {
	Members []CouncilMember
}

func (r Roster) Size() int {
	return len(r.Members)
}

func (r Roster) IsEmpty() bool {
	return len(r.Members) == 0
}

func (r Roster) Member(agentID string) (CouncilMember, bool) {
	agentID = strings.TrimSpace(agentID)
	for _, member := range r.Members {
		if member.AgentID == agentID {
			return member, true
		}
	}
	return CouncilMember{}, false
}
