package entities

import (
	"strings"
	"time"
)

type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionEscalate Decision = "escalate"
)

func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionEscalate:
		return true
	default:
		return false
	}
}

// AgentRole tags a voting identity. It is descriptive and never changes the
// weight of a vote.
type AgentRole string

const (
	AgentRoleGuardian AgentRole = "guardian"
	AgentRoleArbiter  AgentRole = "arbiter"
	AgentRoleScribe   AgentRole = "scribe"
)

var AgentRoles = []AgentRole{AgentRoleGuardian, AgentRoleArbiter, AgentRoleScribe}

func (r AgentRole) IsValid() bool {
	for _, role := range AgentRoles {
		if role == r {
			return true
		}
	}
	return false
}

func ParseDecision(raw string) Decision {
	return Decision(strings.ToLower(strings.TrimSpace(raw)))
}

func ParseAgentRole(raw string) AgentRole {
	return AgentRole(strings.ToLower(strings.TrimSpace(raw)))
}

// Vote is one agent's decision on one session.
type Vote struct {
	VoteID     string
	SessionID  string
	AgentID    string
	AgentRole  AgentRole
	Provider   string
	Decision   Decision
	Confidence float64
	Reasoning  string
	LatencyMs  int64
	CreatedAt  time.Time
}

type Tally struct {
	Approve  int
	Reject   int
	Escalate int
}

func (t Tally) Total() int {
	return t.Approve + t.Reject + t.Escalate
}

type Rates struct {
	ApproveRate  float64
	RejectRate   float64
	EscalateRate float64
}

// Metrics is derived from a session's votes on demand and never stored.
type Metrics struct {
	Tally                       Tally
	Rates                       Rates
	AverageConfidence           float64
	MaxConfidence               float64
	AverageLatencyMs            float64
	MaxLatencyMs                int64
	ConfidenceWeightedLatencyMs float64
}
