package entities

import "time"

const (
	DefaultCouncilSize        = 33
	DefaultConsensusThreshold = 0.67
)

type SessionStatus string

const (
	SessionStatusVoting           SessionStatus = "voting"
	SessionStatusConsensusReached SessionStatus = "consensus_reached"
	SessionStatusEscalatedToHuman SessionStatus = "escalated_to_human"
	SessionStatusCompleted        SessionStatus = "completed"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusVoting,
		SessionStatusConsensusReached,
		SessionStatusEscalatedToHuman,
		SessionStatusCompleted:
		return true
	default:
		return false
	}
}

type FinalDecision string

const (
	FinalDecisionNone      FinalDecision = ""
	FinalDecisionApproved  FinalDecision = "approved"
	FinalDecisionRejected  FinalDecision = "rejected"
	FinalDecisionEscalated FinalDecision = "escalated"
)

type SubjectType string

const (
	SubjectTypeIncidentReport SubjectType = "incident_report"
	SubjectTypeAssessment     SubjectType = "assessment"
	SubjectTypeProposal       SubjectType = "proposal"
)

func (s SubjectType) IsValid() bool {
	switch s {
	case SubjectTypeIncidentReport, SubjectTypeAssessment, SubjectTypeProposal:
		return true
	default:
		return false
	}
}

// Session is one round of deliberation over a single subject.
type Session struct {
	SessionID          string
	SubjectID          string
	SubjectType        SubjectType
	CouncilSize        int
	ConsensusThreshold float64
	Status             SessionStatus
	FinalDecision      FinalDecision
	VoteCount          int
	CutoffAt           *time.Time
	FinalizedAt        *time.Time
	CompletedAt        *time.Time
	ReviewerID         string
	ReviewNotes        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsTerminal reports whether the session has left the voting phase.
func (s Session) IsTerminal() bool {
	return s.Status != SessionStatusVoting
}

func (s Session) IsFull() bool {
	return s.CouncilSize > 0 && s.VoteCount >= s.CouncilSize
}

// CutoffPassed reports whether an external voting window has elapsed.
func (s Session) CutoffPassed(now time.Time) bool {
	return s.CutoffAt != nil && !now.UTC().Before(s.CutoffAt.UTC())
}

type Classification struct {
	FinalDecision FinalDecision
	Status        SessionStatus
}

type SessionFilter struct {
	Status      SessionStatus
	SubjectType SubjectType
	Limit       int
}

// ReviewRequest queues an escalated session for a human reviewer.
type ReviewRequest struct {
	ReviewID    string
	SessionID   string
	SubjectID   string
	SubjectType SubjectType
	Tally       Tally
	Cutoff      bool
	CreatedAt   time.Time
}
