package http

import (
	"errors"
	"strings"
)

var errInvalidRequest = errors.New("invalid request")

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OpenSessionRequest struct {
	SubjectID           string   `json:"subject_id"`
	SubjectType         string   `json:"subject_type"`
	CouncilSize         *int     `json:"council_size,omitempty"`
	ConsensusThreshold  *float64 `json:"consensus_threshold,omitempty"`
	VotingWindowSeconds int64    `json:"voting_window_seconds,omitempty"`
}

func (r OpenSessionRequest) Validate() error {
	if strings.TrimSpace(r.SubjectID) == "" || strings.TrimSpace(r.SubjectType) == "" {
		return errInvalidRequest
	}
	if r.VotingWindowSeconds < 0 {
		return errInvalidRequest
	}
	return nil
}

type SubmitVoteRequest struct {
	AgentID    string  `json:"agent_id"`
	AgentRole  string  `json:"agent_role,omitempty"`
	Provider   string  `json:"provider,omitempty"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	LatencyMs  int64   `json:"latency_ms"`
}

func (r SubmitVoteRequest) Validate() error {
	if strings.TrimSpace(r.AgentID) == "" || strings.TrimSpace(r.Decision) == "" {
		return errInvalidRequest
	}
	return nil
}

type FinalizeSessionRequest struct {
	Cutoff bool `json:"cutoff"`
}

type CompleteSessionRequest struct {
	ReviewerID string `json:"reviewer_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type SessionResponse struct {
	SessionID          string  `json:"session_id"`
	SubjectID          string  `json:"subject_id"`
	SubjectType        string  `json:"subject_type"`
	CouncilSize        int     `json:"council_size"`
	ConsensusThreshold float64 `json:"consensus_threshold"`
	Status             string  `json:"status"`
	FinalDecision      string  `json:"final_decision,omitempty"`
	VoteCount          int     `json:"vote_count"`
	CutoffAt           string  `json:"cutoff_at,omitempty"`
	FinalizedAt        string  `json:"finalized_at,omitempty"`
	CompletedAt        string  `json:"completed_at,omitempty"`
	ReviewerID         string  `json:"reviewer_id,omitempty"`
	ReviewNotes        string  `json:"review_notes,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	Replayed           bool    `json:"replayed,omitempty"`
}

type SessionListResponse struct {
	Items []SessionResponse `json:"items"`
}

type VoteResponse struct {
	VoteID     string  `json:"vote_id"`
	SessionID  string  `json:"session_id"`
	AgentID    string  `json:"agent_id"`
	AgentRole  string  `json:"agent_role"`
	Provider   string  `json:"provider"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	LatencyMs  int64   `json:"latency_ms"`
	CreatedAt  string  `json:"created_at"`
}

type VoteListResponse struct {
	SessionID string         `json:"session_id"`
	Items     []VoteResponse `json:"items"`
}

type SubmitVoteResponse struct {
	Accepted      bool            `json:"accepted"`
	Duplicate     bool            `json:"duplicate"`
	Vote          *VoteResponse   `json:"vote,omitempty"`
	Session       SessionResponse `json:"session"`
	FinalDecision string          `json:"final_decision,omitempty"`
}

type TallyResponse struct {
	SessionID    string  `json:"session_id"`
	Status       string  `json:"status"`
	CouncilSize  int     `json:"council_size"`
	Approve      int     `json:"approve"`
	Reject       int     `json:"reject"`
	Escalate     int     `json:"escalate"`
	Total        int     `json:"total"`
	ApproveRate  float64 `json:"approve_rate"`
	RejectRate   float64 `json:"reject_rate"`
	EscalateRate float64 `json:"escalate_rate"`
}

type MetricsResponse struct {
	SessionID                   string  `json:"session_id"`
	Approve                     int     `json:"approve"`
	Reject                      int     `json:"reject"`
	Escalate                    int     `json:"escalate"`
	ApproveRate                 float64 `json:"approve_rate"`
	RejectRate                  float64 `json:"reject_rate"`
	EscalateRate                float64 `json:"escalate_rate"`
	AverageConfidence           float64 `json:"average_confidence"`
	MaxConfidence               float64 `json:"max_confidence"`
	AverageLatencyMs            float64 `json:"average_latency_ms"`
	MaxLatencyMs                int64   `json:"max_latency_ms"`
	ConfidenceWeightedLatencyMs float64 `json:"confidence_weighted_latency_ms"`
}

type FinalizeSessionResponse struct {
	Session       SessionResponse `json:"session"`
	FinalDecision string          `json:"final_decision"`
	Status        string          `json:"status"`
	Approve       int             `json:"approve"`
	Reject        int             `json:"reject"`
	Escalate      int             `json:"escalate"`
	Replayed      bool            `json:"replayed"`
}

type CouncilMemberResponse struct {
	AgentID   string `json:"agent_id"`
	AgentRole string `json:"agent_role"`
	Provider  string `json:"provider"`
}

type RosterResponse struct {
	Size    int                     `json:"size"`
	Members []CouncilMemberResponse `json:"members"`
}

type ReviewResponse struct {
	ReviewID    string `json:"review_id"`
	SessionID   string `json:"session_id"`
	SubjectID   string `json:"subject_id"`
	SubjectType string `json:"subject_type"`
	Approve     int    `json:"approve"`
	Reject      int    `json:"reject"`
	Escalate    int    `json:"escalate"`
	Cutoff      bool   `json:"cutoff"`
	CreatedAt   string `json:"created_at"`
}

type ReviewListResponse struct {
	Items []ReviewResponse `json:"items"`
}
