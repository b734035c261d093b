package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"coai/contexts/incident-governance/council-engine/application/commands"
	"coai/contexts/incident-governance/council-engine/application/queries"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	httptransport "coai/contexts/incident-governance/council-engine/transport/http"
)

type Handler struct {
	Council commands.CouncilUseCase
	Queries queries.CouncilQueryUseCase
	Logger  *slog.Logger
}

func (h Handler) OpenSessionHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.OpenSessionRequest,
) (httptransport.SessionResponse, error) {
	result, err := h.Council.OpenSession(ctx, commands.OpenSessionCommand{
		IdempotencyKey:     idempotencyKey,
		SubjectID:          req.SubjectID,
		SubjectType:        entities.SubjectType(strings.ToLower(strings.TrimSpace(req.SubjectType))),
		CouncilSize:        req.CouncilSize,
		ConsensusThreshold: req.ConsensusThreshold,
		VotingWindow:       time.Duration(req.VotingWindowSeconds) * time.Second,
	})
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	resp := mapSession(result.Session)
	resp.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) GetSessionHandler(ctx context.Context, sessionID string) (httptransport.SessionResponse, error) {
	session, err := h.Queries.GetSession(ctx, sessionID)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

func (h Handler) ListSessionsHandler(
	ctx context.Context,
	status string,
	subjectType string,
	limit int,
) (httptransport.SessionListResponse, error) {
	sessions, err := h.Queries.ListSessions(ctx, entities.SessionFilter{
		Status:      entities.SessionStatus(strings.ToLower(strings.TrimSpace(status))),
		SubjectType: entities.SubjectType(strings.ToLower(strings.TrimSpace(subjectType))),
		Limit:       limit,
	})
	if err != nil {
		return httptransport.SessionListResponse{}, err
	}
	items := make([]httptransport.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, mapSession(session))
	}
	return httptransport.SessionListResponse{Items: items}, nil
}

func (h Handler) SubmitVoteHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.SubmitVoteRequest,
) (httptransport.SubmitVoteResponse, error) {
	result, err := h.Council.SubmitVote(ctx, commands.SubmitVoteCommand{
		SessionID:  sessionID,
		AgentID:    req.AgentID,
		AgentRole:  entities.ParseAgentRole(req.AgentRole),
		Provider:   req.Provider,
		Decision:   entities.ParseDecision(req.Decision),
		Confidence: req.Confidence,
		Reasoning:  req.Reasoning,
		LatencyMs:  req.LatencyMs,
	})
	if err != nil {
		return httptransport.SubmitVoteResponse{}, err
	}
	resp := httptransport.SubmitVoteResponse{
		Accepted:  result.Accepted,
		Duplicate: result.Duplicate,
		Session:   mapSession(result.Session),
	}
	if result.Accepted {
		vote := mapVote(result.Vote)
		resp.Vote = &vote
	}
	if result.Classification != nil {
		resp.FinalDecision = string(result.Classification.FinalDecision)
	}
	return resp, nil
}

func (h Handler) ListVotesHandler(ctx context.Context, sessionID string) (httptransport.VoteListResponse, error) {
	votes, err := h.Queries.ListVotes(ctx, sessionID)
	if err != nil {
		return httptransport.VoteListResponse{}, err
	}
	items := make([]httptransport.VoteResponse, 0, len(votes))
	for _, vote := range votes {
		items = append(items, mapVote(vote))
	}
	return httptransport.VoteListResponse{
		SessionID: strings.TrimSpace(sessionID),
		Items:     items,
	}, nil
}

func (h Handler) TallyHandler(ctx context.Context, sessionID string) (httptransport.TallyResponse, error) {
	view, err := h.Queries.GetTally(ctx, sessionID)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{
		SessionID:    view.Session.SessionID,
		Status:       string(view.Session.Status),
		CouncilSize:  view.Session.CouncilSize,
		Approve:      view.Tally.Approve,
		Reject:       view.Tally.Reject,
		Escalate:     view.Tally.Escalate,
		Total:        view.Tally.Total(),
		ApproveRate:  view.Rates.ApproveRate,
		RejectRate:   view.Rates.RejectRate,
		EscalateRate: view.Rates.EscalateRate,
	}, nil
}

func (h Handler) MetricsHandler(ctx context.Context, sessionID string) (httptransport.MetricsResponse, error) {
	metrics, err := h.Queries.GetMetrics(ctx, sessionID)
	if err != nil {
		return httptransport.MetricsResponse{}, err
	}
	return httptransport.MetricsResponse{
		SessionID:                   strings.TrimSpace(sessionID),
		Approve:                     metrics.Tally.Approve,
		Reject:                      metrics.Tally.Reject,
		Escalate:                    metrics.Tally.Escalate,
		ApproveRate:                 metrics.Rates.ApproveRate,
		RejectRate:                  metrics.Rates.RejectRate,
		EscalateRate:                metrics.Rates.EscalateRate,
		AverageConfidence:           metrics.AverageConfidence,
		MaxConfidence:               metrics.MaxConfidence,
		AverageLatencyMs:            metrics.AverageLatencyMs,
		MaxLatencyMs:                metrics.MaxLatencyMs,
		ConfidenceWeightedLatencyMs: metrics.ConfidenceWeightedLatencyMs,
	}, nil
}

func (h Handler) FinalizeSessionHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.FinalizeSessionRequest,
) (httptransport.FinalizeSessionResponse, error) {
	result, err := h.Council.FinalizeSession(ctx, commands.FinalizeSessionCommand{
		SessionID: sessionID,
		Cutoff:    req.Cutoff,
	})
	if err != nil {
		return httptransport.FinalizeSessionResponse{}, err
	}
	return httptransport.FinalizeSessionResponse{
		Session:       mapSession(result.Session),
		FinalDecision: string(result.Classification.FinalDecision),
		Status:        string(result.Classification.Status),
		Approve:       result.Tally.Approve,
		Reject:        result.Tally.Reject,
		Escalate:      result.Tally.Escalate,
		Replayed:      result.Replayed,
	}, nil
}

func (h Handler) CompleteSessionHandler(
	ctx context.Context,
	sessionID string,
	reviewerID string,
	idempotencyKey string,
	req httptransport.CompleteSessionRequest,
) (httptransport.SessionResponse, error) {
	if strings.TrimSpace(req.ReviewerID) != "" {
		reviewerID = req.ReviewerID
	}
	session, err := h.Council.CompleteSession(ctx, commands.CompleteSessionCommand{
		SessionID:      sessionID,
		ReviewerID:     reviewerID,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

func (h Handler) RosterHandler(ctx context.Context) (httptransport.RosterResponse, error) {
	roster, err := h.Queries.Roster(ctx)
	if err != nil {
		return httptransport.RosterResponse{}, err
	}
	members := make([]httptransport.CouncilMemberResponse, 0, roster.Size())
	for _, member := range roster.Members {
		members = append(members, httptransport.CouncilMemberResponse{
			AgentID:   member.AgentID,
			AgentRole: string(member.AgentRole),
			Provider:  member.Provider,
		})
	}
	return httptransport.RosterResponse{Size: roster.Size(), Members: members}, nil
}

func (h Handler) ListReviewsHandler(ctx context.Context, limit int) (httptransport.ReviewListResponse, error) {
	reviews, err := h.Queries.ListReviews(ctx, limit)
	if err != nil {
		return httptransport.ReviewListResponse{}, err
	}
	items := make([]httptransport.ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, httptransport.ReviewResponse{
			ReviewID:    review.ReviewID,
			SessionID:   review.SessionID,
			SubjectID:   review.SubjectID,
			SubjectType: string(review.SubjectType),
			Approve:     review.Tally.Approve,
			Reject:      review.Tally.Reject,
			Escalate:    review.Tally.Escalate,
			Cutoff:      review.Cutoff,
			CreatedAt:   review.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.ReviewListResponse{Items: items}, nil
}

func mapSession(session entities.Session) httptransport.SessionResponse {
	return httptransport.SessionResponse{
		SessionID:          session.SessionID,
		SubjectID:          session.SubjectID,
		SubjectType:        string(session.SubjectType),
		CouncilSize:        session.CouncilSize,
		ConsensusThreshold: session.ConsensusThreshold,
		Status:             string(session.Status),
		FinalDecision:      string(session.FinalDecision),
		VoteCount:          session.VoteCount,
		CutoffAt:           formatOptionalTime(session.CutoffAt),
		FinalizedAt:        formatOptionalTime(session.FinalizedAt),
		CompletedAt:        formatOptionalTime(session.CompletedAt),
		ReviewerID:         session.ReviewerID,
		ReviewNotes:        session.ReviewNotes,
		CreatedAt:          session.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          session.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapVote(vote entities.Vote) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		VoteID:     vote.VoteID,
		SessionID:  vote.SessionID,
		AgentID:    vote.AgentID,
		AgentRole:  string(vote.AgentRole),
		Provider:   vote.Provider,
		Decision:   string(vote.Decision),
		Confidence: vote.Confidence,
		Reasoning:  vote.Reasoning,
		LatencyMs:  vote.LatencyMs,
		CreatedAt:  vote.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
