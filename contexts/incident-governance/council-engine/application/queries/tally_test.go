package queries

import (
	"context"
	"testing"
	"time"

	"coai/contexts/incident-governance/council-engine/adapters/memory"
	rosteradapter "coai/contexts/incident-governance/council-engine/adapters/roster"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore([]entities.Session{
		{
			SessionID:          "session-a",
			SubjectID:          "incident-1",
			SubjectType:        entities.SubjectTypeIncidentReport,
			CouncilSize:        4,
			ConsensusThreshold: 0.67,
			Status:             entities.SessionStatusVoting,
			CreatedAt:          baseTime,
		},
		{
			SessionID:          "session-b",
			SubjectID:          "proposal-1",
			SubjectType:        entities.SubjectTypeProposal,
			CouncilSize:        3,
			ConsensusThreshold: 0.67,
			Status:             entities.SessionStatusEscalatedToHuman,
			FinalDecision:      entities.FinalDecisionEscalated,
			CreatedAt:          baseTime.Add(time.Minute),
		},
	})

	votes := []entities.Vote{
		{AgentID: "guardian-01", Decision: entities.DecisionApprove, Confidence: 1, LatencyMs: 100},
		{AgentID: "arbiter-01", Decision: entities.DecisionApprove, Confidence: 0.5, LatencyMs: 400},
		{AgentID: "scribe-01", Decision: entities.DecisionEscalate, Confidence: 0.5, LatencyMs: 200},
	}
	for i, vote := range votes {
		vote.SessionID = "session-a"
		vote.VoteID = vote.AgentID
		vote.CreatedAt = baseTime.Add(time.Duration(i) * time.Second)
		_, err := store.AppendVote(context.Background(), vote)
		require.NoError(t, err)
	}
	return store
}

func TestGetTallyCountsStoredVotes(t *testing.T) {
	store := seededStore(t)
	uc := CouncilQueryUseCase{Sessions: store}

	view, err := uc.GetTally(context.Background(), " session-a ")
	require.NoError(t, err)
	assert.Equal(t, entities.Tally{Approve: 2, Escalate: 1}, view.Tally)
	assert.Equal(t, 3, view.Session.VoteCount)
	assert.InDelta(t, 2.0/3.0, view.Rates.ApproveRate, 1e-9)
	assert.InDelta(t, 1.0, view.Rates.ApproveRate+view.Rates.RejectRate+view.Rates.EscalateRate, 1e-9)
}

func TestGetTallyErrors(t *testing.T) {
	uc := CouncilQueryUseCase{Sessions: seededStore(t)}

	_, err := uc.GetTally(context.Background(), "  ")
	require.ErrorIs(t, err, domainerrors.ErrInvalidSessionInput)

	_, err = uc.GetTally(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestGetMetricsMatchesDomainComputation(t *testing.T) {
	store := seededStore(t)
	uc := CouncilQueryUseCase{Sessions: store}

	metrics, err := uc.GetMetrics(context.Background(), "session-a")
	require.NoError(t, err)

	votes, err := uc.ListVotes(context.Background(), "session-a")
	require.NoError(t, err)
	require.Len(t, votes, 3)
	assert.Equal(t, services.ComputeMetrics(votes), metrics)

	assert.Equal(t, int64(400), metrics.MaxLatencyMs)
	assert.InDelta(t, (100+200+100)/2.0, metrics.ConfidenceWeightedLatencyMs, 1e-9)
}

func TestListSessionsValidatesFilters(t *testing.T) {
	uc := CouncilQueryUseCase{Sessions: seededStore(t)}

	_, err := uc.ListSessions(context.Background(), entities.SessionFilter{Status: "paused"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidSessionInput)
	_, err = uc.ListSessions(context.Background(), entities.SessionFilter{SubjectType: "memo"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidSessionInput)

	items, err := uc.ListSessions(context.Background(), entities.SessionFilter{Limit: 1000})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "session-b", items[0].SessionID)

	items, err = uc.ListSessions(context.Background(), entities.SessionFilter{Status: entities.SessionStatusVoting})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "session-a", items[0].SessionID)
}

func TestListReviewsOldestFirst(t *testing.T) {
	store := seededStore(t)
	uc := CouncilQueryUseCase{Sessions: store, Reviews: store}

	for i, sessionID := range []string{"session-late", "session-early"} {
		require.NoError(t, store.EnqueueReview(context.Background(), entities.ReviewRequest{
			ReviewID:  "review-" + sessionID,
			SessionID: sessionID,
			CreatedAt: baseTime.Add(time.Duration(1-i) * time.Hour),
		}))
	}
	require.NoError(t, store.EnqueueReview(context.Background(), entities.ReviewRequest{
		SessionID: "session-early",
		CreatedAt: baseTime.Add(24 * time.Hour),
	}))

	reviews, err := uc.ListReviews(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "session-early", reviews[0].SessionID)
	assert.Equal(t, "review-session-early", reviews[0].ReviewID)

	reviews, err = uc.ListReviews(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
}

func TestRosterAndReviewsWithoutSources(t *testing.T) {
	uc := CouncilQueryUseCase{Sessions: seededStore(t)}

	roster, err := uc.Roster(context.Background())
	require.NoError(t, err)
	assert.True(t, roster.IsEmpty())

	reviews, err := uc.ListReviews(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestRosterServesConfiguredSource(t *testing.T) {
	members := []entities.CouncilMember{
		{AgentID: "guardian-01", AgentRole: entities.AgentRoleGuardian, Provider: "openai"},
		{AgentID: "arbiter-01", AgentRole: entities.AgentRoleArbiter, Provider: "anthropic"},
	}
	uc := CouncilQueryUseCase{Sessions: seededStore(t), Rosters: rosteradapter.StaticSource{Members: members}}

	roster, err := uc.Roster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, members, roster.Members)
}
