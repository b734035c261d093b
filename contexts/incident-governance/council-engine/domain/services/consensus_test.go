package services

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
)

func votesFor(approve, reject, escalate int) []entities.Vote {
	votes, err := DistributeVotes(DefaultRoster(), approve, reject, escalate, 0.8)
	if err != nil {
		panic(err)
	}
	return votes
}

func TestTallyVotesSumsToBatchLength(t *testing.T) {
	cases := []struct {
		name                      string
		approve, reject, escalate int
	}{
		{"empty", 0, 0, 0},
		{"unanimous approve", 33, 0, 0},
		{"mixed", 25, 5, 3},
		{"split", 12, 12, 9},
		{"partial", 4, 7, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			votes := votesFor(tc.approve, tc.reject, tc.escalate)
			tally := TallyVotes(votes)

			assert.Equal(t, len(votes), tally.Total())
			assert.Equal(t, tc.approve, tally.Approve)
			assert.Equal(t, tc.reject, tally.Reject)
			assert.Equal(t, tc.escalate, tally.Escalate)
		})
	}
}

func TestComputeRates(t *testing.T) {
	t.Run("rates sum to one", func(t *testing.T) {
		for _, tally := range []entities.Tally{
			{Approve: 25, Reject: 5, Escalate: 3},
			{Approve: 1},
			{Approve: 12, Reject: 12, Escalate: 9},
			{Approve: 7, Reject: 11, Escalate: 13},
		} {
			rates := ComputeRates(tally)
			assert.InDelta(t, 1.0, rates.ApproveRate+rates.RejectRate+rates.EscalateRate, 1e-9)
		}
	})

	t.Run("empty tally yields zero rates", func(t *testing.T) {
		assert.Equal(t, entities.Rates{}, ComputeRates(entities.Tally{}))
	})
}

func TestClassifyThresholdBoundary(t *testing.T) {
	approved, err := Classify(entities.Tally{Approve: 22, Reject: 11}, 33, 0.67)
	require.NoError(t, err)
	assert.Equal(t, entities.FinalDecisionApproved, approved.FinalDecision)
	assert.Equal(t, entities.SessionStatusConsensusReached, approved.Status)

	escalated, err := Classify(entities.Tally{Approve: 21, Reject: 12}, 33, 0.67)
	require.NoError(t, err)
	assert.Equal(t, entities.FinalDecisionEscalated, escalated.FinalDecision)
	assert.Equal(t, entities.SessionStatusEscalatedToHuman, escalated.Status)
}

func TestClassifyRoundsThresholdToNearestVote(t *testing.T) {
	// 0.52 of 33 is 17.16 votes; 17/33 (about 0.515) is enough.
	require.Equal(t, 17, RequiredVotes(33, 0.52))

	approved, err := Classify(entities.Tally{Approve: 17, Reject: 16}, 33, 0.52)
	require.NoError(t, err)
	assert.Equal(t, entities.FinalDecisionApproved, approved.FinalDecision)

	rejected, err := Classify(entities.Tally{Approve: 16, Reject: 17}, 33, 0.52)
	require.NoError(t, err)
	assert.Equal(t, entities.FinalDecisionRejected, rejected.FinalDecision)

	escalated, err := Classify(entities.Tally{Approve: 16, Reject: 16, Escalate: 1}, 33, 0.52)
	require.NoError(t, err)
	assert.Equal(t, entities.FinalDecisionEscalated, escalated.FinalDecision)

	// 0.53 of 33 is 17.49 votes, still 17; 0.54 is 17.82, which needs 18.
	assert.Equal(t, 17, RequiredVotes(33, 0.53))
	assert.Equal(t, 18, RequiredVotes(33, 0.54))
}

func TestClassifyScenarios(t *testing.T) {
	cases := []struct {
		name     string
		tally    entities.Tally
		decision entities.FinalDecision
		status   entities.SessionStatus
	}{
		{"clear approval", entities.Tally{Approve: 25, Reject: 5, Escalate: 3}, entities.FinalDecisionApproved, entities.SessionStatusConsensusReached},
		{"even split escalates", entities.Tally{Approve: 12, Reject: 12, Escalate: 9}, entities.FinalDecisionEscalated, entities.SessionStatusEscalatedToHuman},
		{"clear rejection", entities.Tally{Approve: 3, Reject: 28, Escalate: 2}, entities.FinalDecisionRejected, entities.SessionStatusConsensusReached},
		{"all escalate", entities.Tally{Escalate: 33}, entities.FinalDecisionEscalated, entities.SessionStatusEscalatedToHuman},
		{"incomplete batch measured against council size", entities.Tally{Approve: 20}, entities.FinalDecisionEscalated, entities.SessionStatusEscalatedToHuman},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Classify(tc.tally, 33, 0.67)
			require.NoError(t, err)
			assert.Equal(t, tc.decision, result.FinalDecision)
			assert.Equal(t, tc.status, result.Status)
		})
	}
}

func TestClassifyApproveWinsTieAtThreshold(t *testing.T) {
	// Both outcomes clear a 0.5 threshold of a council of 4.
	result, err := Classify(entities.Tally{Approve: 2, Reject: 2}, 4, 0.5)
	require.NoError(t, err)
	assert.Equal(t, entities.FinalDecisionApproved, result.FinalDecision)
}

func TestClassifyIsDeterministic(t *testing.T) {
	tally := entities.Tally{Approve: 18, Reject: 9, Escalate: 6}
	first, err := Classify(tally, 33, 0.55)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Classify(tally, 33, 0.55)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestClassifyRejectsInvalidConfiguration(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		threshold float64
	}{
		{"zero council", 0, 0.67},
		{"negative council", -3, 0.67},
		{"zero threshold", 33, 0},
		{"threshold above one", 33, 1.01},
		{"nan threshold", 33, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Classify(entities.Tally{Approve: 1}, tc.size, tc.threshold)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrConfiguration))
		})
	}
}

func TestRequiredVotes(t *testing.T) {
	assert.Equal(t, 22, RequiredVotes(33, 0.67))
	assert.Equal(t, 17, RequiredVotes(33, 0.5))
	assert.Equal(t, 33, RequiredVotes(33, 1))
	assert.Equal(t, 1, RequiredVotes(33, 0.001))
}

func TestComputeMetrics(t *testing.T) {
	votes := []entities.Vote{
		{Decision: entities.DecisionApprove, Confidence: 1.0, LatencyMs: 100},
		{Decision: entities.DecisionReject, Confidence: 0.5, LatencyMs: 400},
		{Decision: entities.DecisionEscalate, Confidence: 0.5, LatencyMs: 200},
		{Decision: entities.DecisionApprove, Confidence: 0, LatencyMs: 900},
	}
	metrics := ComputeMetrics(votes)

	assert.Equal(t, entities.Tally{Approve: 2, Reject: 1, Escalate: 1}, metrics.Tally)
	assert.InDelta(t, 0.5, metrics.Rates.ApproveRate, 1e-9)
	assert.InDelta(t, 0.5, metrics.AverageConfidence, 1e-9)
	assert.InDelta(t, 1.0, metrics.MaxConfidence, 1e-9)
	assert.InDelta(t, 400.0, metrics.AverageLatencyMs, 1e-9)
	assert.Equal(t, int64(900), metrics.MaxLatencyMs)
	// (1.0*100 + 0.5*400 + 0.5*200) / 2.0
	assert.InDelta(t, 200.0, metrics.ConfidenceWeightedLatencyMs, 1e-9)

	assert.Equal(t, entities.Metrics{}, ComputeMetrics(nil))
}

func TestValidateVote(t *testing.T) {
	valid := entities.Vote{
		AgentID:    "guardian-01",
		AgentRole:  entities.AgentRoleGuardian,
		Provider:   "openai",
		Decision:   entities.DecisionApprove,
		Confidence: 0.9,
	}
	require.NoError(t, ValidateVote(valid))

	invalid := map[string]func(v *entities.Vote){
		"missing agent":     func(v *entities.Vote) { v.AgentID = " " },
		"unknown decision":  func(v *entities.Vote) { v.Decision = "abstain" },
		"unknown role":      func(v *entities.Vote) { v.AgentRole = "oracle" },
		"missing provider":  func(v *entities.Vote) { v.Provider = "" },
		"confidence > 1":    func(v *entities.Vote) { v.Confidence = 1.2 },
		"negative latency":  func(v *entities.Vote) { v.LatencyMs = -1 },
		"confidence is NaN": func(v *entities.Vote) { v.Confidence = math.NaN() },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			vote := valid
			mutate(&vote)
			assert.ErrorIs(t, ValidateVote(vote), domainerrors.ErrInvalidVoteInput)
		})
	}
}

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster()
	require.Equal(t, entities.DefaultCouncilSize, roster.Size())
	require.NoError(t, ValidateRoster(roster))

	perRole := map[entities.AgentRole]int{}
	for _, member := range roster.Members {
		perRole[member.AgentRole]++
	}
	for _, role := range entities.AgentRoles {
		assert.Equal(t, 11, perRole[role])
	}
}

func TestValidateRosterRejectsDuplicates(t *testing.T) {
	roster := entities.Roster{Members: []entities.CouncilMember{
		{AgentID: "a", AgentRole: entities.AgentRoleScribe, Provider: "openai"},
		{AgentID: "a", AgentRole: entities.AgentRoleArbiter, Provider: "google"},
	}}
	assert.ErrorIs(t, ValidateRoster(roster), domainerrors.ErrInvalidRoster)
}

func TestDistributeVotesRejectsOversizedBatch(t *testing.T) {
	_, err := DistributeVotes(DefaultRoster(), 30, 3, 1, 0.5)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidVoteInput)
}
