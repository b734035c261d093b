package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"coai/contexts/incident-governance/council-engine/adapters/memory"
	rosteradapter "coai/contexts/incident-governance/council-engine/adapters/roster"
	"coai/contexts/incident-governance/council-engine/application/commands"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"
	"coai/contexts/incident-governance/council-engine/ports"
	eventsv1 "coai/contracts/gen/events/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []ports.SessionFinalizedNotice
	err     error
}

func (n *recordingNotifier) NotifySessionFinalized(_ context.Context, notice ports.SessionFinalizedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func ptr[T any](v T) *T { return &v }

// lateVoteStore appends one more vote right after the votes are listed, as if
// it landed between the tally and the save.
type lateVoteStore struct {
	*memory.Store
	late *entities.Vote
}

func (s *lateVoteStore) ListVotes(ctx context.Context, sessionID string) ([]entities.Vote, error) {
	votes, err := s.Store.ListVotes(ctx, sessionID)
	if err != nil || s.late == nil {
		return votes, err
	}
	late := *s.late
	s.late = nil
	if _, err := s.Store.AppendVote(ctx, late); err != nil {
		return nil, err
	}
	return votes, nil
}

// failingOutbox rejects events of one type and records the rest.
type failingOutbox struct {
	*memory.Store
	eventType string
	err       error
}

func (o failingOutbox) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	if envelope.EventType == o.eventType {
		return o.err
	}
	return o.Store.AppendOutbox(ctx, envelope)
}

type harness struct {
	store    *memory.Store
	clock    *testClock
	notifier *recordingNotifier
	council  commands.CouncilUseCase
}

func newHarness(t *testing.T) harness {
	t.Helper()
	store := memory.NewStore(nil)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	return harness{
		store:    store,
		clock:    clock,
		notifier: notifier,
		council: commands.CouncilUseCase{
			Sessions:    store,
			Idempotency: store,
			Outbox:      store,
			Notifier:    notifier,
			Roster:      rosteradapter.StaticSource{},
			Clock:       clock,
			IDGen:       store,
		},
	}
}

func (h harness) open(t *testing.T, key string) entities.Session {
	t.Helper()
	result, err := h.council.OpenSession(context.Background(), commands.OpenSessionCommand{
		IdempotencyKey: key,
		SubjectID:      "incident-" + key,
		SubjectType:    entities.SubjectTypeIncidentReport,
	})
	require.NoError(t, err)
	return result.Session
}

// cast submits votes drawn from the default roster in roster order and
// returns the result of the last submission.
func (h harness) cast(t *testing.T, sessionID string, approve, reject, escalate int) commands.SubmitVoteResult {
	t.Helper()
	votes, err := services.DistributeVotes(services.DefaultRoster(), approve, reject, escalate, 0.9)
	require.NoError(t, err)
	var last commands.SubmitVoteResult
	for _, vote := range votes {
		last, err = h.council.SubmitVote(context.Background(), commands.SubmitVoteCommand{
			SessionID:  sessionID,
			AgentID:    vote.AgentID,
			AgentRole:  vote.AgentRole,
			Provider:   vote.Provider,
			Decision:   vote.Decision,
			Confidence: vote.Confidence,
			LatencyMs:  250,
		})
		require.NoError(t, err)
		require.True(t, last.Accepted)
	}
	return last
}

func TestOpenSessionDefaults(t *testing.T) {
	h := newHarness(t)
	session := h.open(t, "k-1")

	assert.Equal(t, entities.DefaultCouncilSize, session.CouncilSize)
	assert.Equal(t, entities.DefaultConsensusThreshold, session.ConsensusThreshold)
	assert.Equal(t, entities.SessionStatusVoting, session.Status)
	assert.Zero(t, session.VoteCount)
	assert.Nil(t, session.CutoffAt)
}

func TestOpenSessionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cmd := commands.OpenSessionCommand{
		IdempotencyKey: "k-1",
		SubjectID:      "incident-1",
		SubjectType:    entities.SubjectTypeAssessment,
	}
	first, err := h.council.OpenSession(ctx, cmd)
	require.NoError(t, err)
	second, err := h.council.OpenSession(ctx, cmd)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Session.SessionID, second.Session.SessionID)

	cmd.SubjectID = "incident-2"
	_, err = h.council.OpenSession(ctx, cmd)
	require.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)
}

func TestOpenSessionRejectsInvalidConfiguration(t *testing.T) {
	h := newHarness(t)
	cases := []commands.OpenSessionCommand{
		{ConsensusThreshold: ptr(1.5)},
		{ConsensusThreshold: ptr(-0.2)},
		{ConsensusThreshold: ptr(0.0)},
		{CouncilSize: ptr(-3)},
		{CouncilSize: ptr(0)},
		{CouncilSize: ptr(40)},
	}
	for i, cmd := range cases {
		cmd.IdempotencyKey = fmt.Sprintf("k-%d", i)
		cmd.SubjectID = "incident-1"
		cmd.SubjectType = entities.SubjectTypeIncidentReport
		_, err := h.council.OpenSession(context.Background(), cmd)
		require.ErrorIs(t, err, domainerrors.ErrConfiguration, "case %d", i)
	}

	_, err := h.council.OpenSession(context.Background(), commands.OpenSessionCommand{
		IdempotencyKey: "k-subject",
		SubjectType:    entities.SubjectTypeIncidentReport,
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidSessionInput)

	_, err = h.council.OpenSession(context.Background(), commands.OpenSessionCommand{
		SubjectID:   "incident-1",
		SubjectType: entities.SubjectTypeIncidentReport,
	})
	require.ErrorIs(t, err, domainerrors.ErrIdempotencyKeyRequired)
}

func TestFullCouncilFinalizesOnLastVote(t *testing.T) {
	cases := []struct {
		name                      string
		approve, reject, escalate int
		decision                  entities.FinalDecision
		status                    entities.SessionStatus
	}{
		{"two thirds approve", 22, 11, 0, entities.FinalDecisionApproved, entities.SessionStatusConsensusReached},
		{"one short of two thirds", 21, 12, 0, entities.FinalDecisionEscalated, entities.SessionStatusEscalatedToHuman},
		{"strong approve", 25, 5, 3, entities.FinalDecisionApproved, entities.SessionStatusConsensusReached},
		{"strong reject", 5, 25, 3, entities.FinalDecisionRejected, entities.SessionStatusConsensusReached},
		{"split council", 12, 12, 9, entities.FinalDecisionEscalated, entities.SessionStatusEscalatedToHuman},
		{"all escalate", 0, 0, 33, entities.FinalDecisionEscalated, entities.SessionStatusEscalatedToHuman},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			session := h.open(t, "k-1")

			last := h.cast(t, session.SessionID, tc.approve, tc.reject, tc.escalate)
			require.NotNil(t, last.Classification)
			assert.Equal(t, tc.decision, last.Classification.FinalDecision)
			assert.Equal(t, tc.status, last.Session.Status)
			assert.Equal(t, 33, last.Session.VoteCount)
			assert.Equal(t, 1, h.notifier.count())
			assert.Equal(t, tc.decision, h.notifier.notices[0].FinalDecision)
			assert.Equal(t, entities.Tally{Approve: tc.approve, Reject: tc.reject, Escalate: tc.escalate}, h.notifier.notices[0].Tally)
		})
	}
}

func TestDuplicateVoteIsNotCounted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")

	cmd := commands.SubmitVoteCommand{
		SessionID:  session.SessionID,
		AgentID:    "guardian-01",
		Decision:   entities.DecisionApprove,
		Confidence: 0.8,
	}
	first, err := h.council.SubmitVote(ctx, cmd)
	require.NoError(t, err)
	require.True(t, first.Accepted)
	require.Equal(t, entities.AgentRoleGuardian, first.Vote.AgentRole)
	require.Equal(t, "openai", first.Vote.Provider)

	cmd.Decision = entities.DecisionReject
	second, err := h.council.SubmitVote(ctx, cmd)
	require.NoError(t, err)
	require.False(t, second.Accepted)
	require.True(t, second.Duplicate)
	require.Equal(t, 1, second.Session.VoteCount)

	votes, err := h.store.ListVotes(ctx, session.SessionID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Equal(t, entities.DecisionApprove, votes[0].Decision)
}

func TestSubmitVoteValidatesAgainstRoster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")

	_, err := h.council.SubmitVote(ctx, commands.SubmitVoteCommand{
		SessionID: session.SessionID,
		AgentID:   "stranger-01",
		Decision:  entities.DecisionApprove,
	})
	require.ErrorIs(t, err, domainerrors.ErrUnknownAgent)

	_, err = h.council.SubmitVote(ctx, commands.SubmitVoteCommand{
		SessionID: session.SessionID,
		AgentID:   "guardian-01",
		AgentRole: entities.AgentRoleScribe,
		Decision:  entities.DecisionApprove,
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidVoteInput)

	invalid := []commands.SubmitVoteCommand{
		{SessionID: session.SessionID, AgentID: "guardian-02", Decision: "abstain"},
		{SessionID: session.SessionID, AgentID: "guardian-02", Decision: entities.DecisionApprove, Confidence: 1.2},
		{SessionID: session.SessionID, AgentID: "guardian-02", Decision: entities.DecisionApprove, LatencyMs: -1},
		{SessionID: session.SessionID, Decision: entities.DecisionApprove},
		{AgentID: "guardian-02", Decision: entities.DecisionApprove},
	}
	for i, cmd := range invalid {
		_, err := h.council.SubmitVote(ctx, cmd)
		require.ErrorIs(t, err, domainerrors.ErrInvalidVoteInput, "case %d", i)
	}

	current, err := h.store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Zero(t, current.VoteCount)
}

func TestSubmitVoteUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.council.SubmitVote(context.Background(), commands.SubmitVoteCommand{
		SessionID: "missing",
		AgentID:   "guardian-01",
		Decision:  entities.DecisionApprove,
	})
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestFinalizeIncompleteSessionWithoutCutoff(t *testing.T) {
	h := newHarness(t)
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 20, 0, 0)

	_, err := h.council.FinalizeSession(context.Background(), commands.FinalizeSessionCommand{SessionID: session.SessionID})
	require.ErrorIs(t, err, domainerrors.ErrIncompleteSession)
	require.Zero(t, h.notifier.count())
}

func TestFinalizeWithCutoffMeasuresAgainstFullCouncil(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 21, 0, 0)

	result, err := h.council.FinalizeSession(ctx, commands.FinalizeSessionCommand{SessionID: session.SessionID, Cutoff: true})
	require.NoError(t, err)
	require.False(t, result.Replayed)
	// 21 unanimous approvals are still short of 22 of 33.
	require.Equal(t, entities.FinalDecisionEscalated, result.Classification.FinalDecision)
	require.Equal(t, entities.Tally{Approve: 21}, result.Tally)

	_, err = h.council.SubmitVote(ctx, commands.SubmitVoteCommand{
		SessionID: session.SessionID,
		AgentID:   "scribe-11",
		Decision:  entities.DecisionApprove,
	})
	require.ErrorIs(t, err, domainerrors.ErrSessionClosed)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 22, 11, 0)
	require.Equal(t, 1, h.notifier.count())

	replay, err := h.council.FinalizeSession(ctx, commands.FinalizeSessionCommand{SessionID: session.SessionID})
	require.NoError(t, err)
	require.True(t, replay.Replayed)
	require.Equal(t, entities.FinalDecisionApproved, replay.Classification.FinalDecision)
	require.Equal(t, entities.SessionStatusConsensusReached, replay.Classification.Status)
	require.Equal(t, 1, h.notifier.count())

	finalized := 0
	pending, err := h.store.ListPendingOutbox(ctx, 500)
	require.NoError(t, err)
	for _, row := range pending {
		if row.EventType == eventsv1.EventCouncilSessionFinalized {
			finalized++
		}
	}
	require.Equal(t, 1, finalized)
}

func TestNotifierFailureDoesNotUndoFinalization(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("smtp down")
	session := h.open(t, "k-1")

	last := h.cast(t, session.SessionID, 25, 5, 3)
	require.NotNil(t, last.Classification)

	stored, err := h.store.GetSession(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.Equal(t, entities.FinalDecisionApproved, stored.FinalDecision)
	require.Equal(t, 1, h.notifier.count())
}

func TestVotingWindowCutoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.council.OpenSession(ctx, commands.OpenSessionCommand{
		IdempotencyKey: "k-1",
		SubjectID:      "incident-1",
		SubjectType:    entities.SubjectTypeIncidentReport,
		VotingWindow:   time.Minute,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session.CutoffAt)
	h.cast(t, result.Session.SessionID, 3, 0, 0)

	h.clock.Advance(2 * time.Minute)
	_, err = h.council.SubmitVote(ctx, commands.SubmitVoteCommand{
		SessionID: result.Session.SessionID,
		AgentID:   "scribe-01",
		Decision:  entities.DecisionApprove,
	})
	require.ErrorIs(t, err, domainerrors.ErrSessionClosed)

	// A passed cutoff counts as an external deadline even without the flag.
	finalized, err := h.council.FinalizeSession(ctx, commands.FinalizeSessionCommand{SessionID: result.Session.SessionID})
	require.NoError(t, err)
	require.Equal(t, entities.FinalDecisionEscalated, finalized.Classification.FinalDecision)
}

func TestCompleteSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")

	_, err := h.council.CompleteSession(ctx, commands.CompleteSessionCommand{
		SessionID:      session.SessionID,
		ReviewerID:     "reviewer-1",
		IdempotencyKey: "c-0",
	})
	require.ErrorIs(t, err, domainerrors.ErrSessionNotTerminal)

	h.cast(t, session.SessionID, 12, 12, 9)
	cmd := commands.CompleteSessionCommand{
		SessionID:      session.SessionID,
		ReviewerID:     "reviewer-1",
		Notes:          "confirmed escalation",
		IdempotencyKey: "c-1",
	}
	completed, err := h.council.CompleteSession(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, entities.SessionStatusCompleted, completed.Status)
	require.Equal(t, entities.FinalDecisionEscalated, completed.FinalDecision)

	replayed, err := h.council.CompleteSession(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, completed.SessionID, replayed.SessionID)

	cmd.IdempotencyKey = "c-2"
	_, err = h.council.CompleteSession(ctx, cmd)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyCompleted)

	final, err := h.council.FinalizeSession(ctx, commands.FinalizeSessionCommand{SessionID: session.SessionID})
	require.NoError(t, err)
	require.True(t, final.Replayed)
	require.Equal(t, entities.SessionStatusEscalatedToHuman, final.Classification.Status)
}

func TestConcurrentSubmissionsNeverOverfill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.council.OpenSession(ctx, commands.OpenSessionCommand{
		IdempotencyKey: "k-1",
		SubjectID:      "incident-1",
		SubjectType:    entities.SubjectTypeIncidentReport,
		CouncilSize:    ptr(10),
	})
	require.NoError(t, err)

	roster := services.DefaultRoster()
	var wg sync.WaitGroup
	for _, member := range roster.Members {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			_, _ = h.council.SubmitVote(ctx, commands.SubmitVoteCommand{
				SessionID: result.Session.SessionID,
				AgentID:   agentID,
				Decision:  entities.DecisionApprove,
			})
		}(member.AgentID)
	}
	wg.Wait()

	stored, err := h.store.GetSession(ctx, result.Session.SessionID)
	require.NoError(t, err)
	require.Equal(t, 10, stored.VoteCount)
	require.Equal(t, entities.FinalDecisionApproved, stored.FinalDecision)
	require.Equal(t, 1, h.notifier.count())
}

func TestFinalizedEventCarriesTally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 12, 12, 9)

	pending, err := h.store.ListPendingOutbox(ctx, 500)
	require.NoError(t, err)
	var found bool
	for _, row := range pending {
		if row.EventType != eventsv1.EventCouncilSessionFinalized {
			continue
		}
		var envelope eventsv1.Envelope
		require.NoError(t, json.Unmarshal(row.Payload, &envelope))
		var data eventsv1.SessionFinalizedData
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
		require.Equal(t, session.SessionID, data.SessionID)
		require.Equal(t, string(entities.FinalDecisionEscalated), data.FinalDecision)
		require.Equal(t, 9, data.Escalate)
		require.Equal(t, session.SessionID, envelope.PartitionKey)
		found = true
	}
	require.True(t, found)
}

func TestOpenSessionExplicitConfiguration(t *testing.T) {
	h := newHarness(t)
	result, err := h.council.OpenSession(context.Background(), commands.OpenSessionCommand{
		IdempotencyKey:     "k-1",
		SubjectID:          "incident-1",
		SubjectType:        entities.SubjectTypeIncidentReport,
		CouncilSize:        ptr(15),
		ConsensusThreshold: ptr(0.6),
	})
	require.NoError(t, err)
	assert.Equal(t, 15, result.Session.CouncilSize)
	assert.Equal(t, 0.6, result.Session.ConsensusThreshold)
}

func TestFinalizeRetalliesWhenVoteLandsBeforeSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 21, 0, 0)

	council := h.council
	council.Sessions = &lateVoteStore{
		Store: h.store,
		late: &entities.Vote{
			VoteID:     "late-vote",
			SessionID:  session.SessionID,
			AgentID:    "scribe-11",
			AgentRole:  entities.AgentRoleScribe,
			Provider:   "openai",
			Decision:   entities.DecisionApprove,
			Confidence: 0.9,
			CreatedAt:  h.clock.Now(),
		},
	}

	result, err := council.FinalizeSession(ctx, commands.FinalizeSessionCommand{SessionID: session.SessionID, Cutoff: true})
	require.NoError(t, err)
	require.False(t, result.Replayed)
	require.Equal(t, entities.Tally{Approve: 22}, result.Tally)
	require.Equal(t, entities.FinalDecisionApproved, result.Classification.FinalDecision)

	stored, err := h.store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	votes, err := h.store.ListVotes(ctx, session.SessionID)
	require.NoError(t, err)
	require.Len(t, votes, stored.VoteCount)
	expected, err := services.Classify(services.TallyVotes(votes), stored.CouncilSize, stored.ConsensusThreshold)
	require.NoError(t, err)
	require.Equal(t, expected.FinalDecision, stored.FinalDecision)
	require.Equal(t, 1, h.notifier.count())
}

func TestFinalizeNotifiesWhenOutboxWriteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 21, 0, 0)

	boom := errors.New("outbox unavailable")
	council := h.council
	council.Outbox = failingOutbox{Store: h.store, eventType: eventsv1.EventCouncilSessionFinalized, err: boom}

	_, err := council.FinalizeSession(ctx, commands.FinalizeSessionCommand{SessionID: session.SessionID, Cutoff: true})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, h.notifier.count())

	stored, err := h.store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, entities.SessionStatusEscalatedToHuman, stored.Status)
}

func TestLastVoteFinalizesWhenVoteEventFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "k-1")
	h.cast(t, session.SessionID, 22, 10, 0)

	boom := errors.New("outbox unavailable")
	council := h.council
	council.Outbox = failingOutbox{Store: h.store, eventType: eventsv1.EventCouncilVoteCast, err: boom}

	_, err := council.SubmitVote(ctx, commands.SubmitVoteCommand{
		SessionID:  session.SessionID,
		AgentID:    "scribe-11",
		Decision:   entities.DecisionReject,
		Confidence: 0.9,
	})
	require.ErrorIs(t, err, boom)

	stored, err := h.store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Equal(t, 33, stored.VoteCount)
	require.Equal(t, entities.FinalDecisionApproved, stored.FinalDecision)
	require.Equal(t, 1, h.notifier.count())
}
