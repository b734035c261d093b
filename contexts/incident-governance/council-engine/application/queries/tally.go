package queries

import (
	"context"
	"strings"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"
	"coai/contexts/incident-governance/council-engine/ports"
)

type TallyView struct {
	Session entities.Session
	Tally   entities.Tally
	Rates   entities.Rates
}

type CouncilQueryUseCase struct {
	Sessions ports.SessionRepository
	Rosters  ports.RosterSource
	Reviews  ports.ReviewQueue
}

func (uc CouncilQueryUseCase) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return entities.Session{}, domainerrors.ErrInvalidSessionInput
	}
	return uc.Sessions.GetSession(ctx, sessionID)
}

func (uc CouncilQueryUseCase) GetTally(ctx context.Context, sessionID string) (TallyView, error) {
	session, votes, err := uc.load(ctx, sessionID)
	if err != nil {
		return TallyView{}, err
	}
	tally := services.TallyVotes(votes)
	return TallyView{
		Session: session,
		Tally:   tally,
		Rates:   services.ComputeRates(tally),
	}, nil
}

func (uc CouncilQueryUseCase) GetMetrics(ctx context.Context, sessionID string) (entities.Metrics, error) {
	_, votes, err := uc.load(ctx, sessionID)
	if err != nil {
		return entities.Metrics{}, err
	}
	return services.ComputeMetrics(votes), nil
}

func (uc CouncilQueryUseCase) ListVotes(ctx context.Context, sessionID string) ([]entities.Vote, error) {
	_, votes, err := uc.load(ctx, sessionID)
	return votes, err
}

func (uc CouncilQueryUseCase) ListSessions(ctx context.Context, filter entities.SessionFilter) ([]entities.Session, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domainerrors.ErrInvalidSessionInput
	}
	if filter.SubjectType != "" && !filter.SubjectType.IsValid() {
		return nil, domainerrors.ErrInvalidSessionInput
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return uc.Sessions.ListSessions(ctx, filter)
}

func (uc CouncilQueryUseCase) Roster(ctx context.Context) (entities.Roster, error) {
	if uc.Rosters == nil {
		return entities.Roster{}, nil
	}
	return uc.Rosters.Roster(ctx)
}

// ListReviews returns escalated sessions queued for a human reviewer, oldest
// first.
func (uc CouncilQueryUseCase) ListReviews(ctx context.Context, limit int) ([]entities.ReviewRequest, error) {
	if uc.Reviews == nil {
		return []entities.ReviewRequest{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return uc.Reviews.ListReviews(ctx, limit)
}

func (uc CouncilQueryUseCase) load(ctx context.Context, sessionID string) (entities.Session, []entities.Vote, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return entities.Session{}, nil, err
	}
	votes, err := uc.Sessions.ListVotes(ctx, session.SessionID)
	if err != nil {
		return entities.Session{}, nil, err
	}
	return session, votes, nil
}
