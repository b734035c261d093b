package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "coai/contexts/incident-governance/council-engine/application"
	"coai/contexts/incident-governance/council-engine/application/commands"
	"coai/contexts/incident-governance/council-engine/ports"
)

// CutoffSweeper is the external voting deadline: every session still in voting
// whose cutoff has passed is finalized with whatever tally it holds.
type CutoffSweeper struct {
	Sessions  ports.SessionRepository
	Council   commands.CouncilUseCase
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (s CutoffSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	expired, err := s.Sessions.ListExpiredVotingSessions(ctx, now, limit)
	if err != nil {
		logger.Error("council cutoff sweep list failed",
			"event", "council_cutoff_list_failed",
			"module", moduleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	var errs []error
	finalized := 0
	for _, session := range expired {
		result, err := s.Council.FinalizeSession(ctx, commands.FinalizeSessionCommand{
			SessionID: session.SessionID,
			Cutoff:    true,
		})
		if err != nil {
			logger.Error("council cutoff finalize failed",
				"event", "council_cutoff_finalize_failed",
				"module", moduleName,
				"layer", "worker",
				"session_id", session.SessionID,
				"error", err.Error(),
			)
			errs = append(errs, err)
			continue
		}
		if !result.Replayed {
			finalized++
		}
	}

	logger.Info("council cutoff sweep completed",
		"event", "council_cutoff_sweep_completed",
		"module", moduleName,
		"layer", "worker",
		"expired_count", len(expired),
		"finalized_count", finalized,
	)
	return errors.Join(errs...)
}
