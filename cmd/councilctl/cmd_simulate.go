package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	councilengine "coai/contexts/incident-governance/council-engine"
	"coai/contexts/incident-governance/council-engine/adapters/memory"
	"coai/contexts/incident-governance/council-engine/adapters/notify"
	rosteradapter "coai/contexts/incident-governance/council-engine/adapters/roster"
	"coai/contexts/incident-governance/council-engine/application/commands"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"github.com/spf13/cobra"
)

type simulateOptions struct {
	rosterPath  string
	approve     int
	reject      int
	escalate    int
	councilSize int
	threshold   float64
	confidence  float64
	latencyMs   int64
	verbose     bool
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a full deliberation through the engine with a chosen vote split",
		Long: `Opens a session on an in-process store, casts the requested approve, reject
and escalate votes from roster members in roster order, and finalizes it. A
split that leaves seats empty is finalized as a cutoff.`,
		Example: `  councilctl simulate --approve 25 --reject 5 --escalate 3
  councilctl simulate --approve 10 --council-size 15 --threshold 0.6 -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := runSimulation(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return writeOutcome(cmd.OutOrStdout(), root.output, report)
		},
	}
	cmd.Flags().StringVarP(&opts.rosterPath, "roster", "r", "", "Roster YAML file (default: built-in roster)")
	cmd.Flags().IntVar(&opts.approve, "approve", 0, "Approve votes")
	cmd.Flags().IntVar(&opts.reject, "reject", 0, "Reject votes")
	cmd.Flags().IntVar(&opts.escalate, "escalate", 0, "Escalate votes")
	cmd.Flags().IntVar(&opts.councilSize, "council-size", 0, "Council size (default: roster size)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", entities.DefaultConsensusThreshold, "Consensus threshold in (0,1]")
	cmd.Flags().Float64Var(&opts.confidence, "confidence", 0.8, "Confidence attached to every simulated vote")
	cmd.Flags().Int64Var(&opts.latencyMs, "latency-ms", 0, "Latency attached to every simulated vote")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine events to stderr")
	return cmd
}

func runSimulation(ctx context.Context, opts *simulateOptions, logOut io.Writer) (outcomeReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	roster, err := loadRoster(opts.rosterPath)
	if err != nil {
		return outcomeReport{}, err
	}
	votes, err := services.DistributeVotes(roster, opts.approve, opts.reject, opts.escalate, opts.confidence)
	if err != nil {
		return outcomeReport{}, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.verbose {
		if logOut == nil {
			logOut = os.Stderr
		}
		logger = slog.New(slog.NewTextHandler(logOut, nil))
	}

	store := memory.NewStore(nil)
	module := councilengine.NewModule(councilengine.Dependencies{
		Sessions:    store,
		Idempotency: store,
		Outbox:      store,
		Reviews:     store,
		Notifier:    notify.LogNotifier{Logger: logger},
		Roster:      rosteradapter.StaticSource{Members: roster.Members},
		Clock:       store,
		IDGen:       store,
		Logger:      logger,
	})

	openCmd := commands.OpenSessionCommand{
		IdempotencyKey:     "councilctl-simulate",
		SubjectID:          "simulation",
		SubjectType:        entities.SubjectTypeProposal,
		ConsensusThreshold: &opts.threshold,
	}
	if opts.councilSize != 0 {
		openCmd.CouncilSize = &opts.councilSize
	}
	opened, err := module.Council.OpenSession(ctx, openCmd)
	if err != nil {
		return outcomeReport{}, err
	}
	session := opened.Session
	if len(votes) > session.CouncilSize {
		return outcomeReport{}, fmt.Errorf("%d votes requested for a council of %d", len(votes), session.CouncilSize)
	}

	for _, vote := range votes {
		result, err := module.Council.SubmitVote(ctx, commands.SubmitVoteCommand{
			SessionID:  session.SessionID,
			AgentID:    vote.AgentID,
			AgentRole:  vote.AgentRole,
			Provider:   vote.Provider,
			Decision:   vote.Decision,
			Confidence: vote.Confidence,
			LatencyMs:  opts.latencyMs,
		})
		if err != nil {
			return outcomeReport{}, err
		}
		session = result.Session
	}

	cutoff := !session.IsTerminal()
	finalized, err := module.Council.FinalizeSession(ctx, commands.FinalizeSessionCommand{
		SessionID: session.SessionID,
		Cutoff:    cutoff,
	})
	if err != nil {
		return outcomeReport{}, err
	}
	metrics, err := module.Queries.GetMetrics(ctx, session.SessionID)
	if err != nil {
		return outcomeReport{}, err
	}

	report := newOutcomeReport(metrics.Tally, finalized.Session.CouncilSize, finalized.Session.ConsensusThreshold,
		finalized.Classification, cutoff)
	report.Metrics = newMetricsReport(metrics)
	return report, nil
}
