package main

import (
	"fmt"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"github.com/spf13/cobra"
)

type classifyOptions struct {
	approve     int
	reject      int
	escalate    int
	councilSize int
	threshold   float64
	cutoff      bool
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	opts := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a tally against a council size and threshold",
		Example: `  councilctl classify --approve 22 --reject 11
  councilctl classify --approve 12 --reject 12 --escalate 9 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tally := entities.Tally{Approve: opts.approve, Reject: opts.reject, Escalate: opts.escalate}
			if opts.approve < 0 || opts.reject < 0 || opts.escalate < 0 {
				return fmt.Errorf("vote counts must not be negative")
			}
			if tally.Total() > opts.councilSize {
				return fmt.Errorf("%d votes exceed a council of %d", tally.Total(), opts.councilSize)
			}
			if tally.Total() < opts.councilSize && !opts.cutoff {
				return fmt.Errorf("%d of %d votes cast; pass --cutoff to classify an incomplete council", tally.Total(), opts.councilSize)
			}
			result, err := services.Classify(tally, opts.councilSize, opts.threshold)
			if err != nil {
				return err
			}
			report := newOutcomeReport(tally, opts.councilSize, opts.threshold, result, tally.Total() < opts.councilSize)
			return writeOutcome(cmd.OutOrStdout(), root.output, report)
		},
	}
	cmd.Flags().IntVar(&opts.approve, "approve", 0, "Approve votes")
	cmd.Flags().IntVar(&opts.reject, "reject", 0, "Reject votes")
	cmd.Flags().IntVar(&opts.escalate, "escalate", 0, "Escalate votes")
	cmd.Flags().IntVar(&opts.councilSize, "council-size", entities.DefaultCouncilSize, "Expected number of votes")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", entities.DefaultConsensusThreshold, "Consensus threshold in (0,1]")
	cmd.Flags().BoolVar(&opts.cutoff, "cutoff", false, "Classify even when fewer votes than the council size were cast")
	return cmd
}
