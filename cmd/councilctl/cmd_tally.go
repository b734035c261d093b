package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// voteFile is the on-disk ballot format. Both JSON and YAML use the same keys.
type voteFile struct {
	CouncilSize int             `json:"council_size" yaml:"council_size"`
	Threshold   float64         `json:"consensus_threshold" yaml:"consensus_threshold"`
	Votes       []voteFileEntry `json:"votes" yaml:"votes"`
}

type voteFileEntry struct {
	AgentID    string  `json:"agent_id" yaml:"agent_id"`
	AgentRole  string  `json:"agent_role" yaml:"agent_role"`
	Provider   string  `json:"provider" yaml:"provider"`
	Decision   string  `json:"decision" yaml:"decision"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reasoning  string  `json:"reasoning" yaml:"reasoning"`
	LatencyMs  int64   `json:"latency_ms" yaml:"latency_ms"`
}

type tallyOptions struct {
	councilSize int
	threshold   float64
	cutoff      bool
}

func newTallyCmd(root *rootOptions) *cobra.Command {
	opts := &tallyOptions{}
	cmd := &cobra.Command{
		Use:   "tally <votes.json|votes.yaml>",
		Short: "Tally a ballot file and classify the outcome",
		Long: `Reads a ballot file, validates every vote, ignores repeat votes from the
same agent and classifies the result. Flags override the council size and
threshold recorded in the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ballot, err := loadVoteFile(args[0])
			if err != nil {
				return err
			}
			councilSize := ballot.CouncilSize
			if cmd.Flags().Changed("council-size") || councilSize == 0 {
				councilSize = opts.councilSize
			}
			threshold := ballot.Threshold
			if cmd.Flags().Changed("threshold") || threshold == 0 {
				threshold = opts.threshold
			}
			if err := services.ValidateCouncilConfig(councilSize, threshold); err != nil {
				return err
			}

			votes, duplicates, err := ballotVotes(ballot)
			if err != nil {
				return err
			}
			if len(votes) > councilSize {
				return fmt.Errorf("%d distinct voters exceed a council of %d", len(votes), councilSize)
			}
			if len(votes) < councilSize && !opts.cutoff {
				return fmt.Errorf("%d of %d votes cast; pass --cutoff to classify an incomplete council", len(votes), councilSize)
			}

			metrics := services.ComputeMetrics(votes)
			result, err := services.Classify(metrics.Tally, councilSize, threshold)
			if err != nil {
				return err
			}
			report := newOutcomeReport(metrics.Tally, councilSize, threshold, result, len(votes) < councilSize)
			report.Duplicates = duplicates
			report.Metrics = newMetricsReport(metrics)
			return writeOutcome(cmd.OutOrStdout(), root.output, report)
		},
	}
	cmd.Flags().IntVar(&opts.councilSize, "council-size", entities.DefaultCouncilSize, "Expected number of votes")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", entities.DefaultConsensusThreshold, "Consensus threshold in (0,1]")
	cmd.Flags().BoolVar(&opts.cutoff, "cutoff", false, "Classify even when fewer votes than the council size were cast")
	return cmd
}

func loadVoteFile(path string) (voteFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return voteFile{}, err
	}
	var ballot voteFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &ballot)
	default:
		err = yaml.Unmarshal(raw, &ballot)
	}
	if err != nil {
		return voteFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return ballot, nil
}

// ballotVotes keeps the first vote per agent, matching how a live session
// treats repeat submissions.
func ballotVotes(ballot voteFile) ([]entities.Vote, []string, error) {
	seen := make(map[string]struct{}, len(ballot.Votes))
	votes := make([]entities.Vote, 0, len(ballot.Votes))
	var duplicates []string
	for i, entry := range ballot.Votes {
		vote := entities.Vote{
			AgentID:    strings.TrimSpace(entry.AgentID),
			AgentRole:  entities.ParseAgentRole(entry.AgentRole),
			Provider:   strings.TrimSpace(entry.Provider),
			Decision:   entities.ParseDecision(entry.Decision),
			Confidence: entry.Confidence,
			Reasoning:  entry.Reasoning,
			LatencyMs:  entry.LatencyMs,
		}
		if err := services.ValidateVote(vote); err != nil {
			return nil, nil, fmt.Errorf("vote %d: %w", i+1, err)
		}
		if _, ok := seen[vote.AgentID]; ok {
			duplicates = append(duplicates, vote.AgentID)
			continue
		}
		seen[vote.AgentID] = struct{}{}
		votes = append(votes, vote)
	}
	return votes, duplicates, nil
}
