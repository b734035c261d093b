package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"gopkg.in/yaml.v3"
)

type outcomeReport struct {
	CouncilSize   int            `json:"council_size" yaml:"council_size"`
	Threshold     float64        `json:"consensus_threshold" yaml:"consensus_threshold"`
	RequiredVotes int            `json:"required_votes" yaml:"required_votes"`
	Approve       int            `json:"approve" yaml:"approve"`
	Reject        int            `json:"reject" yaml:"reject"`
	Escalate      int            `json:"escalate" yaml:"escalate"`
	ApproveRate   float64        `json:"approve_rate" yaml:"approve_rate"`
	RejectRate    float64        `json:"reject_rate" yaml:"reject_rate"`
	EscalateRate  float64        `json:"escalate_rate" yaml:"escalate_rate"`
	Cutoff        bool           `json:"cutoff" yaml:"cutoff"`
	FinalDecision string         `json:"final_decision" yaml:"final_decision"`
	Status        string         `json:"status" yaml:"status"`
	Duplicates    []string       `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Metrics       *metricsReport `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

type metricsReport struct {
	AverageConfidence           float64 `json:"average_confidence" yaml:"average_confidence"`
	MaxConfidence               float64 `json:"max_confidence" yaml:"max_confidence"`
	AverageLatencyMs            float64 `json:"average_latency_ms" yaml:"average_latency_ms"`
	MaxLatencyMs                int64   `json:"max_latency_ms" yaml:"max_latency_ms"`
	ConfidenceWeightedLatencyMs float64 `json:"confidence_weighted_latency_ms" yaml:"confidence_weighted_latency_ms"`
}

func newOutcomeReport(tally entities.Tally, councilSize int, threshold float64, result entities.Classification, cutoff bool) outcomeReport {
	rates := services.ComputeRates(tally)
	return outcomeReport{
		CouncilSize:   councilSize,
		Threshold:     threshold,
		RequiredVotes: services.RequiredVotes(councilSize, threshold),
		Approve:       tally.Approve,
		Reject:        tally.Reject,
		Escalate:      tally.Escalate,
		ApproveRate:   rates.ApproveRate,
		RejectRate:    rates.RejectRate,
		EscalateRate:  rates.EscalateRate,
		Cutoff:        cutoff,
		FinalDecision: string(result.FinalDecision),
		Status:        string(result.Status),
	}
}

func newMetricsReport(metrics entities.Metrics) *metricsReport {
	return &metricsReport{
		AverageConfidence:           metrics.AverageConfidence,
		MaxConfidence:               metrics.MaxConfidence,
		AverageLatencyMs:            metrics.AverageLatencyMs,
		MaxLatencyMs:                metrics.MaxLatencyMs,
		ConfidenceWeightedLatencyMs: metrics.ConfidenceWeightedLatencyMs,
	}
}

func writeOutcome(out io.Writer, format string, report outcomeReport) error {
	switch strings.ToLower(format) {
	case "json":
		return writeJSON(out, report)
	case "yaml":
		return writeYAML(out, report)
	case "text", "":
		fmt.Fprintf(out, "decision:  %s (%s)\n", report.FinalDecision, report.Status)
		fmt.Fprintf(out, "council:   %d members, threshold %.2f, %d votes required\n",
			report.CouncilSize, report.Threshold, report.RequiredVotes)
		fmt.Fprintf(out, "tally:     approve=%d reject=%d escalate=%d\n", report.Approve, report.Reject, report.Escalate)
		fmt.Fprintf(out, "rates:     approve=%.3f reject=%.3f escalate=%.3f\n",
			report.ApproveRate, report.RejectRate, report.EscalateRate)
		if report.Cutoff {
			fmt.Fprintln(out, "cutoff:    yes")
		}
		if len(report.Duplicates) > 0 {
			fmt.Fprintf(out, "ignored:   duplicate votes from %s\n", strings.Join(report.Duplicates, ", "))
		}
		if report.Metrics != nil {
			fmt.Fprintf(out, "confidence: avg=%.3f max=%.3f\n", report.Metrics.AverageConfidence, report.Metrics.MaxConfidence)
			fmt.Fprintf(out, "latency:    avg=%.1fms max=%dms weighted=%.1fms\n",
				report.Metrics.AverageLatencyMs, report.Metrics.MaxLatencyMs, report.Metrics.ConfidenceWeightedLatencyMs)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeYAML(out io.Writer, value any) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}
