package services

import "coai/contexts/incident-governance/council-engine/domain/entities"

// TallyVotes counts votes per decision. Uniqueness of agents is the caller's
// concern; every element of votes is counted exactly once, so the counts
// always sum to len(votes) for well-formed decisions.
func TallyVotes(votes []entities.Vote) entities.Tally {
	var tally entities.Tally
	for _, vote := range votes {
		switch vote.Decision {
		case entities.DecisionApprove:
			tally.Approve++
		case entities.DecisionReject:
			tally.Reject++
		default:
			// Unknown decisions never reach the tally past boundary validation;
			// counting them as escalations keeps the sum invariant.
			tally.Escalate++
		}
	}
	return tally
}

// ComputeRates returns count/total per decision, or all zero for an empty tally.
func ComputeRates(tally entities.Tally) entities.Rates {
	total := tally.Total()
	if total <= 0 {
		return entities.Rates{}
	}
	return entities.Rates{
		ApproveRate:  float64(tally.Approve) / float64(total),
		RejectRate:   float64(tally.Reject) / float64(total),
		EscalateRate: float64(tally.Escalate) / float64(total),
	}
}

func ComputeMetrics(votes []entities.Vote) entities.Metrics {
	tally := TallyVotes(votes)
	metrics := entities.Metrics{
		Tally: tally,
		Rates: ComputeRates(tally),
	}
	if len(votes) == 0 {
		return metrics
	}

	var (
		confidenceSum   float64
		latencySum      float64
		weightedLatency float64
	)
	for _, vote := range votes {
		confidenceSum += vote.Confidence
		latencySum += float64(vote.LatencyMs)
		weightedLatency += vote.Confidence * float64(vote.LatencyMs)
		if vote.Confidence > metrics.MaxConfidence {
			metrics.MaxConfidence = vote.Confidence
		}
		if vote.LatencyMs > metrics.MaxLatencyMs {
			metrics.MaxLatencyMs = vote.LatencyMs
		}
	}
	count := float64(len(votes))
	metrics.AverageConfidence = confidenceSum / count
	metrics.AverageLatencyMs = latencySum / count
	if confidenceSum > 0 {
		metrics.ConfidenceWeightedLatencyMs = weightedLatency / confidenceSum
	}
	return metrics
}
