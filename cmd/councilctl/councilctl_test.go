package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, raw string) outcomeReport {
	t.Helper()
	var report outcomeReport
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	return report
}

func TestClassifyCommand(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		decision string
		status   string
	}{
		{"two thirds approve", []string{"--approve", "22", "--reject", "11"}, "approved", "consensus_reached"},
		{"one short of two thirds", []string{"--approve", "21", "--reject", "12"}, "escalated", "escalated_to_human"},
		{"strong approve", []string{"--approve", "25", "--reject", "5", "--escalate", "3"}, "approved", "consensus_reached"},
		{"strong reject", []string{"--approve", "5", "--reject", "25", "--escalate", "3"}, "rejected", "consensus_reached"},
		{"split", []string{"--approve", "12", "--reject", "12", "--escalate", "9"}, "escalated", "escalated_to_human"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"classify", "-o", "json"}, tc.args...)...)
			require.NoError(t, err)
			report := decodeReport(t, out)
			assert.Equal(t, tc.decision, report.FinalDecision)
			assert.Equal(t, tc.status, report.Status)
			assert.Equal(t, 22, report.RequiredVotes)
			assert.False(t, report.Cutoff)
		})
	}
}

func TestClassifyRequiresCutoffForIncompleteCouncil(t *testing.T) {
	_, err := runCLI(t, "classify", "--approve", "22")
	require.Error(t, err)

	out, err := runCLI(t, "classify", "--approve", "22", "--cutoff", "-o", "json")
	require.NoError(t, err)
	report := decodeReport(t, out)
	assert.Equal(t, "approved", report.FinalDecision)
	assert.True(t, report.Cutoff)
}

func TestClassifyRejectsInvalidThreshold(t *testing.T) {
	_, err := runCLI(t, "classify", "--approve", "33", "--threshold", "1.2")
	require.Error(t, err)
}

func TestTallyCommandReadsYAMLAndIgnoresDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ballot.yaml")
	ballot := `council_size: 3
consensus_threshold: 0.67
votes:
  - {agent_id: guardian-01, agent_role: guardian, provider: openai, decision: approve, confidence: 0.9, latency_ms: 100}
  - {agent_id: arbiter-01, agent_role: arbiter, provider: openai, decision: approve, confidence: 0.5, latency_ms: 300}
  - {agent_id: arbiter-01, agent_role: arbiter, provider: openai, decision: reject, confidence: 0.5, latency_ms: 300}
  - {agent_id: scribe-01, agent_role: scribe, provider: openai, decision: reject, confidence: 0.0, latency_ms: 200}
`
	require.NoError(t, os.WriteFile(path, []byte(ballot), 0o600))

	out, err := runCLI(t, "tally", path, "-o", "json")
	require.NoError(t, err)
	report := decodeReport(t, out)
	assert.Equal(t, "approved", report.FinalDecision)
	assert.Equal(t, 2, report.Approve)
	assert.Equal(t, 1, report.Reject)
	assert.Equal(t, []string{"arbiter-01"}, report.Duplicates)
	require.NotNil(t, report.Metrics)
	assert.InDelta(t, 0.9, report.Metrics.MaxConfidence, 1e-9)
	assert.Equal(t, int64(300), report.Metrics.MaxLatencyMs)
	assert.InDelta(t, (0.9*100+0.5*300)/1.4, report.Metrics.ConfidenceWeightedLatencyMs, 1e-9)
}

func TestTallyCommandReadsJSONWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ballot.json")
	ballot := `{"votes":[
  {"agent_id":"a","agent_role":"guardian","provider":"openai","decision":"reject","confidence":0.7,"latency_ms":10},
  {"agent_id":"b","agent_role":"arbiter","provider":"anthropic","decision":"reject","confidence":0.7,"latency_ms":10}
]}`
	require.NoError(t, os.WriteFile(path, []byte(ballot), 0o600))

	_, err := runCLI(t, "tally", path, "--council-size", "3")
	require.Error(t, err)

	out, err := runCLI(t, "tally", path, "--council-size", "3", "--cutoff", "-o", "json")
	require.NoError(t, err)
	report := decodeReport(t, out)
	assert.Equal(t, "rejected", report.FinalDecision)
	assert.True(t, report.Cutoff)
}

func TestTallyCommandRejectsInvalidVote(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ballot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`votes:
  - {agent_id: a, agent_role: guardian, provider: openai, decision: abstain, confidence: 0.5}
`), 0o600))
	_, err := runCLI(t, "tally", path, "--council-size", "1")
	require.Error(t, err)
}

func TestRosterCommandPrintsDefaultRoster(t *testing.T) {
	out, err := runCLI(t, "roster")
	require.NoError(t, err)
	assert.Contains(t, out, "33 members, 11 guardian, 11 arbiter, 11 scribe")

	out, err = runCLI(t, "roster", "-o", "yaml")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "council")
}

func TestRosterCommandRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`council:
  members:
    - {agent_id: a, role: guardian, provider: openai}
    - {agent_id: a, role: arbiter, provider: openai}
`), 0o600))
	_, err := runCLI(t, "roster", "--file", path)
	require.Error(t, err)
}

func TestSimulateCommand(t *testing.T) {
	out, err := runCLI(t, "simulate", "--approve", "25", "--reject", "5", "--escalate", "3", "-o", "json")
	require.NoError(t, err)
	report := decodeReport(t, out)
	assert.Equal(t, "approved", report.FinalDecision)
	assert.Equal(t, 33, report.CouncilSize)
	assert.False(t, report.Cutoff)

	out, err = runCLI(t, "simulate", "--approve", "12", "--reject", "12", "--escalate", "9")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "decision:  escalated (escalated_to_human)"), out)
}

func TestSimulateCommandFinalizesPartialCouncilAsCutoff(t *testing.T) {
	out, err := runCLI(t, "simulate", "--approve", "10", "--council-size", "15", "--threshold", "0.6", "-o", "json")
	require.NoError(t, err)
	report := decodeReport(t, out)
	assert.True(t, report.Cutoff)
	assert.Equal(t, 9, report.RequiredVotes)
	assert.Equal(t, "approved", report.FinalDecision)

	_, err = runCLI(t, "simulate", "--approve", "20", "--council-size", "15")
	require.Error(t, err)
}
