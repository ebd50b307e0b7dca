package tracer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func t0(offsetSeconds int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offsetSeconds) * time.Second)
}

func sampleEvents() []Event {
	return []Event{
		{
			SessionID: "s1", MessageID: "m1", Timestamp: t0(0), ToolName: "Task",
			Input: map[string]string{"subagent_type": "architect", "description": "design the API"},
		},
		{
			SessionID: "s1", MessageID: "m2", ParentMessageID: "m1", Timestamp: t0(1), ToolName: "Write",
			Input: map[string]string{"file_path": "/repo/api.go"},
		},
		{
			SessionID: "s1", MessageID: "m3", ParentMessageID: "m1", Timestamp: t0(2), ToolName: "Read",
			Input: map[string]string{"file_path": "/repo/api.go"},
		},
		{
			SessionID: "s1", MessageID: "m4", Timestamp: t0(3), ToolName: "Task",
			Input: map[string]string{"subagent_type": "developer", "description": "implement the handler"},
		},
		{
			SessionID: "s1", MessageID: "m5", ParentMessageID: "m4", Timestamp: t0(4), ToolName: "Edit",
			Input: map[string]string{"file_path": "/repo/api.go"},
		},
		{
			SessionID: "s1", MessageID: "m6", Timestamp: t0(5), ToolName: "Grep",
			Input: map[string]string{"file_path": "/repo/handler_test.go"},
		},
		{
			// not a file op or a Task: ignored
			SessionID: "s1", MessageID: "m7", Timestamp: t0(6), ToolName: "Bash",
			Input: map[string]string{"command": "go test ./..."},
		},
	}
}

func TestTraceExtractsAgentInvocations(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "")
	require.Len(t, trace.Agents, 2)
	assert.Equal(t, "architect", trace.Agents[0].AgentType)
	assert.Equal(t, "design the API", trace.Agents[0].TaskDescription)
	assert.Equal(t, "developer", trace.Agents[1].AgentType)
}

func TestTraceExtractsFileOperations(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "")
	require.Len(t, trace.FileOperations, 4)
	assert.Equal(t, OpWrite, trace.FileOperations[0].Operation)
	assert.Equal(t, "/repo/api.go", trace.FileOperations[0].FilePath)
}

func TestActiveAgentAttributionByPrecedingInvocation(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "")

	// Write and Read on api.go happen after the architect invocation
	// but before the developer one.
	assert.Equal(t, "architect", trace.FileOperations[0].AgentType)
	assert.Equal(t, "architect", trace.FileOperations[1].AgentType)

	// Edit on api.go happens after the developer invocation.
	assert.Equal(t, "developer", trace.FileOperations[2].AgentType)
}

func TestFileAttributionContributionSumsToHundred(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "")
	attrs, ok := trace.FileToAgents["/repo/api.go"]
	require.True(t, ok)

	var total float64
	for _, a := range attrs {
		total += a.ContributionPercent
		assert.Equal(t, 1.0, a.ConfidenceScore)
		assert.NotEmpty(t, a.Operations)
	}
	assert.InDelta(t, 100.0, total, 0.01)
}

func TestFileAttributionSplitsBetweenAgents(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "")
	attrs := trace.FileToAgents["/repo/api.go"]

	byAgent := make(map[string]float64)
	for _, a := range attrs {
		byAgent[a.AgentType] = a.ContributionPercent
	}
	assert.InDelta(t, 66.67, byAgent["architect"], 0.01) // 2 of 3 ops
	assert.InDelta(t, 33.33, byAgent["developer"], 0.01) // 1 of 3 ops
}

func TestUnattributedOpBeforeAnyInvocationHasNoAttributionRow(t *testing.T) {
	events := append([]Event{
		{SessionID: "s1", MessageID: "m0", Timestamp: t0(-1), ToolName: "Read", Input: map[string]string{"file_path": "/repo/early.go"}},
	}, sampleEvents()...)

	trace := Trace("s1", events, "")
	attrs := trace.FileToAgents["/repo/early.go"]
	require.Len(t, attrs, 0, "an unresolved-agent op still counts toward total but contributes no attribution row")
}

func TestTargetFilterIsCaseSensitiveSubstring(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "handler_test")
	require.Len(t, trace.FileOperations, 1)
	assert.Equal(t, "/repo/handler_test.go", trace.FileOperations[0].FilePath)

	empty := Trace("s1", sampleEvents(), "HANDLER_TEST")
	assert.Empty(t, empty.FileOperations, "filter must be case-sensitive")
}

func TestNonexistentTargetFilterProducesEmptyResult(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "nonexistent.go")
	assert.Equal(t, "s1", trace.SessionID, "the session itself still appears in the result")
	assert.Empty(t, trace.FileOperations)
	assert.Empty(t, trace.FileToAgents)
}

func TestAgentStatsAggregation(t *testing.T) {
	trace := Trace("s1", sampleEvents(), "")

	architect := trace.AgentStats["architect"]
	assert.Equal(t, 1, architect.TotalInvocations)
	assert.Equal(t, 1, architect.FilesTouched)
	assert.Contains(t, architect.ToolsUsed, "Write")
	assert.Contains(t, architect.ToolsUsed, "Read")

	developer := trace.AgentStats["developer"]
	assert.Equal(t, 1, developer.TotalInvocations)
	assert.Equal(t, 2, developer.FilesTouched) // Edit on api.go, Grep on handler_test.go
	assert.Contains(t, developer.ToolsUsed, "Edit")
}

func TestSummarizeRanksMostActiveAgents(t *testing.T) {
	traceA := Trace("s1", sampleEvents(), "")
	traceB := Trace("s2", sampleEvents(), "")

	summary := Summarize([]SessionTrace{traceA, traceB})
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 4, summary.TotalAgents)
	assert.Equal(t, 2, summary.UniqueAgentTypes)

	require.Len(t, summary.MostActiveAgents, 2)
	assert.Equal(t, 2, summary.MostActiveAgents[0].Count)
}

func TestFileOpTypeString(t *testing.T) {
	assert.Equal(t, "MultiEdit", OpMultiEdit.String())
	assert.Equal(t, "Grep", OpGrep.String())
}
