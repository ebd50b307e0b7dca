// Package tracer reconstructs agent-to-file-to-tool timelines from a
// time-ordered stream of tool-use events emitted by an external
// collaborator, and attributes each file operation to the agent that
// was active when it ran.
package tracer

import (
	"sort"
	"strings"
	"time"
)

// Event is one tool-use record from the external event stream. Only
// the fields the reconstruction needs are modeled; a caller flattens
// whatever richer log format it reads (assistant message content
// blocks, JSONL session entries, ...) into this shape.
type Event struct {
	SessionID       string
	MessageID       string
	ParentMessageID string
	Timestamp       time.Time
	ToolName        string
	Input           map[string]string
}

// FileOpType is one of the recognized file-mutating or file-reading
// tool names.
type FileOpType int

const (
	OpRead FileOpType = iota
	OpWrite
	OpEdit
	OpMultiEdit
	OpDelete
	OpGlob
	OpGrep
)

func (t FileOpType) String() string {
	switch t {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	case OpEdit:
		return "Edit"
	case OpMultiEdit:
		return "MultiEdit"
	case OpDelete:
		return "Delete"
	case OpGlob:
		return "Glob"
	case OpGrep:
		return "Grep"
	default:
		return "Unknown"
	}
}

var fileOpToolNames = map[string]FileOpType{
	"Read":      OpRead,
	"Write":     OpWrite,
	"Edit":      OpEdit,
	"MultiEdit": OpMultiEdit,
	"Delete":    OpDelete,
	"Glob":      OpGlob,
	"Grep":      OpGrep,
}

// AgentInvocation is a Task tool-use event carrying a subagent_type
// argument — the unit of agent attribution.
type AgentInvocation struct {
	Timestamp       time.Time
	AgentType       string
	TaskDescription string
	SessionID       string
	ParentMessageID string
}

// FileOperation is a file-touching tool-use event.
type FileOperation struct {
	Timestamp time.Time
	FilePath  string
	Operation FileOpType
	SessionID string
	MessageID string
	AgentType string // resolved active agent, "" if none
}

// FileAttribution is one agent's share of the operations recorded
// against a single file path.
type FileAttribution struct {
	AgentType           string
	ContributionPercent float64
	ConfidenceScore     float64
	Operations          []FileOpType
}

// AgentStats summarizes one agent type's activity within a session.
type AgentStats struct {
	AgentType        string
	TotalInvocations int
	FilesTouched     int
	ToolsUsed        []string
}

// SessionTrace is the reconstructed view of one session's events.
type SessionTrace struct {
	SessionID      string
	StartTime      time.Time
	EndTime        time.Time
	DurationMS     int64
	Agents         []AgentInvocation
	FileOperations []FileOperation
	AgentStats     map[string]AgentStats
	FileToAgents   map[string][]FileAttribution
}

// Trace reconstructs agent invocations, file operations, and
// attribution from a time-ordered event stream for one session. If
// target is non-empty, file operations are filtered to paths
// containing target as a case-sensitive substring; a session with no
// matching operations still appears in the result, with an empty
// FileOperations/FileToAgents.
func Trace(sessionID string, events []Event, target string) SessionTrace {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	trace := SessionTrace{
		SessionID:    sessionID,
		AgentStats:   make(map[string]AgentStats),
		FileToAgents: make(map[string][]FileAttribution),
	}

	var invocations []AgentInvocation
	var fileOps []FileOperation

	for _, ev := range sorted {
		if ev.ToolName == "Task" {
			if agentType, ok := ev.Input["subagent_type"]; ok && agentType != "" {
				invocations = append(invocations, AgentInvocation{
					Timestamp:       ev.Timestamp,
					AgentType:       agentType,
					TaskDescription: ev.Input["description"],
					SessionID:       ev.SessionID,
					ParentMessageID: ev.ParentMessageID,
				})
			}
			continue
		}

		opType, isFileOp := fileOpToolNames[ev.ToolName]
		if !isFileOp {
			continue
		}
		path, ok := ev.Input["file_path"]
		if !ok || path == "" {
			continue
		}
		if target != "" && !strings.Contains(path, target) {
			continue
		}

		fileOps = append(fileOps, FileOperation{
			Timestamp: ev.Timestamp,
			FilePath:  path,
			Operation: opType,
			SessionID: ev.SessionID,
			MessageID: ev.MessageID,
			AgentType: activeAgent(invocations, ev.Timestamp),
		})
	}

	trace.Agents = invocations
	trace.FileOperations = fileOps

	if len(sorted) > 0 {
		trace.StartTime = sorted[0].Timestamp
		trace.EndTime = sorted[len(sorted)-1].Timestamp
		trace.DurationMS = trace.EndTime.Sub(trace.StartTime).Milliseconds()
	}

	trace.AgentStats = buildAgentStats(invocations, fileOps)
	trace.FileToAgents = buildFileAttribution(fileOps)

	return trace
}

// activeAgent returns the agent_type of the most recent invocation
// with a timestamp at or before ts, or "" if none precedes it.
func activeAgent(invocations []AgentInvocation, ts time.Time) string {
	var active string
	for _, inv := range invocations {
		if inv.Timestamp.After(ts) {
			break
		}
		active = inv.AgentType
	}
	return active
}

func buildAgentStats(invocations []AgentInvocation, fileOps []FileOperation) map[string]AgentStats {
	stats := make(map[string]AgentStats)
	for _, inv := range invocations {
		s := stats[inv.AgentType]
		s.AgentType = inv.AgentType
		s.TotalInvocations++
		stats[inv.AgentType] = s
	}

	filesByAgent := make(map[string]map[string]struct{})
	toolsByAgent := make(map[string]map[string]struct{})
	for _, op := range fileOps {
		if op.AgentType == "" {
			continue
		}
		if filesByAgent[op.AgentType] == nil {
			filesByAgent[op.AgentType] = make(map[string]struct{})
			toolsByAgent[op.AgentType] = make(map[string]struct{})
		}
		filesByAgent[op.AgentType][op.FilePath] = struct{}{}
		toolsByAgent[op.AgentType][op.Operation.String()] = struct{}{}
	}

	for agentType, files := range filesByAgent {
		s := stats[agentType]
		s.AgentType = agentType
		s.FilesTouched = len(files)
		tools := make([]string, 0, len(toolsByAgent[agentType]))
		for name := range toolsByAgent[agentType] {
			tools = append(tools, name)
		}
		sort.Strings(tools)
		s.ToolsUsed = tools
		stats[agentType] = s
	}

	return stats
}

func buildFileAttribution(fileOps []FileOperation) map[string][]FileAttribution {
	type bucket struct {
		total      int
		resolved   int
		byAgent    map[string][]FileOpType
		agentOrder []string
	}

	byFile := make(map[string]*bucket)
	for _, op := range fileOps {
		b, ok := byFile[op.FilePath]
		if !ok {
			b = &bucket{byAgent: make(map[string][]FileOpType)}
			byFile[op.FilePath] = b
		}
		b.total++
		if op.AgentType == "" {
			continue
		}
		b.resolved++
		if _, seen := b.byAgent[op.AgentType]; !seen {
			b.agentOrder = append(b.agentOrder, op.AgentType)
		}
		b.byAgent[op.AgentType] = append(b.byAgent[op.AgentType], op.Operation)
	}

	result := make(map[string][]FileAttribution, len(byFile))
	for path, b := range byFile {
		if b.total == 0 {
			continue
		}
		confidence := float64(b.resolved) / float64(b.total)
		sort.Strings(b.agentOrder)

		attrs := make([]FileAttribution, 0, len(b.agentOrder))
		for _, agentType := range b.agentOrder {
			ops := b.byAgent[agentType]
			attrs = append(attrs, FileAttribution{
				AgentType:           agentType,
				ContributionPercent: float64(len(ops)) / float64(b.total) * 100,
				ConfidenceScore:     confidence,
				Operations:          ops,
			})
		}
		result[path] = attrs
	}
	return result
}

// Summary aggregates agent and file counts across a batch of traces —
// a read-only view over already-reconstructed data, not a new
// ingestion path.
type Summary struct {
	TotalSessions    int
	TotalAgents      int
	TotalFiles       int
	UniqueAgentTypes int
	MostActiveAgents []AgentCount
}

// AgentCount pairs an agent type with its invocation count across a
// batch of traces, used for the "most active agents" ranking.
type AgentCount struct {
	AgentType string
	Count     int
}

// Summarize computes aggregate statistics across a batch of session
// traces, with MostActiveAgents sorted by count descending (agent type
// ascending as a tie-break, for deterministic output).
func Summarize(traces []SessionTrace) Summary {
	counts := make(map[string]int)
	seenFiles := make(map[string]struct{})
	var totalAgents, totalFiles int

	for _, trace := range traces {
		totalAgents += len(trace.Agents)
		for _, inv := range trace.Agents {
			counts[inv.AgentType]++
		}
		for path := range trace.FileToAgents {
			if _, ok := seenFiles[path]; !ok {
				seenFiles[path] = struct{}{}
				totalFiles++
			}
		}
	}

	agentCounts := make([]AgentCount, 0, len(counts))
	for agentType, count := range counts {
		agentCounts = append(agentCounts, AgentCount{AgentType: agentType, Count: count})
	}
	sort.Slice(agentCounts, func(i, j int) bool {
		if agentCounts[i].Count != agentCounts[j].Count {
			return agentCounts[i].Count > agentCounts[j].Count
		}
		return agentCounts[i].AgentType < agentCounts[j].AgentType
	})

	return Summary{
		TotalSessions:    len(traces),
		TotalAgents:      totalAgents,
		TotalFiles:       totalFiles,
		UniqueAgentTypes: len(counts),
		MostActiveAgents: agentCounts,
	}
}
