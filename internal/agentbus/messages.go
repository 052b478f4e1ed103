package agentbus

import "time"

// Subject patterns for the agent bus. Delegated worker agents publish
// heartbeats and tool-call requests on these subjects; the watchdog and
// tool router subscribe to them.
const (
	// SubjectAgentHeartbeat is the pattern for a single agent's heartbeats.
	// Use fmt.Sprintf(SubjectAgentHeartbeat, agentID).
	SubjectAgentHeartbeat = "agent.%s.heartbeat"

	// SubjectAllHeartbeats subscribes to every agent's heartbeats.
	SubjectAllHeartbeats = "agent.*.heartbeat"

	// SubjectAgentSignal is the pattern for a single agent's signal reports
	// (the artifacts the watchdog synthesizes signals from).
	SubjectAgentSignal = "agent.%s.signal"

	// SubjectAllSignals subscribes to every agent's signal reports.
	SubjectAllSignals = "agent.*.signal"

	// SubjectToolCall carries agent.report_status / tool invocation requests
	// routed through the Tool Router's queue-subscribed worker pool.
	SubjectToolCall = "tools.call"

	// SubjectBreakerTrip is published when the circuit breaker trips, for
	// any out-of-process observer (e.g. the notifier) that wants it.
	SubjectBreakerTrip = "breaker.trip"
)

// HeartbeatMessage is published by a delegated worker agent to prove
// liveness. It is the sole input to the Watchdog's stale/dead transitions
// (spec.md §4.I).
type HeartbeatMessage struct {
	AgentID   string    `json:"agent_id"`
	MissionID string    `json:"mission_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SignalMessage carries an observation a provider or agent wants folded
// into a watchdog signal_report artifact.
type SignalMessage struct {
	AgentID   string                 `json:"agent_id"`
	MissionID string                 `json:"mission_id"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToolCallRequest is a tool invocation forwarded over the bus by an agent
// that cannot reach the Tool Router's HTTP surface directly.
type ToolCallRequest struct {
	RequestID string                 `json:"request_id"`
	AgentID   string                 `json:"agent_id"`
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResponse is the Tool Router's reply to a ToolCallRequest.
type ToolCallResponse struct {
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}
