// Package toolrouter is the Tool Router (spec.md §4.L): a
// transport-agnostic `group.action` RPC surface that dispatches every
// call through the Delegation Gate (internal/delegate) and the Gate
// Engine (internal/gate) before a handler runs, and audits every
// outcome. Grounded on the teacher's internal/mcp/tools.go
// (ToolRegistry/ToolDefinition/ToolHandler — name-to-schema-to-handler
// map, List() for discovery, Execute() for dispatch), generalized from
// MCP's single-agent tool surface to spec.md §6's full group.action
// surface, and on internal/mcp/server.go's Server for session tracking
// and the per-call callback hook this package turns into audit writes.
package toolrouter

import (
	"errors"
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/audit"
	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/delegate"
	"github.com/missioncontrol/missioncontrol/internal/gate"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// ErrorCode is one of the stable codes spec.md §7 defines for the RPC
// surface's typed error object.
type ErrorCode string

const (
	ErrValidation            ErrorCode = "VALIDATION_ERROR"
	ErrNotFound              ErrorCode = "NOT_FOUND"
	ErrInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrDependencyNotMet      ErrorCode = "DEPENDENCY_NOT_MET"
	ErrCompletionBlocked     ErrorCode = "COMPLETION_BLOCKED"
	ErrToolNotAllowed        ErrorCode = "TOOL_NOT_ALLOWED"
	ErrApprovalRequired      ErrorCode = "APPROVAL_REQUIRED"
	ErrExecutionViolation    ErrorCode = "EXECUTION_VIOLATION"
	ErrModeLockViolation     ErrorCode = "MODE_LOCK_VIOLATION"
	ErrRateExceeded          ErrorCode = "RATE_EXCEEDED"
	ErrQuotaExceeded         ErrorCode = "QUOTA_EXCEEDED"
	ErrCostExceeded          ErrorCode = "COST_EXCEEDED"
	ErrCircuitBreakerTripped ErrorCode = "CIRCUIT_BREAKER_TRIPPED"
	ErrMissionLocked         ErrorCode = "MISSION_LOCKED"
)

// Handler processes one dispatched tool call.
type Handler func(ctx CallContext, args map[string]interface{}) (interface{}, error)

// HandlerError lets a handler reject a call with a precise spec.md §7
// code/details instead of Dispatch's blanket VALIDATION_ERROR fallback
// — used by mission.update_status (COMPLETION_BLOCKED) and
// task.update_status (DEPENDENCY_NOT_MET).
type HandlerError struct {
	Code    ErrorCode
	Message string
	Blocked bool
	Details map[string]interface{}
}

func (e *HandlerError) Error() string { return e.Message }

// ToolDefinition describes one registered tool, mirroring the teacher's
// ToolDefinition shape (name, description, parameter schema, handler).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]ParameterDef
	Handler     Handler
}

// ParameterDef describes one tool parameter for discovery (tools/list).
type ParameterDef struct {
	Type        string
	Description string
	Required    bool
}

// Registry holds every tool this process exposes, keyed by its
// "group.action" name.
type Registry struct {
	tools map[string]ToolDefinition
}

// NewRegistry builds an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolDefinition)}
}

// Register adds a tool, overwriting any prior registration of the same name.
func (r *Registry) Register(tool ToolDefinition) {
	r.tools[tool.Name] = tool
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool's discovery schema (tools/list).
func (r *Registry) List() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.tools))
	for _, tool := range r.tools {
		params := make(map[string]interface{})
		var required []string
		for name, def := range tool.Parameters {
			params[name] = map[string]interface{}{"type": def.Type, "description": def.Description}
			if def.Required {
				required = append(required, name)
			}
		}
		out = append(out, map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": params,
				"required":   required,
			},
		})
	}
	return out
}

// CallContext is the caller-identity envelope every tool call carries,
// spec.md §4.L's `context{caller, missionId?, taskId?, authToken?}`.
type CallContext struct {
	Caller    delegate.CallerIdentity
	MissionID string
	TaskID    string
	AuthToken string
	SessionID string
}

// CallRequest is a transport-agnostic tool invocation.
type CallRequest struct {
	Tool    string
	Args    map[string]interface{}
	Context CallContext
}

// CallResult is what Dispatch returns: either a successful result or a
// typed rejection, matching spec.md §6's `{ok,result}` /
// `{ok:false,code,message,blocked?,details}` shapes.
type CallResult struct {
	OK      bool
	Result  interface{}
	Code    ErrorCode
	Message string
	Blocked bool
	Details map[string]interface{}
}

// Router composes the registry with the gate chain and the audit trail.
type Router struct {
	store    *statestore.Store
	delegate *delegate.Gate
	gate     *gate.Engine
	breaker  *breaker.Engine
	audit    *audit.Log
	registry *Registry
	sessions *SessionManager
}

// New builds a Router over the given store and gate chain.
func New(store *statestore.Store, delegateGate *delegate.Gate, gateEngine *gate.Engine, breakerEngine *breaker.Engine, auditLog *audit.Log) *Router {
	return &Router{
		store:    store,
		delegate: delegateGate,
		gate:     gateEngine,
		breaker:  breakerEngine,
		audit:    auditLog,
		registry: NewRegistry(),
		sessions: NewSessionManager(),
	}
}

// Register adds a tool to the router's registry.
func (r *Router) Register(tool ToolDefinition) {
	r.registry.Register(tool)
}

// RegisterAll populates the router's registry with the full group.action
// catalog handlers.go builds over d. cmd/missionctl's sole registration
// call.
func (r *Router) RegisterAll(d Deps) {
	RegisterAll(r.registry, d)
}

// ListTools returns the discovery schema for every registered tool.
func (r *Router) ListTools() []map[string]interface{} {
	return r.registry.List()
}

// Dispatch runs req through §4.H (delegation) then §4.G (gate) before
// invoking the handler, recording an audit record for every outcome and
// updating the call's session counters.
func (r *Router) Dispatch(req CallRequest) CallResult {
	now := time.Now().UTC()
	paramsHash, _ := audit.HashParams(req.Args)
	armed := r.store.GlobalState().ArmedMode

	tool, ok := r.registry.Get(req.Tool)
	if !ok {
		r.recordAudit(now, req, paramsHash, armed, "", audit.OutcomeFailure)
		return CallResult{OK: false, Code: ErrNotFound, Message: fmt.Sprintf("unknown tool %q", req.Tool)}
	}

	if req.Context.MissionID != "" {
		if res, blocked := r.runGateChain(req); blocked {
			r.recordAudit(now, req, paramsHash, armed, "", audit.OutcomeBlocked)
			return res
		}
	}

	if req.Context.SessionID != "" {
		r.sessions.RecordCall(req.Context.SessionID, req.Tool, req.Args)
	}

	result, err := tool.Handler(req.Context, req.Args)
	if err != nil {
		outcome := audit.OutcomeFailure
		var herr *HandlerError
		if errors.As(err, &herr) {
			if herr.Blocked {
				outcome = audit.OutcomeBlocked
			}
			r.recordAudit(now, req, paramsHash, armed, "", outcome)
			return CallResult{OK: false, Code: herr.Code, Message: herr.Message, Blocked: herr.Blocked, Details: herr.Details}
		}
		r.recordAudit(now, req, paramsHash, armed, "", outcome)
		return CallResult{OK: false, Code: ErrValidation, Message: err.Error()}
	}

	r.recordAudit(now, req, paramsHash, armed, "", audit.OutcomeSuccess)
	return CallResult{OK: true, Result: result}
}

// runGateChain runs the Delegation Gate then the Gate Engine, returning
// a rejecting CallResult and true on the first denial.
func (r *Router) runGateChain(req CallRequest) (CallResult, bool) {
	delegateDecision, err := r.delegate.Validate(delegate.Request{
		Caller:    req.Context.Caller,
		MissionID: req.Context.MissionID,
		TaskID:    req.Context.TaskID,
		Tool:      req.Tool,
	})
	if err != nil {
		return CallResult{OK: false, Code: ErrValidation, Message: err.Error()}, true
	}
	if !delegateDecision.Allowed {
		code := ErrExecutionViolation
		if delegateDecision.Code != "" {
			code = ErrorCode(delegateDecision.Code)
		}
		return CallResult{OK: false, Code: code, Message: delegateDecision.Reason, Blocked: true}, true
	}

	gateDecision, err := r.gate.Validate(gate.Request{
		MissionID:     req.Context.MissionID,
		TaskID:        req.Context.TaskID,
		Tool:          req.Tool,
		Args:          req.Args,
		EstimatedCost: argOptionalFloat(req.Args, "estimatedCost"),
		Provider:      argString(req.Args, "provider"),
	})
	if err != nil {
		return CallResult{OK: false, Code: ErrValidation, Message: err.Error()}, true
	}
	if !gateDecision.Allowed {
		code := ErrToolNotAllowed
		if gateDecision.Code != "" {
			code = ErrorCode(gateDecision.Code)
		}
		return CallResult{OK: false, Code: code, Message: gateDecision.Reason, Blocked: true, Details: gateDecision.Details}, true
	}

	return CallResult{}, false
}

func (r *Router) recordAudit(now time.Time, req CallRequest, paramsHash string, armed bool, resultArtifactID string, outcome audit.Outcome) {
	if r.audit == nil {
		return
	}
	actor := string(req.Context.Caller)
	if actor == "" {
		actor = "system"
	}
	_ = r.audit.Append(audit.Record{
		Timestamp:        now,
		Action:           req.Tool,
		Actor:            actor,
		ArmedMode:        armed,
		ParamsHash:       paramsHash,
		ResultArtifactID: resultArtifactID,
		Outcome:          outcome,
	})
}
