package agentbus

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	nc "github.com/nats-io/nats.go"
)

// HandlerCallbacks wires agent-bus traffic back into the control plane.
// OnToolCall is dispatched through a queue subscription so concurrent tool
// calls load-balance across however many router instances are listening.
type HandlerCallbacks struct {
	OnHeartbeat func(msg HeartbeatMessage) error
	OnSignal    func(msg SignalMessage) error
	OnToolCall  func(agentID, tool string, args map[string]interface{}) (interface{}, error)
}

// Handler subscribes to the agent bus and delegates to callbacks.
type Handler struct {
	client    *Client
	callbacks HandlerCallbacks

	subs   []*nc.Subscription
	subsMu sync.Mutex

	running bool
}

// NewHandler creates a new agent-bus message handler.
func NewHandler(client *Client, callbacks HandlerCallbacks) *Handler {
	return &Handler{client: client, callbacks: callbacks}
}

// Start subscribes to all agent-bus subjects the handler understands.
func (h *Handler) Start() error {
	if h.running {
		return fmt.Errorf("handler already running")
	}
	h.running = true

	sub, err := h.client.Subscribe(SubjectAllHeartbeats, h.handleHeartbeat)
	if err != nil {
		return fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}
	h.addSub(sub)

	sub, err = h.client.Subscribe(SubjectAllSignals, h.handleSignal)
	if err != nil {
		return fmt.Errorf("failed to subscribe to signals: %w", err)
	}
	h.addSub(sub)

	sub, err = h.client.QueueSubscribe(SubjectToolCall, "tool-router-workers", h.handleToolCall)
	if err != nil {
		return fmt.Errorf("failed to subscribe to tool calls: %w", err)
	}
	h.addSub(sub)

	log.Printf("[AGENTBUS] started, subscribed to %d subjects", len(h.subs))
	return nil
}

// Stop unsubscribes from every subject the handler registered.
func (h *Handler) Stop() {
	if !h.running {
		return
	}
	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.subsMu.Unlock()
	h.running = false
	log.Printf("[AGENTBUS] stopped")
}

func (h *Handler) addSub(sub *nc.Subscription) {
	h.subsMu.Lock()
	h.subs = append(h.subs, sub)
	h.subsMu.Unlock()
}

func (h *Handler) handleHeartbeat(msg *Message) {
	var hb HeartbeatMessage
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		log.Printf("[AGENTBUS] invalid heartbeat message: %v", err)
		return
	}
	if h.callbacks.OnHeartbeat != nil {
		if err := h.callbacks.OnHeartbeat(hb); err != nil {
			log.Printf("[AGENTBUS] heartbeat callback error: %v", err)
		}
	}
}

func (h *Handler) handleSignal(msg *Message) {
	var sig SignalMessage
	if err := json.Unmarshal(msg.Data, &sig); err != nil {
		log.Printf("[AGENTBUS] invalid signal message: %v", err)
		return
	}
	if h.callbacks.OnSignal != nil {
		if err := h.callbacks.OnSignal(sig); err != nil {
			log.Printf("[AGENTBUS] signal callback error: %v", err)
		}
	}
}

func (h *Handler) handleToolCall(msg *Message) {
	var req ToolCallRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.replyError(msg.Reply, req.RequestID, "invalid request format")
		return
	}
	if h.callbacks.OnToolCall == nil {
		h.replyError(msg.Reply, req.RequestID, "no tool handler configured")
		return
	}

	result, err := h.callbacks.OnToolCall(req.AgentID, req.Tool, req.Arguments)
	resp := ToolCallResponse{RequestID: req.RequestID, Success: err == nil, Result: result}
	if err != nil {
		resp.Error = err.Error()
	}
	h.reply(msg.Reply, resp)
}

func (h *Handler) reply(subject string, data interface{}) {
	if subject == "" {
		return
	}
	if err := h.client.PublishJSON(subject, data); err != nil {
		log.Printf("[AGENTBUS] failed to send reply: %v", err)
	}
}

func (h *Handler) replyError(subject, requestID, errMsg string) {
	h.reply(subject, ToolCallResponse{RequestID: requestID, Success: false, Error: errMsg})
}
