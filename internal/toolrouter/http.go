package toolrouter

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/missioncontrol/missioncontrol/internal/delegate"
)

// httpCallBody mirrors spec.md §6's transport-agnostic JSON body:
// {tool, args, context{caller, missionId?, taskId?, authToken?}}.
type httpCallBody struct {
	Tool    string                 `json:"tool"`
	Args    map[string]interface{} `json:"args"`
	Context httpCallContext        `json:"context"`
}

type httpCallContext struct {
	Caller    string `json:"caller"`
	MissionID string `json:"missionId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	AuthToken string `json:"authToken,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// NewHTTPRouter exposes r over gorilla/mux following the teacher's
// internal/server.go per-route handler registration style: one POST
// route for dispatch, one GET route for discovery, and (if hub is
// non-nil) a websocket route for live state-change updates.
func NewHTTPRouter(r *Router, hub *Hub) *mux.Router {
	m := mux.NewRouter()
	m.HandleFunc("/rpc/call", r.handleCall).Methods(http.MethodPost)
	m.HandleFunc("/rpc/tools", r.handleListTools).Methods(http.MethodGet)
	if hub != nil {
		m.HandleFunc("/rpc/ws", hub.ServeWS).Methods(http.MethodGet)
	}
	return m
}

func (r *Router) handleCall(w http.ResponseWriter, req *http.Request) {
	var body httpCallBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, CallResult{OK: false, Code: ErrValidation, Message: "malformed request body"})
		return
	}

	result := r.Dispatch(CallRequest{
		Tool: body.Tool,
		Args: body.Args,
		Context: CallContext{
			Caller:    delegate.CallerIdentity(body.Context.Caller),
			MissionID: body.Context.MissionID,
			TaskID:    body.Context.TaskID,
			AuthToken: body.Context.AuthToken,
			SessionID: body.Context.SessionID,
		},
	})

	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (r *Router) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": r.ListTools()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
