package toolrouter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

func TestHubBroadcastsMissionCreatedEvent(t *testing.T) {
	store := statestore.New()
	hub := NewHub(store)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give the hub's registration goroutine a moment to record the client.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected one connected client, got %d", hub.ClientCount())
	}

	if _, err := store.CreateMission(&domain.Mission{
		Name:               "m",
		MissionClass:       domain.ClassImplementation,
		RiskLevel:          domain.RiskLow,
		TriggerSource:      domain.TriggerManual,
		CompletionGate:     "artifacts",
		ExecutionAuthority: domain.AuthorityClaudeCode,
		ExecutionMode:      domain.ModeImmediateOnly,
		AllowedTools:       []string{"*"},
	}); err != nil {
		t.Fatalf("CreateMission: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected a broadcast message, got error: %v", err)
	}
	if !strings.Contains(string(msg), "mission.created") {
		t.Fatalf("expected mission.created event, got %s", msg)
	}
}
