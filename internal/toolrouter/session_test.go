package toolrouter

import "testing"

func TestRecordCallAccumulatesCountAndFiles(t *testing.T) {
	m := NewSessionManager()
	m.RecordCall("s1", "task.create", map[string]interface{}{"file": "/logs/a.log"})
	m.RecordCall("s1", "task.update_status", map[string]interface{}{"file": "/logs/b.log"})

	packet, ok := m.Handoff("s1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if packet.ToolCallCount != 2 {
		t.Fatalf("expected 2 calls, got %d", packet.ToolCallCount)
	}
	if len(packet.FilesTouched) != 2 {
		t.Fatalf("expected 2 distinct files touched, got %+v", packet.FilesTouched)
	}
	if len(packet.RecentCalls) != 2 {
		t.Fatalf("expected 2 recent calls, got %+v", packet.RecentCalls)
	}
}

func TestRecordCallBoundsHandoffRingBuffer(t *testing.T) {
	m := NewSessionManager()
	for i := 0; i < handoffDepth+5; i++ {
		m.RecordCall("s1", "task.get", nil)
	}

	packet, ok := m.Handoff("s1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(packet.RecentCalls) != handoffDepth {
		t.Fatalf("expected ring buffer bounded to %d, got %d", handoffDepth, len(packet.RecentCalls))
	}
	if packet.ToolCallCount != handoffDepth+5 {
		t.Fatalf("expected total call count to keep counting past the ring buffer bound, got %d", packet.ToolCallCount)
	}
}

func TestHandoffMissingSessionReturnsFalse(t *testing.T) {
	m := NewSessionManager()
	if _, ok := m.Handoff("nope"); ok {
		t.Fatal("expected no handoff packet for an unknown session")
	}
}

func TestCloseRemovesSession(t *testing.T) {
	m := NewSessionManager()
	m.RecordCall("s1", "task.get", nil)
	m.Close("s1")
	if _, ok := m.Handoff("s1"); ok {
		t.Fatal("expected session to be gone after Close")
	}
}
