// Command agentbridge forwards a delegated worker agent's heartbeats,
// signal reports, and tool-call requests from the worker's own NATS
// connection onto the control plane's embedded agent bus, for workers
// that run outside the control plane's network namespace and cannot
// reach its embedded NATS server directly. Grounded on the teacher's
// cmd/nats-bridge's Captain<->Sergeant subject-forwarding bridge,
// narrowed from a bidirectional dedup-forwarding pair to Mission
// Control's one-way worker->control direction plus explicit
// request/reply stitching for tool calls (the teacher's bridge never
// forwarded a request/reply subject, only fire-and-forget ones).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/agentbus"
)

func main() {
	workerURL := flag.String("worker", "nats://localhost:4223", "Worker-side NATS URL")
	controlURL := flag.String("control", "nats://localhost:4222", "Control-plane NATS URL")
	toolCallTimeout := flag.Duration("tool-call-timeout", 10*time.Second, "Timeout forwarding a tools.call request to the control plane")
	flag.Parse()

	log.Println("===============================================")
	log.Println("  Agent Bridge - worker -> control plane")
	log.Println("===============================================")
	log.Printf("Worker NATS:  %s", *workerURL)
	log.Printf("Control NATS: %s", *controlURL)

	worker, err := agentbus.NewClient(*workerURL)
	if err != nil {
		log.Fatalf("Failed to connect to worker NATS: %v", err)
	}
	defer worker.Close()
	log.Println("[BRIDGE] Connected to worker NATS")

	control, err := agentbus.NewClient(*controlURL)
	if err != nil {
		log.Fatalf("Failed to connect to control-plane NATS: %v", err)
	}
	defer control.Close()
	log.Println("[BRIDGE] Connected to control-plane NATS")

	subCount := 0

	if _, err := worker.Subscribe(agentbus.SubjectAllHeartbeats, func(msg *agentbus.Message) {
		log.Printf("[WORKER->CONTROL] %s (%d bytes)", msg.Subject, len(msg.Data))
		if err := control.Publish(msg.Subject, msg.Data); err != nil {
			log.Printf("[BRIDGE] forward heartbeat failed: %v", err)
		}
	}); err != nil {
		log.Printf("[BRIDGE] Warning: failed to subscribe to heartbeats: %v", err)
	} else {
		subCount++
	}

	if _, err := worker.Subscribe(agentbus.SubjectAllSignals, func(msg *agentbus.Message) {
		log.Printf("[WORKER->CONTROL] %s (%d bytes)", msg.Subject, len(msg.Data))
		if err := control.Publish(msg.Subject, msg.Data); err != nil {
			log.Printf("[BRIDGE] forward signal failed: %v", err)
		}
	}); err != nil {
		log.Printf("[BRIDGE] Warning: failed to subscribe to signals: %v", err)
	} else {
		subCount++
	}

	// tools.call is request/reply: the worker's reply inbox only exists
	// on the worker's own connection, so the reply from the control
	// plane's queue-subscribed tool router workers is relayed back
	// explicitly rather than forwarded fire-and-forget like the two
	// subscriptions above.
	if _, err := worker.Subscribe(agentbus.SubjectToolCall, func(msg *agentbus.Message) {
		log.Printf("[WORKER->CONTROL] %s (%d bytes, reply=%s)", msg.Subject, len(msg.Data), msg.Reply)
		reply, err := control.Request(msg.Subject, msg.Data, *toolCallTimeout)
		if err != nil {
			log.Printf("[BRIDGE] tool call forward failed: %v", err)
			return
		}
		if msg.Reply == "" {
			return
		}
		if err := worker.Publish(msg.Reply, reply.Data); err != nil {
			log.Printf("[BRIDGE] relay tool call reply failed: %v", err)
		}
	}); err != nil {
		log.Printf("[BRIDGE] Warning: failed to subscribe to tool calls: %v", err)
	} else {
		subCount++
	}

	log.Printf("[BRIDGE] Active subscriptions: %d", subCount)
	log.Println("===============================================")
	log.Println("  Bridge running. Press Ctrl+C to stop.")
	log.Println("===============================================")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[BRIDGE] Shutting down...")
}
