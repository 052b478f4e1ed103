// Command missionctl runs Mission Control's control plane: the State
// Authority, its persistence loop, the gate chain, the engines that sit
// behind the tool router, and the HTTP/websocket/agent-bus transports
// that expose them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/agentbus"
	"github.com/missioncontrol/missioncontrol/internal/audit"
	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/config"
	"github.com/missioncontrol/missioncontrol/internal/delegate"
	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/execution"
	"github.com/missioncontrol/missioncontrol/internal/gate"
	"github.com/missioncontrol/missioncontrol/internal/git"
	"github.com/missioncontrol/missioncontrol/internal/instance"
	"github.com/missioncontrol/missioncontrol/internal/notify"
	"github.com/missioncontrol/missioncontrol/internal/persistence"
	"github.com/missioncontrol/missioncontrol/internal/ratecost"
	"github.com/missioncontrol/missioncontrol/internal/selfheal"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
	"github.com/missioncontrol/missioncontrol/internal/toolrouter"
	"github.com/missioncontrol/missioncontrol/internal/watchdog"
)

// ANSI color codes for terminal output.
const (
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

// defaultMaxSpawnPerHour, defaultMaxHealAttempts and defaultWatchdogTick
// are the defaults a fresh install ships with.
const (
	defaultMaxSpawnPerHour = 10
	defaultMaxHealAttempts = 3
	defaultWatchdogTick    = 15 * time.Second
)

func main() {
	port := flag.Int("port", 0, "HTTP bind port (0 uses the server config's bindAddress)")
	serverConfigPath := flag.String("config", "config/server.yaml", "Server config file")
	watchdogConfigPath := flag.String("watchdog-config", "config/watchdog.yaml", "Watchdog signal-source config file")
	statePath := flag.String("state", "", "State persistence root (overrides server config's stateRoot)")
	natsPort := flag.Int("nats-port", 4222, "Embedded agent-bus NATS port")

	status := flag.Bool("status", false, "Show status of running instance")
	stop := flag.Bool("stop", false, "Stop running instance gracefully")
	forceStop := flag.Bool("force-stop", false, "Force kill running instance")
	flag.Parse()

	basePath, err := getBasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to determine base path: %v\n", err)
		os.Exit(1)
	}

	pidFilePath := filepath.Join(basePath, "data", "missionctl.pid")

	if *status {
		showInstanceStatus(pidFilePath)
		os.Exit(0)
	}
	if *stop || *forceStop {
		stopInstance(pidFilePath, *forceStop)
		os.Exit(0)
	}

	if !filepath.IsAbs(*serverConfigPath) {
		*serverConfigPath = filepath.Join(basePath, *serverConfigPath)
	}
	if !filepath.IsAbs(*watchdogConfigPath) {
		*watchdogConfigPath = filepath.Join(basePath, *watchdogConfigPath)
	}

	serverCfg, err := config.LoadServerConfig(*serverConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load server config: %v\n", err)
		os.Exit(1)
	}

	stateRoot := serverCfg.StateRoot
	if *statePath != "" {
		stateRoot = *statePath
	}
	if !filepath.IsAbs(stateRoot) {
		stateRoot = filepath.Join(basePath, stateRoot)
	}

	bindAddress := serverCfg.BindAddress
	if *port != 0 {
		bindAddress = fmt.Sprintf("127.0.0.1:%d", *port)
	}

	instanceMgr := instance.NewManager(pidFilePath, filepath.Join(stateRoot, "current.json"), bindPort(bindAddress))
	existingInfo, err := instanceMgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check for existing instance: %v\n", err)
		os.Exit(1)
	}
	if existingInfo != nil && existingInfo.IsRunning {
		fmt.Fprintf(os.Stderr, "missionctl is already running (PID %d, port %d)\n", existingInfo.PID, existingInfo.Port)
		fmt.Fprintf(os.Stderr, "Use -stop or -force-stop to end it first.\n")
		os.Exit(1)
	}
	if err := instanceMgr.AcquireLock(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire instance lock: %v\n", err)
		os.Exit(1)
	}
	defer instanceMgr.ReleaseLock()

	if err := os.MkdirAll(filepath.Join(basePath, "data"), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(colorGreen)
	printBanner()
	fmt.Print(colorReset)

	// --- persistence + state authority ---------------------------------

	persist, err := persistence.New(stateRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open persistence store: %v\n", err)
		os.Exit(1)
	}
	snap, err := persist.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		os.Exit(1)
	}
	store := statestore.New()
	if snap != nil {
		store.LoadSnapshot(snap)
		fmt.Printf("  State restored from %s\n", stateRoot)
	} else {
		fmt.Printf("  No prior state found at %s, starting fresh\n", stateRoot)
	}

	// --- audit trail -----------------------------------------------------

	auditDir := filepath.Join(stateRoot, "audit")
	auditIndex, err := audit.OpenIndex(filepath.Join(auditDir, "index.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audit index: %v\n", err)
		os.Exit(1)
	}
	defer auditIndex.Close()
	auditLog, err := audit.NewLog(auditDir, auditIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audit log: %v\n", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	// --- notification + circuit breaker -----------------------------------

	notifier := notify.NewManager(notify.Config{
		AppID:        "Mission Control",
		DashboardURL: fmt.Sprintf("http://%s", bindAddress),
		EnableToast:  true,
	})
	breakerEngine := breaker.New(store, breaker.DefaultThresholds, notifier)

	// --- rate/cost, git worktrees, execution --------------------------------

	estimator := ratecost.NewEstimator()
	providers := ratecost.NewRegistry()

	// --- gate chain --------------------------------------------------------

	gateEngine := gate.New(store, breakerEngine, providers)
	delegateGate := delegate.New(store)

	repo := git.New(basePath)
	worktrees := repo.WorktreeRoot(filepath.Join(stateRoot, "worktrees"))
	executionEngine := execution.New(store, estimator, breakerEngine, worktrees, defaultMaxSpawnPerHour)

	// --- watchdog ------------------------------------------------------------

	heartbeatPolicy := execution.DefaultHeartbeatPolicy()
	wd := watchdog.New(store, executionEngine, heartbeatPolicy, defaultMaxHealAttempts)
	watches, err := config.LoadResolvedWatches(*watchdogConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load watchdog config: %v\n", err)
		os.Exit(1)
	}
	for _, w := range watches {
		wd.AddWatchConfig(w.ToWatchConfig())
	}
	fmt.Printf("  Watchdog loaded %d signal watch(es)\n", len(watches))

	stopWatchdog := make(chan struct{})
	go wd.Run(defaultWatchdogTick, stopWatchdog)

	// --- self-heal -----------------------------------------------------------

	selfHealEngine := selfheal.New(store)

	// --- tool router -----------------------------------------------------------

	router := toolrouter.New(store, delegateGate, gateEngine, breakerEngine, auditLog)
	router.RegisterAll(toolrouter.Deps{
		Store:      store,
		Breaker:    breakerEngine,
		Gate:       gateEngine,
		Execution:  executionEngine,
		SelfHeal:   selfHealEngine,
		Watchdog:   wd,
		Estimator:  estimator,
		Providers:  providers,
		Persist:    persist,
		AuditIndex: auditIndex,
	})
	fmt.Printf("  Tool router registered %d tools\n", len(router.ListTools()))

	hub := toolrouter.NewHub(store)
	httpRouter := toolrouter.NewHTTPRouter(router, hub)

	shutdownRequested := make(chan struct{})
	httpRouter.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	httpRouter.HandleFunc("/api/shutdown", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		close(shutdownRequested)
	}).Methods(http.MethodPost)

	// --- agent bus (embedded NATS) -----------------------------------------

	natsServer, err := agentbus.NewEmbeddedServer(agentbus.EmbeddedServerConfig{Port: *natsPort})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure agent bus: %v\n", err)
		os.Exit(1)
	}
	if err := natsServer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start agent bus: %v\n", err)
		os.Exit(1)
	}
	defer natsServer.Shutdown()

	busClient, err := agentbus.NewClient(natsServer.URL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to agent bus: %v\n", err)
		os.Exit(1)
	}
	defer busClient.Close()

	busHandler := agentbus.NewHandler(busClient, agentbus.HandlerCallbacks{
		OnHeartbeat: func(msg agentbus.HeartbeatMessage) error {
			_, err := store.RecordHeartbeat(msg.AgentID, msg.Timestamp)
			return err
		},
		OnSignal: func(msg agentbus.SignalMessage) error {
			_, err := store.CreateArtifact(&domain.Artifact{
				MissionID:  msg.MissionID,
				Type:       domain.ArtifactSignalReport,
				Label:      "signal_report",
				Payload:    msg.Payload,
				Provenance: domain.Provenance{Producer: "agent", AgentID: msg.AgentID},
			})
			return err
		},
		OnToolCall: func(agentID, tool string, args map[string]interface{}) (interface{}, error) {
			result := router.Dispatch(toolrouter.CallRequest{
				Tool: tool,
				Args: args,
				Context: toolrouter.CallContext{
					Caller: delegate.CallerClaudeCode,
				},
			})
			if !result.OK {
				return nil, fmt.Errorf("%s: %s", result.Code, result.Message)
			}
			return result.Result, nil
		},
	})
	if err := busHandler.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start agent bus handler: %v\n", err)
		os.Exit(1)
	}
	defer busHandler.Stop()

	fmt.Printf("  Agent bus ready at %s\n", natsServer.URL())

	// --- HTTP transport ------------------------------------------------------

	httpServer := &http.Server{Addr: bindAddress, Handler: httpRouter}
	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	fmt.Printf("  Tool router ready at http://%s/rpc/call\n", bindAddress)
	fmt.Println()

	if err := instanceMgr.WritePIDFile(os.Getpid(), bindPort(bindAddress), basePath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to write PID file: %v\n", err)
	}

	// --- periodic snapshot ----------------------------------------------------

	snapshotCtx, cancelSnapshots := context.WithCancel(context.Background())
	defer cancelSnapshots()
	go periodicSnapshot(snapshotCtx, store, persist, 30*time.Second)

	// --- graceful shutdown ------------------------------------------------

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		fmt.Fprintf(os.Stderr, "HTTP server error: %v\n", err)
	case <-shutdown:
		fmt.Println("Shutting down (signal received)...")
	case <-shutdownRequested:
		fmt.Println("Shutting down (API request)...")
	}

	close(stopWatchdog)
	cancelSnapshots()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "HTTP shutdown error: %v\n", err)
	}

	fmt.Println("Saving final state...")
	if err := persist.StampAndSave(store.Snapshot(), time.Now().UTC()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save final state: %v\n", err)
	}

	instanceMgr.RemovePIDFile()
	fmt.Println("Goodbye!")
}

// periodicSnapshot saves the state store to disk on an interval,
// independent of the labeled snapshots the state.export_snapshot tool
// writes.
func periodicSnapshot(ctx context.Context, store *statestore.Store, persist *persistence.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := persist.StampAndSave(store.Snapshot(), time.Now().UTC()); err != nil {
				log.Printf("[MISSIONCTL] periodic snapshot failed: %v", err)
			}
		}
	}
}

// bindPort extracts the numeric port from a host:port bind address, or 0
// if it cannot be parsed (instance.NewManager only uses this for its
// status display).
func bindPort(bindAddress string) int {
	_, portStr, err := net.SplitHostPort(bindAddress)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// getBasePath returns the directory containing the executable, or the
// current working directory if running via `go run`.
func getBasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) == "exe" || filepath.Base(filepath.Dir(dir)) == "go-build" {
		return os.Getwd()
	}
	if filepath.Base(dir) == "bin" {
		return filepath.Dir(dir), nil
	}
	return dir, nil
}

func showInstanceStatus(pidFilePath string) {
	mgr := instance.NewManager(pidFilePath, "", 0)
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if info == nil {
		fmt.Println("No missionctl instance is currently running")
		return
	}
	statusIcon := "OK"
	if !info.IsResponding {
		statusIcon = "DEGRADED"
	}
	fmt.Printf("Instance:  RUNNING (%s)\n", statusIcon)
	fmt.Printf("  PID:     %d\n", info.PID)
	fmt.Printf("  Port:    %d\n", info.Port)
	fmt.Printf("  Started: %s (%s ago)\n", info.StartTime.Format("2006-01-02 15:04:05"), time.Since(info.StartTime).Round(time.Second))
}

func stopInstance(pidFilePath string, force bool) {
	mgr := instance.NewManager(pidFilePath, "", 0)
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if info == nil {
		fmt.Println("No missionctl instance is currently running")
		return
	}
	if force {
		fmt.Printf("Force killing process %d...\n", info.PID)
		if err := instance.KillProcess(info.PID); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to kill process: %v\n", err)
			os.Exit(1)
		}
		time.Sleep(time.Second)
		mgr.RemovePIDFile()
		fmt.Println("Instance terminated")
		return
	}
	fmt.Printf("Sending graceful shutdown request to instance on port %d...\n", info.Port)
	if err := instance.SendShutdownRequest(info.Port); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send shutdown request: %v\n", err)
		fmt.Println("Try -force-stop to force kill the process")
		os.Exit(1)
	}
	if instance.WaitForPortToBeAvailable(info.Port, 5*time.Second) {
		fmt.Println("Instance stopped successfully")
	} else {
		fmt.Println("Warning: instance may still be running")
	}
}

func printBanner() {
	fmt.Println()
	fmt.Println("  Mission Control")
	fmt.Println("  autonomous agent orchestration control plane")
	fmt.Println()
}
