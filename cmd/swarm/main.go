package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/agent-swarm/bridge/core/protocol"
	"github.com/agent-swarm/bridge/swarm"
	"github.com/agent-swarm/bridge/transport"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to agent config JSON file")
		agentID    = flag.String("id", "", "Agent ID (overrides config)")
		listen     = flag.String("listen", "", "Address to serve WebSocket links on (e.g. :8080)")
		peerID     = flag.String("peer", "", "Peer agent ID to connect to")
		peerURL    = flag.String("peer-url", "", "WebSocket URL of the peer (e.g. ws://host:8080/ws)")
		tool       = flag.String("tool", "", "Tool to call on the peer after the handshake")
		input      = flag.String("input", "", "Input argument for the tool call")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg := swarm.DefaultConfig()
	if *configFile != "" {
		loaded, err := swarm.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *agentID != "" {
		cfg.Agent.ID = *agentID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *listen == "" && *peerURL == "" {
		if err := runLocalDemo(ctx, logger); err != nil {
			log.Fatalf("Demo failed: %v", err)
		}
		return
	}

	ws := transport.NewWebSocket(cfg.Agent.ID, logger)
	defer ws.Close()

	a, err := swarm.New(&cfg,
		swarm.WithTransport(ws),
		swarm.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}
	defer a.Close()
	registerBuiltinTools(a)

	if *listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", ws.Handler())
		srv := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			logger.Info("listening for peers", slog.String("addr", *listen))
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("WebSocket server failed: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	if *peerURL != "" {
		if *peerID == "" {
			log.Fatal("-peer is required with -peer-url")
		}
		if err := ws.Dial(ctx, *peerID, *peerURL); err != nil {
			log.Fatalf("Failed to dial peer: %v", err)
		}

		caps, err := a.Connect(ctx, *peerID)
		if err != nil {
			log.Fatalf("Handshake failed: %v", err)
		}
		fmt.Printf("Connected to %s (%s), tools: %v\n", caps.AgentID, caps.AgentRole, caps.Tools)

		if *tool != "" {
			args := map[string]any{}
			if *input != "" {
				args["input"] = *input
			}
			result, err := a.CallTool(ctx, *peerID, *tool, args, "")
			if err != nil {
				log.Fatalf("Tool call failed: %v", err)
			}
			fmt.Printf("%s -> %v\n", *tool, result)
		}
	}

	if err := <-done; err != nil {
		log.Fatalf("Agent stopped: %v", err)
	}
}

// runLocalDemo wires two agents over an in-memory transport and walks the
// full exchange: handshake, tool call, and a broadcast notification.
func runLocalDemo(ctx context.Context, logger *slog.Logger) error {
	tr := transport.NewInMemory(logger)
	defer tr.Close()

	planner, err := newDemoAgent("planner", "planner", tr, logger)
	if err != nil {
		return err
	}
	defer planner.Close()

	executor, err := newDemoAgent("executor", "worker", tr, logger)
	if err != nil {
		return err
	}
	defer executor.Close()
	registerBuiltinTools(executor)

	notified := make(chan protocol.NotificationPayload, 1)
	executor.Subscribe("plan.complete", func(_ context.Context, _ string, note protocol.NotificationPayload) {
		notified <- note
	})

	go planner.Run(ctx)
	go executor.Run(ctx)

	caps, err := planner.Connect(ctx, "executor")
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	fmt.Printf("Connected to %s, tools: %v\n", caps.AgentID, caps.Tools)

	result, err := planner.CallTool(ctx, "executor", "echo", map[string]any{"input": "hello swarm"}, "")
	if err != nil {
		return fmt.Errorf("tool call failed: %w", err)
	}
	fmt.Printf("echo -> %v\n", result)

	now, err := planner.CallTool(ctx, "executor", "datetime", nil, "")
	if err != nil {
		return fmt.Errorf("tool call failed: %w", err)
	}
	fmt.Printf("datetime -> %v\n", now)

	if err := planner.Notify(ctx, "", "plan.complete", map[string]any{"steps": 2}); err != nil {
		return fmt.Errorf("notify failed: %w", err)
	}

	select {
	case note := <-notified:
		fmt.Printf("notification %s: %v\n", note.EventType, note.Data)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func newDemoAgent(id, role string, tr transport.Transport, logger *slog.Logger) (*swarm.Agent, error) {
	cfg := swarm.DefaultConfig()
	cfg.Agent.ID = id
	cfg.Agent.Name = id
	cfg.Agent.Role = role
	return swarm.New(&cfg,
		swarm.WithTransport(tr),
		swarm.WithLogger(logger),
	)
}
