package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pocketomega/pocket-omega/internal/agent"
	"github.com/pocketomega/pocket-omega/internal/config"
	"github.com/pocketomega/pocket-omega/internal/dag"
	"github.com/pocketomega/pocket-omega/internal/gateway"
	"github.com/pocketomega/pocket-omega/internal/llm"
	"github.com/pocketomega/pocket-omega/internal/llm/gemini"
	"github.com/pocketomega/pocket-omega/internal/llm/openai"
	"github.com/pocketomega/pocket-omega/internal/prompt"
	"github.com/pocketomega/pocket-omega/internal/runtime"
)

func main() {
	config.LoadEnv()
	settings := config.LoadSettings(os.Getenv("SETTINGS_PATH"))

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║         Agent Runtime v0.1            ║")
	fmt.Println("║   Action Graph · Go + Tool Gateway    ║")
	fmt.Println("╚══════════════════════════════════════╝")

	provider, err := newProvider(settings)
	if err != nil {
		log.Fatalf("Failed to initialize model provider: %v", err)
	}
	fmt.Printf("Model: %s\n", provider.Name())

	gw := gateway.NewClient(settings.GatewayURL,
		gateway.WithSearchTimeout(settings.GatewaySearchTimeout),
		gateway.WithExecuteTimeout(settings.GatewayExecuteTimeout),
	)

	probeCtx, cancelProbe := context.WithCancel(context.Background())
	defer cancelProbe()
	gwInfo := runtime.ProbeGateway(probeCtx, settings.GatewayURL, 10*time.Second)
	fmt.Println(gwInfo.StatusString())

	prompts := prompt.NewStore(settings.PromptsDir, settings.RulesPath)

	d := dag.New()
	core := agent.NewCoreAgent(d, provider, prompts, gw, settings.MaxActions, settings.ActionMaxRetries)
	memTick := time.Duration(settings.MemoryTickSeconds) * time.Second
	memoryAgent := agent.NewMemoryAgent(d, provider, prompts, memTick)
	core.OnBacktrack = func(leavingNodeID, notes, contextAtBacktrack string) {
		memoryAgent.ScheduleBranchBacktrackSummary(context.Background(), leavingNodeID, notes, contextAtBacktrack)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go memoryAgent.Run(ctx)

	runConsole(ctx, core, d)
}

func newProvider(s config.Settings) (llm.Provider, error) {
	provider := strings.ToLower(s.ModelProvider)
	if provider == "" {
		provider = "openai"
	}
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") != "" {
		provider = "gemini"
	}

	switch provider {
	case "gemini":
		cfg, err := gemini.NewConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return gemini.NewClient(context.Background(), cfg)
	default:
		cfg, err := openai.NewConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return openai.NewClient(cfg)
	}
}

// runConsole reads stdin lines until "exit" or ctx cancellation, handing
// each line to the Core Agent for one full step; on exit it writes the
// current context to a timestamped transcript file.
func runConsole(ctx context.Context, core *agent.CoreAgent, d *dag.DAG) {
	fmt.Println("Type a message, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			dumpTranscript(d)
			return
		}

		if err := core.RunStep(ctx, line); err != nil {
			log.Printf("[Agent] step failed: %v", err)
			fmt.Println("(something went wrong — see log above)")
			continue
		}
	}

	dumpTranscript(d)
}

func dumpTranscript(d *dag.DAG) {
	path := fmt.Sprintf("agent_context_%s.txt", time.Now().Format("20060102_150405"))
	if err := d.WriteTranscript(path); err != nil {
		log.Printf("[Agent] failed to write transcript: %v", err)
		return
	}
	fmt.Printf("Transcript written to %s\n", path)
}
