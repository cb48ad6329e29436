// Command neuromem runs the memory engine as an interactive shell or
// executes a single command against a stored memory state.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/core"
	"github.com/cortexkit/neuromem/pkg/logger"
	"github.com/cortexkit/neuromem/pkg/metrics"
	"github.com/cortexkit/neuromem/pkg/schedulers"
	"github.com/cortexkit/neuromem/pkg/types"
)

const version = "0.9.0"

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML or JSON configuration file")
		logLevel    = flag.String("log-level", "", "log level override (debug, info, warn, error)")
		interactive = flag.Bool("interactive", false, "start an interactive shell")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("neuromem %s\n", version)
		return
	}

	cfg := config.NewEngineConfig()
	if *configPath != "" {
		if err := cfg.FromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := logger.NewConsoleLogger(cfg.LogLevel)
	met := metrics.NewInMemoryMetrics()

	engine, err := core.NewEngine(cfg, log, met)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start engine: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer engine.Close(ctx)

	var sched *schedulers.MaintenanceScheduler
	if cfg.Scheduler.Enabled {
		sched = schedulers.NewMaintenanceScheduler(cfg.Scheduler, engine.Core, engine.Topology, log)
		if err := sched.Start(ctx); err != nil {
			log.Error("Failed to start maintenance scheduler", err, nil)
		}
		defer sched.Stop(ctx)
	}

	if *interactive || flag.NArg() == 0 {
		runShell(ctx, engine)
		return
	}

	if err := runCommand(ctx, engine, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runShell(ctx context.Context, engine *core.Engine) {
	ctx = context.WithValue(ctx, types.ContextKeySessionID, types.NewID())
	fmt.Printf("neuromem %s interactive shell, type 'help' for commands\n", version)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args := splitArgs(line)
		switch args[0] {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		default:
			if err := runCommand(ctx, engine, args); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

func runCommand(ctx context.Context, engine *core.Engine, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		if len(rest) == 0 {
			return fmt.Errorf("usage: add <content>")
		}
		id, err := engine.Core.Remember(ctx, strings.Join(rest, " "), "")
		if err != nil {
			return err
		}
		fmt.Printf("remembered as %s\n", id)

	case "search":
		if len(rest) == 0 {
			return fmt.Errorf("usage: search <query>")
		}
		results, err := engine.Vectors.Search(ctx, strings.Join(rest, " "), 0)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.3f] %s\n", i+1, r.Score, r.Document.Content)
		}

	case "reason":
		if len(rest) == 0 {
			return fmt.Errorf("usage: reason <query>")
		}
		result, err := engine.Core.Reason(ctx, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s\n(confidence %.2f, %d concepts active)\n",
			result.ReasoningTrace, result.Confidence, len(result.Graph.Nodes))

	case "dream":
		report, err := engine.Core.Dream(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("linked %d thematic, %d hypothetical\n",
			report.ThematicLinks, report.HypotheticalLinks)
		for _, insight := range report.Insights {
			fmt.Printf("  %s\n", insight)
		}

	case "optimize":
		report, err := engine.Topology.Optimize(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("clusters=%d consolidated=%d pruned=%d\n",
			report.Clusters, report.Consolidated, report.Pruned)

	case "prune":
		if len(rest) != 1 {
			return fmt.Errorf("usage: prune <confidence-threshold>")
		}
		threshold, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold: %s", rest[0])
		}
		n, err := engine.Topology.PruneMemory(ctx, threshold)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d nodes\n", n)

	case "stats":
		stats := engine.Topology.Stats(ctx)
		fmt.Printf("documents=%d nodes=%d ghosts=%d size=%dB lattice_nodes=%d lattice_edges=%d\n",
			engine.Vectors.Count(), stats["nodes"], stats["ghosts"], stats["size_bytes"],
			engine.Lattice.NodeCount(), engine.Lattice.EdgeCount())

	case "clear":
		if err := engine.Vectors.Clear(ctx); err != nil {
			return err
		}
		engine.Lattice.Clear()
		fmt.Println("cleared vector store and lattice")

	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	return nil
}

func printHelp() {
	fmt.Println(`commands:
  add <content>        store a memory
  search <query>       similarity search over stored memories
  reason <query>       answer a query with retrieved context
  dream                run the speculative linking pass
  optimize             consolidate, prune and decay memory
  prune <threshold>    delete nodes below a confidence threshold
  stats                show store sizes
  clear                wipe the vector store and lattice
  exit                 leave the shell`)
}

func splitArgs(line string) []string {
	return strings.Fields(line)
}
