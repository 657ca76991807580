// schedsim runs a scheduling policy against a synthetic workload on
// simulated processors, persists the per-process statistics table, and can
// expose live statistics and Prometheus metrics over HTTP while running.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/schedpol/internal/config"
	"github.com/me/schedpol/internal/host"
	"github.com/me/schedpol/internal/logging"
	"github.com/me/schedpol/internal/metrics"
	"github.com/me/schedpol/internal/policy"
	"github.com/me/schedpol/internal/server"
	"github.com/me/schedpol/internal/stats"
	"github.com/me/schedpol/internal/store"
	"github.com/me/schedpol/pkg/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "schedsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML config file")
	policyName := flag.String("policy", "", "Scheduling policy: fifo or mlfq (overrides config)")
	processors := flag.Int("processors", 0, "Simulated processor count (overrides config)")
	dbPath := flag.String("db", "", "Statistics database path (overrides config; empty = no persistence)")
	addr := flag.String("addr", "", "Observability listen address (overrides config; empty = off)")
	runLogPath := flag.String("run-log", "", "Per-task CSV run log path (empty = off)")
	seed := flag.Int64("seed", 0, "Workload seed (overrides config; 0 = from clock)")
	pace := flag.Float64("pace", 0, "Slow the simulation toward real time (1.0 = real time, 0 = flat out)")
	flushMS := flag.Int("flush-interval", 0, "Statistics flush interval in ms (overrides config; 0 = final flush only)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *policyName != "" {
		cfg.Policy = *policyName
	}
	if *processors > 0 {
		cfg.Processors = *processors
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *seed != 0 {
		cfg.Workload.Seed = *seed
	}
	if *flushMS > 0 {
		cfg.FlushIntervalMS = *flushMS
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if cfg.Policy != "fifo" && cfg.Policy != "mlfq" {
		return fmt.Errorf("unknown policy %q", cfg.Policy)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire the engine: one virtual clock shared by policy and host, one
	// aggregator shared by policy, flusher, and HTTP server.
	clock := host.NewVirtualClock()
	agg := stats.NewAggregator()
	collector := metrics.NewCollector(cfg.Policy)

	workload := host.GenerateWorkload(cfg.Workload)

	var sim *host.Simulator
	var runLog *host.RunLog
	if *runLogPath != "" {
		if runLog, err = host.NewRunLog(*runLogPath); err != nil {
			return fmt.Errorf("open run log: %w", err)
		}
		defer runLog.Close()
	}

	topo := &lateTopology{}
	opts := policy.Options{
		Capacity:      cfg.TaskCapacity,
		TopSliceNS:    uint64(cfg.TopSliceMS) * 1_000_000,
		BottomSliceNS: uint64(cfg.BottomSliceMS) * 1_000_000,
		Clock:         clock,
		Topology:      topo,
		Stats:         agg,
		Observer:      collector,
	}

	var pol policy.Policy
	var depths func() map[int]int
	switch cfg.Policy {
	case "fifo":
		f := policy.NewFIFO(opts)
		pol = f
		depths = func() map[int]int { return map[int]int{0: f.QueueDepth()} }
	case "mlfq":
		m := policy.NewMLFQ(opts)
		pol = m
		depths = func() map[int]int {
			return map[int]int{
				policy.LevelTop:    m.QueueDepth(policy.LevelTop),
				policy.LevelBottom: m.QueueDepth(policy.LevelBottom),
			}
		}
	}

	sim = host.NewSimulator(pol, host.SimOptions{
		Processors: cfg.Processors,
		Clock:      clock,
		Logger:     logger,
		RunLog:     runLog,
		Pace:       *pace,
	})
	topo.Topology = sim

	// Persistence: create the run up front so a concurrent reader can
	// already find it, then flush periodically and once at the end.
	var st store.Store
	if cfg.DBPath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.DBPath, logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer sqlStore.Close()
		if err := sqlStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		st = sqlStore

		now := time.Now().UTC()
		if err := st.CreateRun(ctx, &model.Run{
			ID: workload.RunID, Policy: cfg.Policy, StartedAt: now, UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		logger.Info("database ready", "path", cfg.DBPath, "run", workload.RunID)
	}

	if cfg.Addr != "" {
		srv := server.New(cfg.Policy, workload.RunID, agg, collector, logger)
		go func() {
			logger.Info("observability server listening", "addr", cfg.Addr)
			if err := http.ListenAndServe(cfg.Addr, srv.Router()); err != nil {
				logger.Error("observability server stopped", "error", err)
			}
		}()
	}

	if cfg.FlushIntervalMS > 0 && st != nil {
		go flushLoop(ctx, st, agg, collector, depths, workload.RunID,
			time.Duration(cfg.FlushIntervalMS)*time.Millisecond, logger)
	}

	logger.Info("simulation starting",
		"policy", cfg.Policy,
		"processors", cfg.Processors,
		"tasks", len(workload.Specs),
		"total_work_ms", workload.TotalWorkNS()/1_000_000)

	summary, err := sim.Run(ctx, workload)
	if err != nil {
		return err
	}

	if st != nil {
		if err := st.UpsertProcessStats(context.Background(), workload.RunID, agg.Snapshot()); err != nil {
			return fmt.Errorf("final flush: %w", err)
		}
	}

	logger.Info("simulation complete",
		"completed", summary.Completed,
		"elapsed_ms", summary.ElapsedNS/1_000_000,
		"total_work_ms", summary.TotalWork/1_000_000,
		"init_errors", summary.InitErrors)
	return nil
}

// flushLoop periodically persists the live counters and refreshes the
// queue-depth gauges until ctx is cancelled.
func flushLoop(ctx context.Context, st store.Store, agg *stats.Aggregator,
	collector *metrics.Collector, depths func() map[int]int,
	runID string, interval time.Duration, logger *slog.Logger) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for level, depth := range depths() {
				collector.SetQueueDepth(level, depth)
			}
			if err := st.UpsertProcessStats(ctx, runID, agg.Snapshot()); err != nil {
				logger.Error("flush failed", "error", err)
			}
		}
	}
}

// lateTopology breaks the construction cycle between policy and simulator.
type lateTopology struct {
	policy.Topology
}
