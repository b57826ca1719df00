package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"beltline/config"
	"beltline/observer"
	"beltline/replay"
	"beltline/sim"
	"beltline/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks, stepping as fast as possible (0 = run realtime)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV telemetry and config snapshot")
	replayDir := flag.String("replay-dir", "", "Directory for the compressed event log")
	listen := flag.String("listen", "", "Address for the observer websocket feed (empty = disabled)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	world, err := sim.New(cfg, logger)
	if err != nil {
		slog.Error("failed to build world", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := world.Close(); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if *outputDir != "" {
		om, err := telemetry.NewOutputManager(*outputDir)
		if err != nil {
			slog.Error("failed to create output dir", "error", err)
			os.Exit(1)
		}
		if err := om.WriteConfigSnapshot(cfg); err != nil {
			slog.Error("failed to snapshot config", "error", err)
			os.Exit(1)
		}
		world.SetOutput(om)
	}

	if *replayDir != "" {
		if err := os.MkdirAll(*replayDir, 0o755); err != nil {
			slog.Error("failed to create replay dir", "error", err)
			os.Exit(1)
		}
		w, err := replay.NewWriter(filepath.Join(*replayDir, "events.jsonl.zst"))
		if err != nil {
			slog.Error("failed to open replay log", "error", err)
			os.Exit(1)
		}
		world.SetReplayWriter(w)
	}

	if *listen != "" {
		srv := observer.NewServer(logger)
		world.SetSnapshotFunc(srv.Publish)
		go func() {
			slog.Info("observer feed listening", "addr", *listen)
			if err := http.ListenAndServe(*listen, srv.Handler()); err != nil {
				slog.Error("observer server stopped", "error", err)
			}
		}()
	}

	if *maxTicks > 0 {
		slog.Info("running bounded simulation", "max_ticks", *maxTicks)
		for i := 0; i < *maxTicks; i++ {
			world.Step()
		}
		slog.Info("max ticks reached", "tick", world.Clock().Tick())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("running realtime simulation", "tps", world.Clock().TPS())
	world.Clock().Run(ctx)
	slog.Info("stopped", "tick", world.Clock().Tick())
}
