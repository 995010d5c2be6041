// Command worldsim runs the headless tile-world agent simulation.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/sim"
	"github.com/pthm-cable/meadow/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "config YAML overriding the embedded defaults")
		ticks      = flag.Int("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
		seed       = flag.Int64("seed", 42, "world seed")
		outDir     = flag.String("out", "", "output directory for telemetry CSV (empty disables)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	out, err := telemetry.NewOutputManager(*outDir)
	if err != nil {
		slog.Error("failed to open output directory", "dir", *outDir, "error", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	slog.Info("world starting",
		"seed", *seed,
		"size", cfg.World.Width,
		"tiles", cfg.Derived.TilesX*cfg.Derived.TilesY,
		"zones", len(cfg.Spawn.Zones),
	)

	world := sim.NewWorld(cfg, *seed, logger, out)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	dt := cfg.Derived.DT32
	start := time.Now()
	ran := 0
	for *ticks == 0 || ran < *ticks {
		select {
		case <-stop:
			slog.Info("interrupted", "tick", world.Tick())
			return
		default:
		}
		world.Step(dt)
		ran++
	}

	slog.Info("run complete",
		"ticks", ran,
		"sim_seconds", float64(ran)*cfg.Physics.DT,
		"wall", time.Since(start).Round(time.Millisecond),
	)
}
