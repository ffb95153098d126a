package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tracefunnel/tracefunnel/internal/comm"
	"github.com/tracefunnel/tracefunnel/internal/config"
	"github.com/tracefunnel/tracefunnel/internal/logging"
	"github.com/tracefunnel/tracefunnel/internal/registry"
	"github.com/tracefunnel/tracefunnel/internal/report"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to the configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded",
		"path", *configFile,
		"rank", cfg.Comm.Rank,
		"size", cfg.Comm.Size,
	)

	// Handle Graceful Shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		sugar.Infow("Received signal, aborting run...", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("Run failed", zap.Error(err))
		os.Exit(1)
	}
	sugar.Info("TraceFunnel finished.")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()

	group, err := buildGroup(ctx, cfg.Comm, logger)
	if err != nil {
		return fmt.Errorf("building process group: %w", err)
	}
	defer group.Close()

	reg := registry.New(group, logger)
	reg.Initialize(cfg.App.Name, cfg.App.Run)

	runWorkload(reg, group.Rank())

	if err := reg.Finalize(ctx); err != nil {
		// A failed collection must not end in a half-written report.
		return err
	}

	if group.Rank() != registry.Coordinator {
		return nil
	}

	if err := report.WriteSummary(os.Stdout, reg.Local(), group.Size()); err != nil {
		return err
	}
	fmt.Println()
	if err := report.WriteGlobalStats(os.Stdout, reg.GlobalStats()); err != nil {
		return err
	}

	runLog := report.BuildRunLog(reg.RunName(), reg.Global())
	path, err := report.WriteRunLogFile(cfg.Report.Directory, reg.ApplicationName(), runLog)
	if err != nil {
		return err
	}
	sugar.Infow("Run log written", "path", path)

	if cfg.Report.Kafka.Enabled {
		publisher := report.NewPublisher(cfg.Report.Kafka, logger)
		defer publisher.Close()
		if err := publisher.Publish(ctx, runLog); err != nil {
			return err
		}
	}
	return nil
}

// buildGroup wires this process into the group: a single-rank run stays
// in-process, the coordinator listens, every other rank dials in.
func buildGroup(ctx context.Context, cfg config.CommConfig, logger *zap.Logger) (comm.Communicator, error) {
	if cfg.Size == 1 {
		return comm.NewGroup(1)[0], nil
	}
	tcpCfg := comm.Config{Rank: cfg.Rank, Size: cfg.Size, CoordinatorAddr: cfg.CoordinatorAddr}
	if cfg.Rank == registry.Coordinator {
		group, err := comm.Listen(tcpCfg, logger)
		if err != nil {
			return nil, err
		}
		if err := group.Accept(ctx); err != nil {
			group.Close()
			return nil, err
		}
		return group, nil
	}
	return comm.Dial(ctx, tcpCfg, logger)
}
