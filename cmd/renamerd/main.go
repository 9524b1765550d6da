package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/folder-renamer/internal/app"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	seed := flag.Bool("seed-presets", true, "create the preset labels when the library is empty")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(2)
	}
	logger, closeLog := common.SetupLogger(cfg.Logging.File, common.ParseLevel(cfg.Logging.Level))
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if *seed {
		n, err := a.LabelService.SeedIfEmpty(ctx, cfg.PresetsPath)
		switch {
		case errors.Is(err, common.ErrNotFound):
			logger.Info("no presets file, skipping seed", "path", cfg.PresetsPath)
		case err != nil:
			logger.Error("failed to seed presets", "path", cfg.PresetsPath, "error", err)
			os.Exit(1)
		case n > 0:
			logger.Info("presets seeded", "labels", n)
		}
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := server.NewGRPCServer(a.RenamerService(), logger)

	logger.Info("renamerd listening", "addr", cfg.Server.GRPCAddr,
		"embeddings", a.Embedder != nil, "llm", a.Generator != nil)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
}
