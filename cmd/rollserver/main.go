// Package main runs the roll server: the Telnet dice console and the gRPC
// DiceService, sharing one dice engine and roll-history store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rollbox/internal/config"
	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/frontend/handlers"
	"github.com/cory-johannsen/rollbox/internal/frontend/telnet"
	"github.com/cory-johannsen/rollbox/internal/history"
	"github.com/cory-johannsen/rollbox/internal/observability"
	"github.com/cory-johannsen/rollbox/internal/preset"
	"github.com/cory-johannsen/rollbox/internal/rollserver"
	"github.com/cory-johannsen/rollbox/internal/scripting"
	"github.com/cory-johannsen/rollbox/internal/server"
	"github.com/cory-johannsen/rollbox/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting roll server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.String("history_backend", cfg.History.Backend),
	)

	ctx := context.Background()
	lifecycle := server.NewLifecycle(logger)

	critPolicy, err := dice.ParseCritPolicy(cfg.Dice.CritPolicy)
	if err != nil {
		logger.Fatal("parsing crit policy", zap.Error(err))
	}
	engine := dice.NewEngine(
		dice.NewEvaluator(dice.NewCryptoSource(), critPolicy),
		observability.Component(logger, "dice"),
	)

	store := buildHistory(ctx, cfg, logger, lifecycle)

	presets := preset.NewRegistry()
	if cfg.Presets.Dir != "" {
		presets, err = preset.Load(cfg.Presets.Dir)
		if err != nil {
			logger.Fatal("loading presets", zap.Error(err))
		}
	}
	logger.Info("presets loaded", zap.Int("count", presets.Len()))

	opts := handlers.Options{
		Presets:           presets,
		RestrictAdvantage: cfg.Dice.RestrictAdvantage,
	}
	if cfg.Scripting.ScriptDir != "" {
		scripts := scripting.NewManager(engine, observability.Component(logger, "scripting"))
		if err := scripts.Load(handlers.ScriptVM, cfg.Scripting.ScriptDir, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading scripts", zap.Error(err))
		}
		defer scripts.Close()
		opts.Scripts = scripts
		logger.Info("scripts loaded", zap.String("dir", cfg.Scripting.ScriptDir))
	}

	diceHandler := handlers.NewDiceHandler(engine, store, observability.Component(logger, "console"), opts)
	telnetAcceptor := telnet.NewAcceptor(cfg.Telnet, diceHandler, observability.Component(logger, "telnet"))

	rpcLogger := observability.Component(logger, "grpc")
	grpcServer := rollserver.NewGRPCServer(
		rollserver.NewServer(engine, store, rpcLogger,
			rollserver.WithPresets(presets),
			rollserver.WithAdvantageRestriction(cfg.Dice.RestrictAdvantage),
		),
		rpcLogger,
	)

	lifecycle.Add("telnet", &server.FuncService{
		StartFn: telnetAcceptor.ListenAndServe,
		StopFn:  telnetAcceptor.Stop,
	})

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GRPC.Addr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: grpcServer.GracefulStop,
	})

	logger.Info("roll server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildHistory returns the configured history store. The postgres backend
// migrates the schema and registers a health-check service on lifecycle.
func buildHistory(ctx context.Context, cfg config.Config, logger *zap.Logger, lifecycle *server.Lifecycle) history.Store {
	if cfg.History.Backend != config.HistoryPostgres {
		return history.NewMemoryStore(cfg.History.Capacity)
	}

	dbStart := time.Now()
	if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
		logger.Fatal("migrating database", zap.Error(err))
	}
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	done := make(chan struct{})
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			close(done)
			pool.Close()
		},
	})

	return postgres.NewHistoryRepository(pool.DB(), cfg.History.Capacity)
}
