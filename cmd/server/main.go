package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/action"
	"github.com/openhrm/workflow-engine/internal/approver"
	"github.com/openhrm/workflow-engine/internal/config"
	"github.com/openhrm/workflow-engine/internal/definition"
	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/export"
	"github.com/openhrm/workflow-engine/internal/identity"
	httpadapter "github.com/openhrm/workflow-engine/internal/interfaces/http"
	"github.com/openhrm/workflow-engine/internal/notify"
	"github.com/openhrm/workflow-engine/internal/repository"
	"github.com/openhrm/workflow-engine/internal/scheduler"
	"github.com/openhrm/workflow-engine/internal/worker"
	"github.com/openhrm/workflow-engine/pkg/database"
	"github.com/openhrm/workflow-engine/pkg/utils"
)

func main() {
	// Local development overrides; missing .env is fine.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting workflow engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	definitionRepo := repository.NewDefinitionRepository(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	// Identity and approver resolution
	directory, err := identity.LoadDirectory(cfg.Identity.DirectoryPath, logger)
	if err != nil {
		logger.Fatal("Failed to load identity directory", zap.Error(err))
	}
	resolver := approver.NewResolver(directory, logger)

	// Stage actions
	notifier := notify.NewLogNotifier(logger)
	executor := action.NewExecutor(notifier, logger)

	// Core engine
	eng := engine.NewEngine(
		instanceRepo,
		definitionRepo,
		auditRepo,
		resolver,
		executor,
		engine.SystemClock(),
		logger,
	)
	executor.BindEscalator(eng)

	// SLA sweep worker
	sweep := scheduler.NewEscalationScheduler(eng, executor, engine.SystemClock(), logger, scheduler.Options{
		TickInterval:     cfg.Scheduler.TickInterval,
		WarningThreshold: cfg.Scheduler.WarningThreshold,
		WorkerPoolSize:   cfg.Scheduler.WorkerPoolSize,
		SweepTimeout:     cfg.Scheduler.SweepTimeout,
	})

	workers := worker.NewManager(logger)
	workers.Register(sweep)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	// HTTP surface
	validator := definition.NewValidator(resolver, executor)
	handlers := httpadapter.NewHandlers(eng, definitionRepo, validator, export.NewReportBuilder(logger), logger)
	srv := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workers.StopAll()
	logger.Info("Server exited successfully")
}
