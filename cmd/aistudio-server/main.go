package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/IlamSingleBrainCell/enterprise-ai-studio/internal"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/event"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/executor"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/notification"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/workflow"
	workflowrepo "github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/workflow/repositoryimpl"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/catalog"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/clog"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(clog.NewAttributesHandler(handler))
	slog.SetDefault(logger)

	// Graceful shutdown: this context parents every workflow run and stream.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup preset catalog
	var cat catalog.Catalog
	switch env.CatalogEnv.Type {
	case "s3":
		cat, err = catalog.NewS3(ctx, env.CatalogEnv.S3Bucket, env.CatalogEnv.S3Prefix, env.CatalogEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 catalog", "error", err)
			os.Exit(1)
		}
	default:
		cat, err = catalog.NewLocal(env.CatalogEnv.Dir)
		if err != nil {
			slog.Error("failed to create local catalog", "error", err)
			os.Exit(1)
		}
	}

	presets := workflow.NewPresetRegistry(cat, logger)
	if err := presets.Load(ctx); err != nil {
		slog.Warn("failed to load presets, continuing with builtins", "error", err)
	}
	if env.CatalogEnv.Watch {
		go func() {
			if err := presets.Watch(ctx); err != nil {
				slog.Warn("preset watch stopped", "error", err)
			}
		}()
	}

	// Setup event bus. Subscribers register before the router starts so no
	// handler misses early events.
	bus, err := event.NewEventBus()
	if err != nil {
		slog.Error("failed to create event bus", "error", err)
		os.Exit(1)
	}
	eventLogger := event.NewEventLogger(logger)
	if err := eventLogger.Register(ctx, bus); err != nil {
		slog.Error("failed to register event logger", "error", err)
		os.Exit(1)
	}

	// Setup push notification
	vapidEnv := config.VAPIDEnvFromEnv(env)
	subStore := notification.NewStore()
	pushSender := notification.NewSender(vapidEnv, subStore)
	notificationServer := notification.NewServer(vapidEnv, subStore, pushSender)
	pushDispatcher := notification.NewDispatcher(pushSender)
	if err := pushDispatcher.Register(ctx, bus); err != nil {
		slog.Error("failed to register push dispatcher", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := bus.Start(ctx); err != nil {
			slog.Error("event bus stopped", "error", err)
			cancel()
		}
	}()

	// Setup executor
	executorEnv := config.ExecutorEnvFromEnv(env)
	var exec executor.Executor
	switch executorEnv.Type {
	case "http":
		exec = executor.NewHTTPExecutor(executorEnv, logger)
	default:
		exec = executor.NewLocalExecutor()
	}

	// Setup workflow engine
	mode, err := workflow.ParseMode(env.SchedulerEnv.Mode)
	if err != nil {
		slog.Error("invalid scheduler mode", "error", err)
		os.Exit(1)
	}
	repo := workflowrepo.NewMemoryRepository()
	scheduler := workflow.NewScheduler(mode)
	supervisor := workflow.NewSupervisor()
	runner := workflow.NewRunner(repo, exec, scheduler, bus, logger)
	service := workflow.NewService(ctx, repo, runner, supervisor, presets, exec, bus, logger)
	workflowServer := workflow.NewServer(service)

	srv := server.NewServer(env, bus, workflowServer, notificationServer)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give active connections time to finish after stream contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// In-flight workflow passes notice the cancelled context at their next
	// task boundary and exit.
	supervisor.Wait()
	if err := bus.Stop(); err != nil {
		slog.Error("event bus close error", "error", err)
	}
}
