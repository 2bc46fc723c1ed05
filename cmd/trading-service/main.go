package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-ai-trader/internal/trader/config"
	delivery "golang-ai-trader/internal/trader/delivery/http"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/internal/trader/service"
	"golang-ai-trader/pkg/common"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/metrics"
	"golang-ai-trader/pkg/postgres"
	"golang-ai-trader/pkg/redis"
	"golang-ai-trader/pkg/telegram"
	"golang-ai-trader/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the trading service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Trading Service", logger.Field("name", cfg.App.Name))

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	notifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Gemini.APIKey})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini client", logger.ErrorField(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Repositories
	signalRepo := repository.NewSignalRepository(db.DB)
	orderRepo := repository.NewOrderRepository(db.DB)
	positionRepo := repository.NewPositionRepository(db.DB)
	snapshotRepo := repository.NewSnapshotRepository(db.DB)
	decisionRepo := repository.NewDecisionRepository(db.DB)
	broker := repository.NewBrokerRepository(&cfg.Broker, appLogger, redisClient)
	reasoning := repository.NewGeminiReasoningRepository(&cfg.Gemini, appLogger, genaiClient)

	sourceClient := &http.Client{Timeout: cfg.Signals.Timeout}
	sources := make([]repository.SentimentRepository, 0, len(cfg.Signals.Sources))
	for _, sourceCfg := range cfg.Signals.Sources {
		sources = append(sources, repository.NewSentimentRepository(sourceCfg, sourceClient, appLogger))
	}

	// Services
	aggregator := service.NewSignalAggregatorService(&cfg.Signals, appLogger, sources, signalRepo)
	tracker := service.NewPositionTrackerService(&cfg.Risk, appLogger, positionRepo, snapshotRepo, broker)
	risk := service.NewRiskManagerService(&cfg.Risk, appLogger, tracker, broker, m)
	orders := service.NewOrderManagerService(appLogger, orderRepo, broker, risk, tracker, redisClient, notifier, m)
	optimizer := service.NewOptimizerService(&cfg.Optimizer, appLogger, broker, tracker)
	orchestrator := service.NewOrchestratorService(cfg, appLogger, reasoning, decisionRepo, broker, aggregator, risk, tracker, orders, redisClient, notifier, m)

	// Scheduled tasks
	scheduler := cron.New()
	scheduleSession := func(expr, sessionType string) {
		if expr == "" {
			return
		}
		if _, err := scheduler.AddFunc(expr, func() {
			if _, err := orchestrator.RunSession(ctx, sessionType); err != nil {
				appLogger.Error("Scheduled session failed",
					logger.StringField("session_type", sessionType),
					logger.ErrorField(err),
				)
				if notifyErr := notifier.NotifyError("scheduled_session", err.Error(), sessionType); notifyErr != nil {
					appLogger.Warn("Failed to send error alert", logger.ErrorField(notifyErr))
				}
			}
		}); err != nil {
			appLogger.Fatal("Invalid cron expression", logger.StringField("expr", expr), logger.ErrorField(err))
		}
	}
	scheduleSession(cfg.Scheduler.PreSessionCron, common.SessionPreSession)
	scheduleSession(cfg.Scheduler.MidSessionCron, common.SessionMidSession)
	scheduleSession(cfg.Scheduler.PreCloseCron, common.SessionPreClose)
	if cfg.Scheduler.SnapshotCron != "" {
		if _, err := scheduler.AddFunc(cfg.Scheduler.SnapshotCron, func() {
			if _, err := tracker.TakeSnapshot(ctx); err != nil {
				appLogger.Error("Scheduled snapshot failed", logger.ErrorField(err))
			}
		}); err != nil {
			appLogger.Fatal("Invalid snapshot cron expression", logger.ErrorField(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Reconciliation and exit sweep loops
	startLoop := func(name string, interval time.Duration, fn func(context.Context) error) {
		utils.GoSafe(func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := fn(ctx); err != nil {
						appLogger.Error("Background task failed", logger.StringField("task", name), logger.ErrorField(err))
					}
				}
			}
		})
	}
	startLoop("reconcile", cfg.Scheduler.ReconcileInterval, orders.Reconcile)
	startLoop("exit-sweep", cfg.Scheduler.SweepInterval, func(ctx context.Context) error {
		_, err := orders.SweepExits(ctx)
		return err
	})

	// HTTP server
	e := echo.New()
	e.HideBanner = true

	apiV1 := e.Group("/api/v1")
	delivery.NewOrderHandler(orders, appLogger).RegisterRoutes(apiV1.Group("/orders"))
	delivery.NewSignalHandler(aggregator, appLogger).RegisterRoutes(apiV1.Group("/signals"))
	delivery.NewPortfolioHandler(tracker, appLogger).RegisterRoutes(apiV1.Group("/portfolio"))
	delivery.NewOptimizerHandler(optimizer, appLogger).RegisterRoutes(apiV1.Group("/portfolio"))
	delivery.NewSessionHandler(orchestrator, appLogger).RegisterRoutes(apiV1.Group("/sessions"))

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "trading-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trading-service CLI: %s\n", err)
		os.Exit(1)
	}
}
