package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/handler"
	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/service"
	"recoveryhub/circles/internal/validation"
	"recoveryhub/circles/internal/worker/invitesweep"
	jwtpkg "recoveryhub/circles/pkg/jwt"
	"recoveryhub/circles/pkg/richtext"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		stateStore = repository.NewRedisStateStore(redisClient)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize store
	store := repository.NewPGStore(db)

	// 7. Initialize JWT manager
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)

	// 8. Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	// 9. Initialize services
	validator := validation.NewValidator(richtext.New())
	circleService := service.NewCircleService(store, cfg.Circles, recorder, logger)
	membershipService := service.NewMembershipService(store, recorder, logger)
	inviteService := service.NewInviteService(store, stateStore, cfg.Circles, recorder, logger)
	feedService := service.NewFeedService(store, validator, recorder, logger)

	// 10. Initialize handlers
	circleHandler := handler.NewCircleHandler(circleService)
	membershipHandler := handler.NewMembershipHandler(membershipService)
	inviteHandler := handler.NewInviteHandler(inviteService)
	feedHandler := handler.NewFeedHandler(feedService)

	// 11. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, registry, circleHandler, membershipHandler, inviteHandler, feedHandler)

	// 12. Start the expired-invite sweeper
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	sweeper := invitesweep.New(store.Invites(), cfg.Circles.InviteSweepInterval, cfg.Circles.StoreTimeout, recorder, logger)
	go sweeper.Run(workerCtx)

	// 13. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 14. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 15. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
