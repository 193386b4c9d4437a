package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"transfer-reconciliation-backend/internal/config"
	handler "transfer-reconciliation-backend/internal/handlers"
	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/observability"
	"transfer-reconciliation-backend/internal/repository"
	"transfer-reconciliation-backend/internal/routes"
	"transfer-reconciliation-backend/internal/services/ingestion"
	"transfer-reconciliation-backend/internal/services/notification"
	"transfer-reconciliation-backend/internal/services/reconciliation"
	"transfer-reconciliation-backend/internal/services/resolution"
	"transfer-reconciliation-backend/internal/services/sweeper"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := config.Load()
	db := config.InitDB()

	db.AutoMigrate(
		&models.Account{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.TransferCandidate{},
		&models.MatchSettings{},
		&models.ResolutionAuditLog{},
		&models.NotificationOutbox{},
	)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	candidateRepo := repository.NewCandidateRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	machine := resolution.NewMachine(candidateRepo, cfg.MaxAttempts, cfg.CASRetries)
	reconService := reconciliation.NewService(
		candidateRepo,
		accountRepo,
		settingsRepo,
		machine,
		cfg.Weights,
		cfg.Defaults,
		metrics,
		cfg.PassTimeout,
	)

	queue := make(chan uuid.UUID, cfg.IngestQueueSize)
	ingestService := ingestion.NewService(
		candidateRepo,
		accountRepo,
		settingsRepo,
		cfg.Defaults,
		ingestion.DefaultRetryPolicy(),
		queue,
		metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		reconService.Start(ctx, queue, cfg.MatchWorkers)
	}()

	var transport notification.Transport = notification.LogTransport{}
	if cfg.WebhookURL != "" {
		transport = notification.NewWebhookTransport(cfg.WebhookURL, cfg.WebhookTimeout)
	}
	dispatcher := notification.NewDispatcher(outboxRepo, transport, cfg.DispatchBatchSize, metrics)
	sweep := sweeper.New(candidateRepo, machine, cfg.SweepBatchSize, metrics)

	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSchedule, func() { sweep.Run(ctx) }); err != nil {
		log.Fatalf("invalid sweep schedule: %v", err)
	}
	if _, err := c.AddFunc(cfg.DispatchSchedule, func() { dispatcher.Run(ctx) }); err != nil {
		log.Fatalf("invalid dispatch schedule: %v", err)
	}
	c.Start()

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Reviewer"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	candidateHandler := handler.NewCandidateHandler(ingestService, reconService, machine)
	settingsHandler := handler.NewSettingsHandler(settingsRepo, cfg.Defaults)
	routes.RegisterRoutes(r, candidateHandler, settingsHandler)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()
	log.Printf("listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("shutting down")

	// Stop accepting work before closing the queue; a live ingest request
	// must never enqueue onto a closed channel.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	cronCtx := c.Stop()
	<-cronCtx.Done()

	close(queue)
	<-workersDone
}
