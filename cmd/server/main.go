package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	httpapi "github.com/bookflow/bookflow/internal/api/http"
	appAudit "github.com/bookflow/bookflow/internal/application/audit"
	"github.com/bookflow/bookflow/internal/application/decision"
	"github.com/bookflow/bookflow/internal/application/intake"
	"github.com/bookflow/bookflow/internal/application/notify"
	"github.com/bookflow/bookflow/internal/application/ratelimit"
	"github.com/bookflow/bookflow/internal/config"
	"github.com/bookflow/bookflow/internal/domain/audit"
	"github.com/bookflow/bookflow/internal/infrastructure/keystore"
	"github.com/bookflow/bookflow/internal/infrastructure/kvstore"
	"github.com/bookflow/bookflow/internal/infrastructure/ledger"
	"github.com/bookflow/bookflow/internal/infrastructure/mailer"
	"github.com/bookflow/bookflow/internal/infrastructure/postgres"
	"github.com/bookflow/bookflow/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	// state store
	redisClient, err := kvstore.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()
	store := kvstore.NewRedisStore(redisClient, cfg.RedisPrefix)

	// optional audit store
	var auditRepo audit.Repository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, migrations.FS); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		auditRepo = postgres.NewAuditRepository(pool)
	}

	// external collaborators
	ledgerClient := ledger.NewClient(ledger.Config{
		BaseURL:      cfg.LedgerBaseURL,
		SheetID:      cfg.LedgerSheetID,
		TokenURL:     cfg.LedgerTokenURL,
		ClientID:     cfg.LedgerClientID,
		ClientSecret: cfg.LedgerClientSecret,
		Retry: ledger.RetryPolicy{
			MaxAttempts: cfg.LedgerMaxAttempts,
			BaseDelay:   cfg.LedgerRetryBase,
		},
	}, logger)
	bookingLedger := ledger.NewBookingLedger(ledgerClient, cfg.LedgerSheetName, logger)
	mailClient := mailer.NewClient(cfg.MailBaseURL, cfg.MailAPIKey, nil)
	keys := keystore.NewFromEnv()

	// services
	auditSvc := appAudit.NewService(auditRepo, logger, []byte(cfg.AuditSigningKey))
	limiter := ratelimit.NewService(store, cfg.RateLimit, cfg.RateWindow, logger)
	notifySvc := notify.NewService(mailClient, cfg.MailFrom, cfg.OwnerEmail, cfg.PublicBaseURL, logger)
	decisionSvc := decision.NewService(
		kvstore.NewTokenRepository(store),
		bookingLedger,
		notifySvc,
		auditSvc,
		cfg.MinTokenAge,
		cfg.UsedTokenRetention,
		logger,
	)
	intakeSvc := intake.NewService(
		keys,
		limiter,
		kvstore.NewSubmissionRepository(store),
		bookingLedger,
		decisionSvc,
		notifySvc,
		auditSvc,
		intake.Config{
			DryRun:       cfg.DryRun,
			PendingTTL:   cfg.SubmissionPending,
			ProcessedTTL: cfg.SubmissionRetained,
		},
		logger,
	)

	// API server
	apiServer := httpapi.NewServer(intakeSvc, decisionSvc, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Bool("dryRun", cfg.DryRun).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
