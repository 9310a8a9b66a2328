// Package main provides the main entry point for the Vocalix call billing service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vocalix/vocalix/app/handlers"
	"github.com/vocalix/vocalix/app/middleware"
	"github.com/vocalix/vocalix/app/router"
	"github.com/vocalix/vocalix/app/scheduler"
	"github.com/vocalix/vocalix/app/services"
	businessflow "github.com/vocalix/vocalix/business_flow"
	"github.com/vocalix/vocalix/config"
	"github.com/vocalix/vocalix/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Vocalix billing service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers first so in-flight billing passes settle
	// before the database connections go away
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	// TranslateError maps driver errors onto gorm sentinels; the ledger's
	// idempotence handling relies on seeing gorm.ErrDuplicatedKey
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if client == nil {
		return cancel
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService wires the configured SMS and email providers
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var smsProvider services.SMSProvider
	var emailProvider services.EmailProvider

	switch cfg.SMS.ProviderDomain {
	case "mock":
		smsProvider = services.NewMockSMSProvider()
	default:
		smsProvider = services.NewGatewaySMSProvider(services.NewSMSService(&cfg.SMS), cfg.SMS.Timeout)
	}

	if cfg.Notification.EnableEmail && cfg.Email.Host != "" {
		emailProvider = services.NewSMTPEmailProvider(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.FromEmail,
		)
	} else {
		emailProvider = services.NewMockEmailProvider()
	}

	return services.NewNotificationService(smsProvider, emailProvider)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
	stopFuncs = append(stopFuncs, cancel)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	callEventRepo := repository.NewCallEventRepository(db)
	assignmentRepo := repository.NewAgentAssignmentRepository(db)
	agentRepo := repository.NewAgentRepository(db)

	// Initialize services
	notificationService := initializeNotificationService(cfg)
	alertSink := services.NewBalanceAlertSink(
		notificationService,
		cfg.Notification.EnableEmail,
		cfg.Notification.EnableSMS,
	)

	// Initialize flows
	ledgerFlow := businessflow.NewLedgerFlow(
		userRepo,
		balanceRepo,
		transactionRepo,
		db,
		log.Default(),
	)

	historyFlow := businessflow.NewCallHistoryFlow(
		userRepo,
		callEventRepo,
		transactionRepo,
		agentRepo,
		cfg.Billing.LookbackWindow,
	)

	var recoverer businessflow.DurationRecoverer
	if cfg.Billing.RecoveryEnabled {
		recoverer = businessflow.NewRecordingProber(cfg.Billing.RecoveryTimeout)
	}

	processorFlow := businessflow.NewBillingProcessorFlow(
		callEventRepo,
		assignmentRepo,
		transactionRepo,
		ledgerFlow,
		recoverer,
		cfg.Billing.LookbackWindow,
		cfg.Billing.EventBatchLimit,
		log.Default(),
	)

	notifierFlow := businessflow.NewBalanceNotifierFlow(
		alertSink,
		rc,
		cfg.Cache.RedisPrefix,
		cfg.Notification.DebounceWindow,
		log.Default(),
	)

	// Initialize handlers
	billingHandler := handlers.NewBillingHandler(ledgerFlow, historyFlow)

	// Initialize identity middleware
	identityMiddleware := middleware.NewIdentityMiddleware()

	// Initialize router
	appRouter := router.NewFiberRouter(billingHandler, identityMiddleware)

	// Start billing scheduler
	sched := scheduler.NewBillingScheduler(
		userRepo,
		balanceRepo,
		processorFlow,
		notifierFlow,
		cfg.Billing,
		nil,
	)
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
