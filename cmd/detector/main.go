package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	cfg "github.com/sand/fraud-detector/backend/config"
	"github.com/sand/fraud-detector/backend/internal/core/ports"
	"github.com/sand/fraud-detector/backend/internal/fraud"
	"github.com/sand/fraud-detector/backend/internal/fraud/clients"
	fraudrepo "github.com/sand/fraud-detector/backend/internal/fraud/repository"
	"github.com/sand/fraud-detector/backend/internal/fraud/services"
	"github.com/sand/fraud-detector/backend/internal/handlers"
	"github.com/sand/fraud-detector/backend/internal/usecases"
	"github.com/sand/fraud-detector/backend/internal/usecases/repository"
	"github.com/sand/fraud-detector/backend/internal/workers"
	"github.com/sand/fraud-detector/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 60
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 10
)

// stores groups the storage ports, backed by Postgres or memory.
type stores struct {
	transactions ports.TransactionStore
	users        ports.UserStore
	suspicions   ports.SuspicionStore
	transactor   ports.Transactor
	close        func()
}

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: config.Log.Level,
	}
	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))

	logger.Warn("Starting application with configuration",
		"app", config.App.Name,
		"environment", config.App.Environment,
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port,
		"persistent", config.DB.DatabaseURL != "",
		"process_url", config.Dispatch.ProcessURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := initStores(ctx, logger, config)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer st.close()

	// Create usecases and components
	engine := services.NewRuleEngine(logger, services.RuleConfig{
		BurstWindow:     config.Fraud.BurstWindow,
		BurstThreshold:  config.Fraud.BurstThreshold,
		AmountThreshold: config.Fraud.AmountThreshold,
		GeoWindow:       config.Fraud.GeoWindow,
	}, services.RuleConfig{
		BurstWindow:     ports.DefaultBurstWindow,
		BurstThreshold:  ports.DefaultBurstThreshold,
		AmountThreshold: ports.DefaultAmountThreshold,
		GeoWindow:       ports.DefaultGeoWindow,
	})
	rules := engine.Config()
	logger.Info("Initialized fraud rule engine",
		"burst_window", rules.BurstWindow.String(),
		"burst_threshold", rules.BurstThreshold,
		"amount_threshold", rules.AmountThreshold,
		"geo_window", rules.GeoWindow.String())

	queue, err := workers.NewDispatchQueue(logger, workers.DispatchOptions{
		Workers:      config.Dispatch.Workers,
		QueueSize:    config.Dispatch.QueueSize,
		Backpressure: config.Dispatch.Backpressure,
		TaskTimeout:  config.Dispatch.TaskTimeout,
	})
	if err != nil {
		logger.Error("Invalid dispatch configuration", "error", err)
		os.Exit(1)
	}

	websocketManager := handlers.NewWebSocketManager(logger)
	forwarder := clients.NewHTTPForwarder(logger, config.Dispatch.ProcessURL, config.Dispatch.ForwardTimeout)

	fraudService := fraud.NewFraudService(logger, st.transactions, st.suspicions, engine, queue, forwarder, websocketManager)
	transactionService := usecases.NewTransactionService(logger, st.transactions, st.users, st.transactor)

	// Initialize and run workers
	if err = queue.Start(ctx, fraudService.ProcessFlag); err != nil {
		logger.Error("Failed to start dispatch queue", "error", err)
		os.Exit(1)
	}
	sweeper := workers.NewFraudSweeper(logger, fraudService, config.Fraud.SweepInterval)
	go sweeper.Start(ctx)

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, fraudService, transactionService)
	wsHandler := handlers.NewWebSocketHandler(logger, websocketManager)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop the sweeper first so no new flags arrive
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer shutdownCancel()

	// Drain the queue while the server still answers /process-fraud
	if err = queue.Stop(shutdownCtx); err != nil {
		logger.Error("Dispatch queue did not drain", "error", err)
	}

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

func initStores(ctx context.Context, logger *slog.Logger, config *cfg.Config) (*stores, error) {
	if config.DB.DatabaseURL == "" {
		logger.Warn("No database configured, using in-memory stores")
		mem := repository.NewMemoryStore()
		return &stores{
			transactions: mem,
			users:        mem,
			suspicions:   fraudrepo.NewMemoryStore(),
			close:        func() {},
		}, nil
	}

	// Connect to Database
	pg, err := database.New(ctx, config.DB.DatabaseURL,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
	)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	migrationsPath := resolveMigrationsPath(config.DB.MigrationsPath)
	if _, err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		pg.Close()
		return nil, err
	}

	return &stores{
		transactions: repository.NewTransactionsRepository(logger, pg),
		users:        repository.NewUsersRepository(logger, pg),
		suspicions:   fraudrepo.NewSuspicionRepository(logger, pg),
		transactor:   pg.Transactor,
		close:        pg.Close,
	}, nil
}

// resolveMigrationsPath falls back to ./migrations or ../migrations relative
// to the working directory when the configured path does not exist.
func resolveMigrationsPath(configured string) string {
	if _, err := os.Stat(configured); err == nil {
		return configured
	}

	workDir, err := os.Getwd()
	if err != nil {
		return configured
	}
	for _, candidate := range []string{
		filepath.Join(workDir, "migrations"),
		filepath.Join(workDir, "..", "migrations"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return configured
}
