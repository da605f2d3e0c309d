// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "balance-ledger/internal/api"
	"balance-ledger/internal/api/handler"
	"balance-ledger/internal/config"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/repository/postgres"
	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	BalanceRepository repository.BalanceRepository
	HistoryRepository repository.HistoryRepository

	// Services
	BalanceService service.BalanceService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()

	// 2. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Initialize Repositories
	app.BalanceRepository = postgres.NewBalanceRepository(app.DB)
	app.HistoryRepository = postgres.NewHistoryRepository(app.DB)
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.BalanceService = service.NewBalanceService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.BalanceRepository,
		app.HistoryRepository,
		app.Config.Policy,
		app.Config.HistoryDefaultLimit,
		app.Config.HistoryMaxLimit,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.Logger.Info("Services initialized.")

	// 6. Initialize HTTP Handlers and Router
	balanceHandler := handler.NewBalanceHandler(app.BalanceService, app.Logger)
	app.HTTPHandler = router.NewRouter(balanceHandler, app.Logger, router.RouterOptions{
		MaxBodyBytes:       app.Config.MaxBodyBytes,
		RateLimitPerSecond: app.Config.RateLimitPerSecond,
		RateLimitBurst:     app.Config.RateLimitBurst,
	})
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
