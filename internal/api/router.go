// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"balance-ledger/internal/api/handler"
)

// RouterOptions carries the tunables the router needs from configuration.
type RouterOptions struct {
	MaxBodyBytes       int64
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(balanceHandler *handler.BalanceHandler, logger *slog.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler)
	r.Use(NewRateLimiter(rate.Limit(opts.RateLimitPerSecond), opts.RateLimitBurst).Middleware())
	r.Use(MaxBody(opts.MaxBodyBytes))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Registration is a separate top-level endpoint, keyed by query parameter
	r.Put("/register", balanceHandler.Register)

	// Balance API routes
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/balances", balanceHandler.GetBalances)
		r.Put("/balances/{currency}", balanceHandler.SetBalance)
		r.Post("/balances/{currency}/adjust", balanceHandler.AdjustBalance)
		r.Post("/snapshot", balanceHandler.Snapshot)
		r.Get("/history", balanceHandler.GetHistory)
	})

	return r
}
