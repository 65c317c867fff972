/**
 * @description
 * This file sets up the HTTP router for the settlement-service. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies middleware. The money-moving POST routes are wrapped in the
 * redis-backed idempotency middleware when a redis client is available.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/redis/go-redis/v9: Idempotency response cache.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// SettlementRoutes creates and returns a new router for the settlement service.
func SettlementRoutes(h *SettlementHandlers, redisClient *redis.Client, idempotencyTTL time.Duration) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Get("/balances/{ownerID}", h.GetBalancesHandler)
	r.Get("/treasury/balances", h.GetTreasuryBalancesHandler)
	r.Post("/swaps/quote", h.SwapQuoteHandler)

	// The money-moving routes get idempotent semantics so a client retry of
	// a timed-out request cannot double-spend.
	r.Group(func(r chi.Router) {
		if redisClient != nil {
			r.Use(Idempotency(redisClient, idempotencyTTL))
		}
		r.Post("/swaps", h.SwapHandler)
		r.Post("/withdrawals", h.WithdrawalHandler)
	})

	return r
}
