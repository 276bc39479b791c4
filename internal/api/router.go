/**
 * @description
 * This file sets up the HTTP router for the loyalty-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * authentication middleware: Clerk JWTs for user and admin routes, the shared
 * internal API key for service-to-service routes.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LoyaltyRoutes creates and returns a new router for the loyalty service.
func LoyaltyRoutes(h *LoyaltyHandlers, jwksURL, internalAPIKey string) http.Handler {
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

	// Group routes that require user authentication.
	r.Group(func(r chi.Router) {
		r.Use(ClerkAuthMiddleware(jwksURL))

		// Balance and history
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/ledger", h.GetLedgerHandler)

		// Community goals
		r.Get("/goals", h.ListGoalsHandler)
		r.Get("/goals/{goalID}", h.GetGoalHandler)
		r.Post("/goals/{goalID}/contribute", h.ContributeHandler)

		// Administrative operations; the service layer enforces the admin
		// capability on the authenticated caller.
		r.Route("/admin", func(r chi.Router) {
			r.Put("/users/{userID}/tier", h.SetTierHandler)
			r.Get("/thresholds", h.GetThresholdsHandler)
			r.Put("/thresholds", h.UpdateThresholdsHandler)
			r.Post("/goals", h.CreateGoalHandler)
			r.Post("/goals/{goalID}/archive", h.ArchiveGoalHandler)
			r.Post("/goals/{goalID}/reset", h.ResetGoalHandler)
		})
	})

	// Trusted service-to-service routes.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))

		r.Post("/earn", h.EarnHandler)
		r.Post("/adjustments", h.AdjustmentHandler)
	})

	return r
}
