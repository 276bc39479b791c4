/**
 * @description
 * This file contains the HTTP handlers for the loyalty-service's user-facing
 * API endpoints: balance reads, ledger history, goal browsing and goal
 * contributions. Handlers parse the incoming request, call the application
 * service and translate service errors into HTTP statuses. Administrative and
 * internal endpoints live in handlers_admin.go.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/app"
	"github.com/auralounge/loyalty-service/internal/domain"
	"github.com/auralounge/loyalty-service/internal/store"
)

// LoyaltyHandlers holds the application service that handlers will use.
type LoyaltyHandlers struct {
	service *app.Service
}

// NewLoyaltyHandlers creates a new instance of LoyaltyHandlers.
func NewLoyaltyHandlers(service *app.Service) *LoyaltyHandlers {
	return &LoyaltyHandlers{service: service}
}

// authenticatedUserID extracts the caller's UUID from the request context.
// A false return means the response has already been written.
func (h *LoyaltyHandlers) authenticatedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetClerkUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id subject=%s", userIDStr)
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// GetBalanceHandler returns the caller's balance, tier and tier-progress data.
func (h *LoyaltyHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.BalanceSummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusNotFound, "Loyalty profile not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_balance outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// GetLedgerHandler returns one page of the caller's point history. Supported
// query parameters: filter (earn|redeem), cursor, cursor_ts (RFC3339), limit.
func (h *LoyaltyHandlers) GetLedgerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	opts := domain.LedgerListOptions{
		Filter: strings.TrimSpace(r.URL.Query().Get("filter")),
	}
	switch opts.Filter {
	case "", "earn", "redeem", "income", "expense":
	default:
		h.writeError(w, http.StatusBadRequest, "Invalid filter: must be earn or redeem")
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	opts.Limit = limit

	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		cursor, err := uuid.Parse(cursorStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid cursor")
			return
		}
		cursorTime, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("cursor_ts"))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid cursor_ts: RFC3339 timestamp required with cursor")
			return
		}
		opts.Cursor = cursor
		opts.CursorTime = cursorTime
	}

	page, err := h.service.LedgerHistory(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_ledger outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

// ListGoalsHandler returns the community goals currently open for contributions.
func (h *LoyaltyHandlers) ListGoalsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedUserID(w, r); !ok {
		return
	}

	goals, err := h.service.ActiveGoals(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_goals outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, goals)
}

// GetGoalHandler returns one community goal by ID.
func (h *LoyaltyHandlers) GetGoalHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedUserID(w, r); !ok {
		return
	}

	goalID, err := uuid.Parse(chi.URLParam(r, "goalID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid goal ID format")
		return
	}

	goal, err := h.service.Goal(r.Context(), goalID)
	if err != nil {
		if errors.Is(err, store.ErrGoalNotFound) {
			h.writeError(w, http.StatusNotFound, "Goal not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_goal outcome=failed goal_id=%s err=%v", goalID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, goal)
}

// ContributeHandler moves points from the caller's balance into a goal.
func (h *LoyaltyHandlers) ContributeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	goalID, err := uuid.Parse(chi.URLParam(r, "goalID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid goal ID format")
		return
	}

	var req domain.ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=contribute outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=contribute outcome=accepted user_id=%s goal_id=%s points=%d", userID, goalID, req.Points)

	result, err := h.service.Contribute(r.Context(), userID, goalID, req.Points, req.Notes)
	if err != nil {
		log.Printf("level=warn component=api endpoint=contribute outcome=failed user_id=%s goal_id=%s err=%v", userID, goalID, err)
		var partial *app.PartialTransferError
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient points balance")
		case errors.Is(err, store.ErrGoalNotFound):
			h.writeError(w, http.StatusNotFound, "Goal not found")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Loyalty profile not found")
		case errors.Is(err, app.ErrGoalNotAcceptingContributions):
			h.writeError(w, http.StatusConflict, "Goal is not accepting contributions")
		case errors.Is(err, app.ErrInvalidPoints):
			h.writeError(w, http.StatusBadRequest, "Points must be a positive amount")
		case errors.As(err, &partial):
			// The caller's balance is debited but the goal was not credited;
			// reconciliation is already alerted. Do not present this as a clean failure.
			h.writeError(w, http.StatusInternalServerError, "Contribution could not be completed; support has been notified")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// parseOptionalInt parses an optional non-negative integer query parameter.
func parseOptionalInt(raw string, def int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid integer: %q", raw)
	}
	return value, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *LoyaltyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LoyaltyHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
