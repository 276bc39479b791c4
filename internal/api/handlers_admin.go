/**
 * @description
 * This file contains the administrative and internal HTTP handlers: the tier
 * override, threshold configuration, goal lifecycle management, and the
 * trusted earn/adjustment entry points used by other backend services.
 *
 * Admin routes ride the same JWT middleware as user routes; the service layer
 * additionally verifies the admin capability on the caller's profile. Internal
 * routes authenticate with the shared API key instead and carry the target
 * user in the request body.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/app"
	"github.com/auralounge/loyalty-service/internal/domain"
	"github.com/auralounge/loyalty-service/internal/store"
)

// SetTierHandler handles the administrative tier override. The target user's
// balance is reset to the new tier's floor.
func (h *LoyaltyHandlers) SetTierHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req domain.SetTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetTier(r.Context(), adminID, userID, req.Tier); err != nil {
		log.Printf("level=warn component=api endpoint=set_tier outcome=failed admin_id=%s user_id=%s err=%v", adminID, userID, err)
		switch {
		case errors.Is(err, app.ErrInvalidTier):
			h.writeError(w, http.StatusBadRequest, "Unknown tier")
		case errors.Is(err, app.ErrNotAuthorized):
			h.writeError(w, http.StatusForbidden, "Admin privileges required")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Loyalty profile not found")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Tier updated successfully"})
}

// GetThresholdsHandler returns the effective tier thresholds.
func (h *LoyaltyHandlers) GetThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedUserID(w, r); !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Thresholds(r.Context()))
}

// UpdateThresholdsHandler persists new tier boundaries.
func (h *LoyaltyHandlers) UpdateThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var req domain.TierThresholds
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateThresholds(r.Context(), adminID, req); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidThresholds):
			h.writeError(w, http.StatusBadRequest, "Thresholds must satisfy 0 < silver < gold")
		case errors.Is(err, app.ErrNotAuthorized):
			h.writeError(w, http.StatusForbidden, "Admin privileges required")
		default:
			log.Printf("level=error component=api endpoint=update_thresholds outcome=failed admin_id=%s err=%v", adminID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Thresholds updated successfully"})
}

// CreateGoalHandler creates a new community goal.
func (h *LoyaltyHandlers) CreateGoalHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	goal, err := h.service.CreateGoal(r.Context(), adminID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidGoal):
			h.writeError(w, http.StatusBadRequest, "Goal requires a name and a positive target")
		case errors.Is(err, app.ErrNotAuthorized):
			h.writeError(w, http.StatusForbidden, "Admin privileges required")
		default:
			log.Printf("level=error component=api endpoint=create_goal outcome=failed admin_id=%s err=%v", adminID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, goal)
}

// ArchiveGoalHandler closes a goal to further contributions.
func (h *LoyaltyHandlers) ArchiveGoalHandler(w http.ResponseWriter, r *http.Request) {
	h.goalLifecycleHandler(w, r, "archive_goal", h.service.ArchiveGoal)
}

// ResetGoalHandler zeroes a goal's accumulated total.
func (h *LoyaltyHandlers) ResetGoalHandler(w http.ResponseWriter, r *http.Request) {
	h.goalLifecycleHandler(w, r, "reset_goal", h.service.ResetGoal)
}

// goalLifecycleHandler shares the parse/authorize/error-map shape of the
// archive and reset operations.
func (h *LoyaltyHandlers) goalLifecycleHandler(w http.ResponseWriter, r *http.Request, endpoint string, op func(ctx context.Context, adminID, goalID uuid.UUID) error) {
	adminID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	goalID, err := uuid.Parse(chi.URLParam(r, "goalID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid goal ID format")
		return
	}

	if err := op(r.Context(), adminID, goalID); err != nil {
		switch {
		case errors.Is(err, app.ErrNotAuthorized):
			h.writeError(w, http.StatusForbidden, "Admin privileges required")
		case errors.Is(err, store.ErrGoalNotFound):
			h.writeError(w, http.StatusNotFound, "Goal not found")
		default:
			log.Printf("level=error component=api endpoint=%s outcome=failed admin_id=%s goal_id=%s err=%v", endpoint, adminID, goalID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Goal updated successfully"})
}

// EarnHandler is the trusted entry point other backend services call when a
// user completes a qualifying action. It is guarded by the internal API key.
func (h *LoyaltyHandlers) EarnHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.service.Earn(r.Context(), req.UserID, req.Action)
	if err != nil {
		var rateLimited *app.RateLimitedError
		switch {
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimited.Cooldown.Seconds())))
			h.writeError(w, http.StatusTooManyRequests, "Earn action is on cooldown")
		case errors.Is(err, app.ErrUnknownEarnAction):
			h.writeError(w, http.StatusBadRequest, "Unknown earn action")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Loyalty profile not found")
		default:
			log.Printf("level=error component=api endpoint=earn outcome=failed user_id=%s action=%s err=%v", req.UserID, req.Action, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// AdjustmentHandler applies a signed administrative point adjustment. It is
// guarded by the internal API key and used by back-office tooling.
func (h *LoyaltyHandlers) AdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.service.AdjustPoints(r.Context(), req.UserID, req.Delta, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPoints):
			h.writeError(w, http.StatusBadRequest, "Delta must be non-zero")
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient points balance for debit")
		case errors.Is(err, store.ErrProfileNotFound):
			h.writeError(w, http.StatusNotFound, "Loyalty profile not found")
		default:
			log.Printf("level=error component=api endpoint=adjustment outcome=failed user_id=%s delta=%d err=%v", req.UserID, req.Delta, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}
