/**
 * @description
 * This file defines the typed failures the core service reports to callers.
 * The recoverable kinds propagate to the API layer for user display;
 * PartialTransferError is the one non-recoverable class and additionally
 * travels to the operational alerting path.
 */

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPoints rejects non-positive point amounts before any I/O.
	ErrInvalidPoints = errors.New("points must be a positive amount")
	// ErrInvalidTier rejects unknown tier names on the tier-set operation.
	ErrInvalidTier = errors.New("unknown membership tier")
	// ErrInvalidThresholds rejects threshold updates violating 0 < silver < gold.
	ErrInvalidThresholds = errors.New("tier thresholds must satisfy 0 < silver < gold")
	// ErrGoalNotAcceptingContributions rejects contributions to inactive or
	// expired goals before the contributor's balance is touched.
	ErrGoalNotAcceptingContributions = errors.New("goal is not accepting contributions")
	// ErrNotAuthorized rejects administrative operations invoked without the
	// admin capability.
	ErrNotAuthorized = errors.New("caller is not authorized for this operation")
	// ErrUnknownEarnAction rejects earn requests for action types without a rule.
	ErrUnknownEarnAction = errors.New("unknown earn action")
	// ErrInvalidGoal rejects goal definitions with a non-positive target.
	ErrInvalidGoal = errors.New("goal target must be a positive amount")
)

// RateLimitedError reports an earn attempt inside the cooldown window. It is
// a soft failure: nothing was mutated.
type RateLimitedError struct {
	Action   string
	Cooldown time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("earn action %q is rate limited (cooldown %s)", e.Action, e.Cooldown)
}

// PartialTransferError reports the one state this service cannot repair on
// its own: a contribution decremented the user's balance, crediting the goal
// failed, and restoring the balance also failed. The ledger and the balance
// now disagree until someone reconciles them by hand. Callers must surface
// this loudly and never swallow it.
type PartialTransferError struct {
	UserID uuid.UUID
	GoalID uuid.UUID
	Points int64
	// CreditErr is the goal-credit failure that triggered compensation.
	CreditErr error
	// CompensateErr is the failure of the compensating re-credit.
	CompensateErr error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf(
		"partial transfer: %d points debited from user %s but goal %s not credited, and compensation failed: credit=%v compensate=%v",
		e.Points, e.UserID, e.GoalID, e.CreditErr, e.CompensateErr,
	)
}

func (e *PartialTransferError) Unwrap() error { return e.CreditErr }
