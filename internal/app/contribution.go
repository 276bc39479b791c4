/**
 * @description
 * This file implements the goal contribution transaction: moving points from
 * a user's balance into a community goal's accumulated total. The store
 * offers no transaction spanning the profile row and the goal row, so the
 * transfer runs as an explicit saga — an ordered list of named steps, each
 * with a declared compensation — instead of ad hoc nested error handling.
 *
 * Steps and their failure semantics:
 *  1. debit_contributor — atomic decrement; a failure here aborts cleanly
 *     with nothing changed (the insufficient-balance check is inside the
 *     decrement itself).
 *  2. credit_goal — atomic add to the goal total; on failure the debit is
 *     compensated by re-crediting the user. If that compensation also fails
 *     the operation surfaces a PartialTransferError: the one outcome that is
 *     not locally recoverable, logged at critical level and published to the
 *     reconciliation alert path.
 *  3. record_ledger — best effort; a failure after the transfer has
 *     committed is an audit gap, logged and accepted (compensating the
 *     committed transfer at this point would risk double-compensation).
 *
 * Once the debit has committed the saga runs on a detached context: a caller
 * disconnect must not strand the transfer between steps.
 */

package app

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/auralounge/loyalty-service/internal/domain"
	"github.com/auralounge/loyalty-service/internal/store"
	"github.com/auralounge/loyalty-service/pkg/rabbitmq"
)

// contributionStep is one named stage of the transfer with its declared
// compensation. bestEffort steps log their failure and let the saga proceed.
type contributionStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
	bestEffort bool
}

// Contribute moves points from the user's balance into the goal's total and
// records the redeem ledger entry linking the two.
func (s *Service) Contribute(ctx context.Context, userID, goalID uuid.UUID, points int64, notes string) (*domain.ContributionResult, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}

	goal, err := s.repo.FindGoalByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if !goal.AcceptsContributionsAt(s.now()) {
		return nil, ErrGoalNotAcceptingContributions
	}

	// Advisory precheck: fail fast before any mutation. The decrement below
	// re-validates atomically, so this is a courtesy, not the guard.
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Points < points {
		return nil, store.ErrInsufficientBalance
	}

	result := &domain.ContributionResult{
		GoalID:         goalID,
		Points:         points,
		LedgerRecorded: true,
	}

	steps := []contributionStep{
		{
			name: "debit_contributor",
			run: func(ctx context.Context) error {
				balance, err := s.repo.DecrementBalance(ctx, userID, points)
				if err != nil {
					return err
				}
				result.NewBalance = balance
				return nil
			},
			compensate: func(ctx context.Context) error {
				restored, err := s.repo.IncrementBalance(ctx, userID, points)
				if err != nil {
					return err
				}
				result.NewBalance = restored
				return nil
			},
		},
		{
			name: "credit_goal",
			run: func(ctx context.Context) error {
				total, err := s.repo.AddGoalPoints(ctx, goalID, points)
				if err != nil {
					return err
				}
				result.GoalTotal = total
				return nil
			},
		},
		{
			name: "record_ledger",
			run: func(ctx context.Context) error {
				entry := &domain.LedgerEntry{
					ID:        uuid.New(),
					UserID:    userID,
					Direction: domain.DirectionRedeem,
					Points:    points,
					Notes:     defaultNotes(notes, "contribution: "+goal.Name),
					GoalID:    &goalID,
				}
				return s.repo.CreateLedgerEntry(ctx, entry)
			},
			bestEffort: true,
		},
	}

	if err := s.runContributionSaga(ctx, userID, goalID, points, steps, result); err != nil {
		return nil, err
	}

	result.Tier = s.displayTier(ctx, userID, result.NewBalance, s.loadThresholds(ctx))
	s.publishGoalContribution(ctx, userID, goalID, points, result.GoalTotal)

	return result, nil
}

// runContributionSaga executes the steps in order. On a non-best-effort
// failure it runs the compensations of every completed step in reverse; a
// compensation failure escalates to PartialTransferError.
func (s *Service) runContributionSaga(ctx context.Context, userID, goalID uuid.UUID, points int64, steps []contributionStep, result *domain.ContributionResult) error {
	// Once the first step commits, the saga must run to completion even if
	// the caller disconnects.
	detached := context.WithoutCancel(ctx)

	completed := make([]contributionStep, 0, len(steps))
	for i, step := range steps {
		stepCtx := ctx
		if i > 0 {
			stepCtx = detached
		}

		err := step.run(stepCtx)
		if err == nil {
			completed = append(completed, step)
			continue
		}

		if step.bestEffort {
			if step.name == "record_ledger" {
				result.LedgerRecorded = false
			}
			log.Printf("level=error component=contribution msg=\"audit gap: step failed after committed transfer\" step=%s user_id=%s goal_id=%s points=%d err=%v",
				step.name, userID, goalID, points, err)
			continue
		}

		log.Printf("level=warn component=contribution msg=\"step failed; compensating\" step=%s user_id=%s goal_id=%s points=%d err=%v",
			step.name, userID, goalID, points, err)

		for j := len(completed) - 1; j >= 0; j-- {
			comp := completed[j]
			if comp.compensate == nil {
				continue
			}
			if compErr := comp.compensate(detached); compErr != nil {
				partial := &PartialTransferError{
					UserID:        userID,
					GoalID:        goalID,
					Points:        points,
					CreditErr:     err,
					CompensateErr: compErr,
				}
				s.alertPartialTransfer(detached, partial)
				return partial
			}
			log.Printf("level=info component=contribution msg=\"compensated step\" step=%s user_id=%s goal_id=%s points=%d",
				comp.name, userID, goalID, points)
		}
		return err
	}
	return nil
}

// alertPartialTransfer is the operational alerting path for the inconsistent
// state: balance debited, goal not credited, compensation failed. It is
// deliberately loud and never swallowed.
func (s *Service) alertPartialTransfer(ctx context.Context, partial *PartialTransferError) {
	log.Printf("level=critical component=contribution msg=\"PARTIAL TRANSFER: balance debited, goal not credited, compensation failed; manual reconciliation required\" user_id=%s goal_id=%s points=%d credit_err=%v compensate_err=%v",
		partial.UserID, partial.GoalID, partial.Points, partial.CreditErr, partial.CompensateErr)

	if s.eventProducer == nil {
		return
	}
	err := s.eventProducer.PublishReconciliationEvent(ctx, rabbitmq.ReconciliationEvent{
		UserID:       partial.UserID,
		GoalID:       partial.GoalID,
		Points:       partial.Points,
		CreditError:  partial.CreditErr.Error(),
		RestoreError: partial.CompensateErr.Error(),
		Timestamp:    s.now(),
	})
	if err != nil {
		log.Printf("level=critical component=contribution msg=\"reconciliation event publish failed; alert exists only in logs\" user_id=%s goal_id=%s err=%v",
			partial.UserID, partial.GoalID, err)
	}
}

// publishGoalContribution emits the informational contribution event; delivery
// is best effort.
func (s *Service) publishGoalContribution(ctx context.Context, userID, goalID uuid.UUID, points, goalTotal int64) {
	if s.eventProducer == nil {
		return
	}
	err := s.eventProducer.Publish(ctx, loyaltyEventsExchange, "loyalty.goal.contribution", rabbitmq.GoalContributionEvent{
		UserID:    userID,
		GoalID:    goalID,
		Points:    points,
		GoalTotal: goalTotal,
		Timestamp: s.now(),
	})
	if err != nil {
		log.Printf("level=warn component=events msg=\"goal contribution event publish failed\" user_id=%s goal_id=%s err=%v", userID, goalID, err)
	}
}
