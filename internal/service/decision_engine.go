package service

import (
	"refund-autopilot/internal/core/domain"
)

// DecisionEngine turns extracted amount + fraud score into a refund decision.
// It is a pure function of its inputs and the configured thresholds; no I/O.
type DecisionEngine struct {
	autoApproveCents int64
	fraudThreshold   float64
}

// NewDecisionEngine creates a DecisionEngine with deployment-configured
// thresholds. autoApproveCents is the amount at or below which a refund
// bypasses human review, in smallest currency units.
func NewDecisionEngine(autoApproveCents int64, fraudThreshold float64) *DecisionEngine {
	return &DecisionEngine{
		autoApproveCents: autoApproveCents,
		fraudThreshold:   fraudThreshold,
	}
}

// Decide applies the approval rules in fixed order:
//
//  1. manual override forces approval, bypassing both thresholds
//  2. fraud score strictly above the threshold rejects (a score exactly at
//     the threshold does not reject)
//  3. amount at or below the auto-approve threshold approves (inclusive)
//  4. everything else waits for human review
func (e *DecisionEngine) Decide(amountCents int64, fraudScore float64, manualOverride bool) domain.RefundStatus {
	if manualOverride {
		return domain.RefundStatusApproved
	}
	if fraudScore > e.fraudThreshold {
		return domain.RefundStatusRejectedFraud
	}
	if amountCents <= e.autoApproveCents {
		return domain.RefundStatusApproved
	}
	return domain.RefundStatusPendingReview
}
