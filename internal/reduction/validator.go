package reduction

import (
	"context"
	"fmt"
	"time"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/internal/notices"
	"github.com/terminal-bench/noticeflow/internal/rules"
)

// RuleChecker decides reduction eligibility for a rule code and stage.
type RuleChecker interface {
	CheckReduction(ctx context.Context, ruleCode int, vehicleCategory string, stage codes.Stage, at time.Time) (rules.Eligibility, error)
}

// Validator performs the business-level checks on a reduction request.
// Format and mandatory-field checks are the transport layer's concern and
// are assumed done before any method here is invoked. Methods return a nil
// *Result when the check passes.
type Validator struct {
	rules RuleChecker
	now   func() time.Time
}

// NewValidator creates a validator. now may be nil to use the wall clock.
func NewValidator(ruleChecker RuleChecker, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{rules: ruleChecker, now: now}
}

// ValidateNotPaid rejects a reduction against a notice with any payment
// recorded. This precedes eligibility: a paid notice can never be reduced
// regardless of rule state.
func (v *Validator) ValidateNotPaid(n *notices.Notice) *Result {
	if n.PaymentRecorded() {
		r := BusinessError(CodeNoticePaid, "Notice has been paid")
		r.NoticeNo = n.NoticeNo
		return &r
	}
	return nil
}

// ValidateAmounts checks the reduced amount against the notice's original
// composition amount.
func (v *Validator) ValidateAmounts(req *Request, n *notices.Notice) *Result {
	original := n.CompositionAmount

	if req.AmountReduced.IsNegative() || req.AmountPayable.IsNegative() {
		r := ValidationError(CodeNegativeAmount,
			fmt.Sprintf("amounts cannot be negative: reduced %s, payable %s",
				req.AmountReduced, req.AmountPayable))
		return &r
	}

	if req.AmountReduced.Cmp(original) > 0 {
		r := ValidationError(CodeInvalidReductionAmount,
			fmt.Sprintf("amount reduced (%s) cannot exceed original composition amount (%s)",
				req.AmountReduced, original))
		return &r
	}

	if expected := original.Sub(req.AmountReduced); !req.AmountPayable.Equal(expected) {
		r := ValidationError(CodeInconsistentAmounts,
			fmt.Sprintf("amount payable (%s) does not match expected value (%s = %s - %s)",
				req.AmountPayable, expected, original, req.AmountReduced))
		return &r
	}

	return nil
}

// ValidateDates checks chronological consistency of any supplied effective
// dates: the expiry must not precede the reduction date and must not
// already be in the past.
func (v *Validator) ValidateDates(req *Request) *Result {
	if req.ExpiryDate == nil {
		return nil
	}

	if req.ExpiryDate.Before(req.DateOfReduction) {
		r := ValidationError(CodeInvalidDates,
			"expiry date of reduction must not precede date of reduction")
		return &r
	}

	today := startOfDay(v.now())
	if req.ExpiryDate.Before(today) {
		r := ValidationError(CodeInvalidDates, "expiry date of reduction is in the past")
		return &r
	}

	return nil
}

// ValidateEligibility resolves the active eligibility rule and confirms the
// notice's processing stage permits reduction.
func (v *Validator) ValidateEligibility(ctx context.Context, rctx *Context) (*Result, error) {
	elig, err := v.rules.CheckReduction(ctx,
		rctx.ComputerRuleCode, rctx.Notice.VehicleCategory, rctx.Stage, v.now())
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		r := NotEligible(
			fmt.Sprintf("notice %s is not eligible for reduction: %s", rctx.Notice.NoticeNo, elig.Reason),
			elig.Reason)
		r.NoticeNo = rctx.Notice.NoticeNo
		return &r, nil
	}
	return nil, nil
}
