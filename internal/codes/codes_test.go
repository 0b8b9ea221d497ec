package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuspensionTypeValid(t *testing.T) {
	t.Run("should accept known types and the empty type", func(t *testing.T) {
		assert.True(t, SuspensionTemporary.Valid())
		assert.True(t, SuspensionPermanent.Valid())
		assert.True(t, SuspensionNone.Valid())
	})

	t.Run("should reject unknown types", func(t *testing.T) {
		assert.False(t, SuspensionType("XX").Valid())
	})
}

func TestReasonPaymentRecorded(t *testing.T) {
	t.Run("should treat full and partial payment as payment", func(t *testing.T) {
		assert.True(t, ReasonFullPayment.PaymentRecorded())
		assert.True(t, ReasonPartialAmount.PaymentRecorded())
	})

	t.Run("should not treat other reasons as payment", func(t *testing.T) {
		assert.False(t, ReasonReduction.PaymentRecorded())
		assert.False(t, ReasonInvestigation.PaymentRecorded())
		assert.False(t, ReasonClearanceLoop.PaymentRecorded())
	})
}

func TestStageReductionEligible(t *testing.T) {
	t.Run("should allow the general stage list", func(t *testing.T) {
		for _, s := range []Stage{StageNPA, StageROV, StageENA, StageRD1, StageRD2, StageRR3, StageDN1, StageDN2, StageDR3} {
			assert.True(t, s.ReductionEligible(), "stage %s", s)
		}
	})

	t.Run("should reject unknown stages", func(t *testing.T) {
		assert.False(t, Stage("ZZZ").ReductionEligible())
		assert.False(t, Stage("").ReductionEligible())
	})
}

func TestStageFinalEscalation(t *testing.T) {
	assert.True(t, StageRR3.FinalEscalation())
	assert.True(t, StageDR3.FinalEscalation())
	assert.False(t, StageRD1.FinalEscalation())
	assert.False(t, StageNPA.FinalEscalation())
}
