package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/pkg/money"
)

func TestRuleActiveAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := &Rule{
		ComputerRuleCode:  30305,
		VehicleCategory:   "C",
		CompositionAmount: money.MustNew("70.00"),
		EffectiveStart:    start,
		EffectiveEnd:      end,
	}

	t.Run("should include the start instant", func(t *testing.T) {
		assert.True(t, rule.ActiveAt(start))
	})

	t.Run("should exclude the end instant", func(t *testing.T) {
		assert.False(t, rule.ActiveAt(end))
	})

	t.Run("should include instants inside the window", func(t *testing.T) {
		assert.True(t, rule.ActiveAt(start.AddDate(0, 6, 0)))
	})

	t.Run("should exclude instants before the window", func(t *testing.T) {
		assert.False(t, rule.ActiveAt(start.Add(-time.Second)))
	})
}

func TestGenerallyEligibleCode(t *testing.T) {
	t.Run("should include the four eligible codes", func(t *testing.T) {
		for _, code := range []int{30305, 31302, 30302, 21300} {
			assert.True(t, GenerallyEligibleCode(code), "code %d", code)
		}
	})

	t.Run("should exclude everything else", func(t *testing.T) {
		assert.False(t, GenerallyEligibleCode(30306))
		assert.False(t, GenerallyEligibleCode(0))
	})
}

func TestDecideReduction(t *testing.T) {
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	activeRule := func(code int) *Rule {
		return &Rule{
			ComputerRuleCode:  code,
			VehicleCategory:   "C",
			CompositionAmount: money.MustNew("70.00"),
			EffectiveStart:    at.AddDate(-1, 0, 0),
			EffectiveEnd:      at.AddDate(1, 0, 0),
		}
	}

	t.Run("should allow an eligible code at a general stage", func(t *testing.T) {
		e := decideReduction(activeRule(30305), true, 30305, "C", codes.StageRD1, at)
		assert.True(t, e.Eligible)
		assert.Empty(t, e.Reason)
	})

	t.Run("should reject an eligible code at a stage outside the list", func(t *testing.T) {
		e := decideReduction(activeRule(30305), true, 30305, "C", codes.Stage("XX9"), at)
		assert.False(t, e.Eligible)
		assert.Contains(t, e.Reason, "not in the allowed list")
	})

	t.Run("should allow a non-eligible code at a final escalation stage", func(t *testing.T) {
		e := decideReduction(activeRule(30306), true, 30306, "C", codes.StageRR3, at)
		assert.True(t, e.Eligible)
	})

	t.Run("should reject a non-eligible code before final escalation", func(t *testing.T) {
		e := decideReduction(activeRule(30306), true, 30306, "C", codes.StageRD1, at)
		assert.False(t, e.Eligible)
		assert.Contains(t, e.Reason, "not RR3 or DR3")
	})

	t.Run("should reject when rows exist but the window has lapsed", func(t *testing.T) {
		e := decideReduction(nil, true, 30305, "C", codes.StageRD1, at)
		assert.False(t, e.Eligible)
		assert.Contains(t, e.Reason, "effective at 2025-06-15")
	})

	t.Run("should reject a resolved rule whose window excludes the instant", func(t *testing.T) {
		lapsed := activeRule(30305)
		lapsed.EffectiveEnd = at
		e := decideReduction(lapsed, true, 30305, "C", codes.StageRD1, at)
		assert.False(t, e.Eligible)
		assert.Contains(t, e.Reason, "is effective at")
	})

	t.Run("should fall back to the code list when no rows exist at all", func(t *testing.T) {
		e := decideReduction(nil, false, 30305, "C", codes.StageRD1, at)
		assert.True(t, e.Eligible)

		e = decideReduction(nil, false, 30306, "C", codes.StageRD1, at)
		assert.False(t, e.Eligible)
	})
}

func TestRuleKey(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := &Rule{
		ComputerRuleCode:  21300,
		VehicleCategory:   "M",
		CompositionAmount: money.MustNew("35"),
		EffectiveStart:    start,
	}
	key := rule.Key()
	assert.Equal(t, 21300, key.ComputerRuleCode)
	assert.Equal(t, "M", key.VehicleCategory)
	assert.Equal(t, "35.00", key.CompositionAmount)
	assert.Equal(t, start, key.EffectiveStart)
}
