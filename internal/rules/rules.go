// Package rules resolves time-windowed eligibility rules that determine
// valid offence types, fine amounts and reduction eligibility.
package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/pkg/money"
)

// Key is the composite identity of a rule row.
type Key struct {
	ComputerRuleCode  int
	VehicleCategory   string
	CompositionAmount string
	EffectiveStart    time.Time
}

// Rule maps an offence rule code and vehicle category to a valid offence
// type and composition amount within an effective window. Rows are
// read-only from the workflow's perspective.
type Rule struct {
	ComputerRuleCode    int          `json:"computer_rule_code"`
	VehicleCategory     string       `json:"vehicle_category"`
	CompositionAmount   money.Amount `json:"composition_amount"`
	EffectiveStart      time.Time    `json:"effective_start"`
	EffectiveEnd        time.Time    `json:"effective_end"`
	OffenceType         string       `json:"offence_type"`
	Description         string       `json:"description"`
	SecondaryFineAmount money.Amount `json:"secondary_fine_amount"`
}

// Key returns the rule's composite identity.
func (r *Rule) Key() Key {
	return Key{
		ComputerRuleCode:  r.ComputerRuleCode,
		VehicleCategory:   r.VehicleCategory,
		CompositionAmount: r.CompositionAmount.String(),
		EffectiveStart:    r.EffectiveStart,
	}
}

// ActiveAt reports whether at falls within [EffectiveStart, EffectiveEnd).
func (r *Rule) ActiveAt(at time.Time) bool {
	return !at.Before(r.EffectiveStart) && at.Before(r.EffectiveEnd)
}

// generallyEligibleCodes are the rule codes for which reduction is allowed
// at any stage in the general stage list. All other codes are reducible
// only at the final escalation stages.
var generallyEligibleCodes = map[int]struct{}{
	30305: {},
	31302: {},
	30302: {},
	21300: {},
}

// GenerallyEligibleCode reports whether the rule code is in the eligible list.
func GenerallyEligibleCode(ruleCode int) bool {
	_, ok := generallyEligibleCodes[ruleCode]
	return ok
}

// Service resolves rules from the database with a Redis read-through cache.
type Service struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewService creates a rule service. cache may be nil, in which case every
// lookup hits the database.
func NewService(db *sql.DB, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{db: db, cache: cache, cacheTTL: cacheTTL}
}

func cacheKey(ruleCode int, vehicleCategory string) string {
	return fmt.Sprintf("rule:%d:%s", ruleCode, vehicleCategory)
}

// ResolveActive returns the rule whose effective window contains at for
// the given (rule code, vehicle category), or nil if no such row exists.
// At most one row's window may contain a given instant.
func (s *Service) ResolveActive(ctx context.Context, ruleCode int, vehicleCategory string, at time.Time) (*Rule, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey(ruleCode, vehicleCategory)).Result(); err == nil {
			var r Rule
			if json.Unmarshal([]byte(cached), &r) == nil && r.ActiveAt(at) {
				return &r, nil
			}
			// Stale or malformed cache entry: fall through to the database.
		}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT computer_rule_code, vehicle_category, composition_amount,
		        effective_start_date, effective_end_date,
		        offence_type, description, secondary_fine_amount
		 FROM offence_rule_codes
		 WHERE computer_rule_code = $1 AND vehicle_category = $2
		   AND effective_start_date <= $3 AND effective_end_date > $3`,
		ruleCode, vehicleCategory, at)

	var r Rule
	err := row.Scan(&r.ComputerRuleCode, &r.VehicleCategory, &r.CompositionAmount,
		&r.EffectiveStart, &r.EffectiveEnd,
		&r.OffenceType, &r.Description, &r.SecondaryFineAmount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rule %d/%s: %w", ruleCode, vehicleCategory, err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(&r); err == nil {
			s.cache.Set(ctx, cacheKey(ruleCode, vehicleCategory), payload, s.cacheTTL)
		}
	}
	return &r, nil
}

// Eligibility is the outcome of a reduction eligibility check.
type Eligibility struct {
	Eligible bool
	Reason   string
}

// CheckReduction decides whether a notice at the given stage with the
// given rule code may be reduced at instant at.
//
// Rule-code logic: generally eligible codes allow any stage in the
// general list; other codes allow only the final escalation stages. When a
// rule row exists for (rule code, vehicle category), its effective window
// must also contain at.
func (s *Service) CheckReduction(ctx context.Context, ruleCode int, vehicleCategory string, stage codes.Stage, at time.Time) (Eligibility, error) {
	rule, err := s.ResolveActive(ctx, ruleCode, vehicleCategory, at)
	if err != nil {
		return Eligibility{}, err
	}

	ruleExists := rule != nil
	if rule == nil {
		ruleExists, err = s.anyRuleExists(ctx, ruleCode, vehicleCategory)
		if err != nil {
			return Eligibility{}, err
		}
	}

	return decideReduction(rule, ruleExists, ruleCode, vehicleCategory, stage, at), nil
}

// decideReduction applies the eligibility policy given the resolved rule
// state. rule is the row whose window contains at, or nil; ruleExists
// reports whether any row exists for the (rule code, vehicle category)
// pair regardless of window.
func decideReduction(rule *Rule, ruleExists bool, ruleCode int, vehicleCategory string, stage codes.Stage, at time.Time) Eligibility {
	// A pair with rows but no window containing at means the rule has
	// lapsed (or not yet started); the notice is not eligible.
	lapsed := ruleExists && (rule == nil || !rule.ActiveAt(at))
	if lapsed {
		return Eligibility{
			Eligible: false,
			Reason: fmt.Sprintf("no rule for code %d and category %s is effective at %s",
				ruleCode, vehicleCategory, at.Format("2006-01-02")),
		}
	}

	if GenerallyEligibleCode(ruleCode) {
		if stage.ReductionEligible() {
			return Eligibility{Eligible: true}
		}
		return Eligibility{
			Eligible: false,
			Reason: fmt.Sprintf("rule code %d is eligible, but processing stage %q is not in the allowed list",
				ruleCode, stage),
		}
	}

	if stage.FinalEscalation() {
		return Eligibility{Eligible: true}
	}
	return Eligibility{
		Eligible: false,
		Reason: fmt.Sprintf("rule code %d is not in the eligible list, and processing stage %q is not RR3 or DR3",
			ruleCode, stage),
	}
}

func (s *Service) anyRuleExists(ctx context.Context, ruleCode int, vehicleCategory string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM offence_rule_codes
		  WHERE computer_rule_code = $1 AND vehicle_category = $2)`,
		ruleCode, vehicleCategory).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rule existence for %d/%s: %w", ruleCode, vehicleCategory, err)
	}
	return exists, nil
}
