// Package decision maps a PD estimate to a categorical underwriting
// decision and a credit limit, from configured thresholds.
package decision

import (
	"fmt"
	"math"

	"github.com/ken860819/loan-ai-system/internal/config"
	"github.com/ken860819/loan-ai-system/internal/domain"
)

// Engine is a pure function of its configuration: no state, no I/O.
type Engine struct {
	rejectThreshold float64
	reviewThreshold float64
	baseAmount      int64
	variableAmount  int64
}

// NewEngine validates the thresholds (review <= reject, both in [0,1]) and
// the limit rule (non-negative amounts).
func NewEngine(thresholds config.ThresholdConfig, rule config.LimitRuleConfig) (*Engine, error) {
	if thresholds.Reject < 0 || thresholds.Reject > 1 || thresholds.Review < 0 || thresholds.Review > 1 {
		return nil, fmt.Errorf("decision thresholds must lie in [0,1]: reject=%v review=%v",
			thresholds.Reject, thresholds.Review)
	}
	if thresholds.Review > thresholds.Reject {
		return nil, fmt.Errorf("review threshold (%v) must not exceed reject threshold (%v)",
			thresholds.Review, thresholds.Reject)
	}
	if rule.BaseAmount < 0 || rule.VariableAmount < 0 {
		return nil, fmt.Errorf("limit rule amounts must be non-negative: base=%d variable=%d",
			rule.BaseAmount, rule.VariableAmount)
	}
	return &Engine{
		rejectThreshold: thresholds.Reject,
		reviewThreshold: thresholds.Review,
		baseAmount:      rule.BaseAmount,
		variableAmount:  rule.VariableAmount,
	}, nil
}

// Decide buckets the PD estimate. Comparisons are strictly greater-than: a
// PD exactly equal to a threshold falls into the more favorable bucket.
func (e *Engine) Decide(pd float64) domain.Decision {
	switch {
	case pd > e.rejectThreshold:
		return domain.DecisionReject
	case pd > e.reviewThreshold:
		return domain.DecisionReview
	default:
		return domain.DecisionApprove
	}
}

// ComputeLimit returns base + floor((1-pd) * variable) in the approve
// region and 0 everywhere else. Monotonically non-increasing in pd.
func (e *Engine) ComputeLimit(pd float64) int64 {
	if pd > e.reviewThreshold {
		return 0
	}
	return e.baseAmount + int64(math.Floor((1-pd)*float64(e.variableAmount)))
}
