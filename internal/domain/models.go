// Package domain holds the core data model for the loan decisioning
// and revolving-credit engine: KYC intake, derived features, decisions,
// accounts and their transaction history.
package domain

import "time"

// JobType is the applicant's declared employment category.
type JobType string

const (
	JobEmployed     JobType = "employed"
	JobStudent      JobType = "student"
	JobSelfEmployed JobType = "self_employed"
	JobUnemployed   JobType = "unemployed"
	JobOther        JobType = "other"
)

// ValidJobTypes lists every accepted job type.
var ValidJobTypes = []JobType{JobEmployed, JobStudent, JobSelfEmployed, JobUnemployed, JobOther}

// Region is the applicant's declared region of residence.
type Region string

const (
	RegionNorth           Region = "north"
	RegionCentral         Region = "central"
	RegionSouth           Region = "south"
	RegionEast            Region = "east"
	RegionOutlyingIslands Region = "outlying_islands"
)

// ValidRegions lists every accepted region.
var ValidRegions = []Region{RegionNorth, RegionCentral, RegionSouth, RegionEast, RegionOutlyingIslands}

// KYCRecord is the validated intake data for one evaluation cycle.
// It is immutable once submitted; resubmitting starts a new cycle.
type KYCRecord struct {
	Name            string  `json:"name"`
	NationalIDLast4 string  `json:"national_id_last4"`
	Age             int     `json:"age"`
	MonthlyIncome   float64 `json:"monthly_income"`
	JobType         JobType `json:"job_type"`
	Region          Region  `json:"region"`
}

// FeatureVector is the model input derived from a KYC record.
// CreditScore, PastDelay and LoanUsage are synthesized signals; each is
// nil when its feature-engineering flag is disabled.
type FeatureVector struct {
	Age         float64  `json:"age"`
	Income      float64  `json:"income"`
	CreditScore *int     `json:"credit_score,omitempty"`
	PastDelay   *int     `json:"past_delay,omitempty"`
	LoanUsage   *float64 `json:"loan_usage,omitempty"`
}

// Complete reports whether every synthesized field is present.
// A trained predictor requires a complete vector.
func (f FeatureVector) Complete() bool {
	return f.CreditScore != nil && f.PastDelay != nil && f.LoanUsage != nil
}

// Decision is the categorical underwriting outcome for a PD estimate.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionReject  Decision = "reject"
)

// Account is the persistent revolving-credit facility for one applicant.
// Invariant: AvailableCredit + OutstandingBalance == LimitAmount, with
// both components in [0, LimitAmount].
type Account struct {
	UserID             string    `json:"user_id"`
	Name               string    `json:"name"`
	PD                 float64   `json:"pd"`
	LimitAmount        int64     `json:"limit_amount"`
	AvailableCredit    int64     `json:"available_credit"`
	OutstandingBalance int64     `json:"outstanding_balance"`
	CreatedAt          time.Time `json:"created_at"`
}

// TransactionType distinguishes the two ledger movements.
type TransactionType string

const (
	TransactionBorrow TransactionType = "borrow"
	TransactionRepay  TransactionType = "repay"
)

// Transaction is one immutable ledger entry. Entries are append-only and
// listed newest-first.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Evaluation is the per-submission session state: everything scored or
// decided for one KYC submission. Scoring consults a random source, so
// these values are computed once and reused until the KYC is resubmitted.
type Evaluation struct {
	SessionID string        `json:"session_id"`
	KYC       KYCRecord     `json:"kyc"`
	Features  FeatureVector `json:"features"`
	PD        float64       `json:"pd"`
	Decided   bool          `json:"decided"`
	Decision  Decision      `json:"decision,omitempty"`
	Limit     int64         `json:"limit"`
	UserID    string        `json:"user_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// EngineMetrics is a JSON snapshot of the engine's cumulative counters,
// served by GET /v1/metrics/engine.
type EngineMetrics struct {
	EvaluationsTotal    int64     `json:"evaluations_total"`
	Approved            int64     `json:"approved"`
	Reviewed            int64     `json:"reviewed"`
	Rejected            int64     `json:"rejected"`
	AccountsProvisioned int64     `json:"accounts_provisioned"`
	BorrowsTotal        int64     `json:"borrows_total"`
	RepaysTotal         int64     `json:"repays_total"`
	RejectedTransitions int64     `json:"rejected_transitions"`
	ApprovalRate        float64   `json:"approval_rate"`
	GeneratedAt         time.Time `json:"generated_at"`
}
