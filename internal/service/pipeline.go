// Package service orchestrates the evaluation pipeline: KYC validation,
// feature derivation, PD estimation, decisioning, account provisioning and
// the ledger operations.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/decision"
	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/infra/observability"
	"github.com/ken860819/loan-ai-system/internal/port"
	"github.com/ken860819/loan-ai-system/internal/scoring"
)

var tracer = otel.Tracer("service/pipeline")

// Pipeline wires the scoring and decision engines to the ledger store.
type Pipeline struct {
	store   port.LedgerStore
	scorer  *scoring.Engine
	decider *decision.Engine
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPipeline creates the evaluation pipeline.
func NewPipeline(
	store port.LedgerStore,
	scorer *scoring.Engine,
	decider *decision.Engine,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		store:   store,
		scorer:  scorer,
		decider: decider,
		metrics: metrics,
		logger:  logger,
	}
}

// Evaluate validates the KYC record, derives features and estimates the PD.
// The result is a fresh evaluation session; features and PD are sampled once
// here and reused for every later step of the same submission.
func (p *Pipeline) Evaluate(ctx context.Context, kyc domain.KYCRecord) (*domain.Evaluation, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Evaluate")
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordRequestDuration("evaluate", time.Since(start)) }()

	if err := validateKYC(kyc); err != nil {
		return nil, err
	}

	features := p.scorer.DeriveFeatures(kyc)
	pd, err := p.scorer.EstimatePD(features)
	if err != nil {
		return nil, err
	}

	eval := &domain.Evaluation{
		SessionID: uuid.NewString(),
		KYC:       kyc,
		Features:  features,
		PD:        pd,
		CreatedAt: time.Now().UTC(),
	}

	span.SetAttributes(
		attribute.String("session_id", eval.SessionID),
		attribute.Float64("pd", pd),
	)
	p.logger.Info("evaluation scored",
		zap.String("session_id", eval.SessionID),
		zap.Float64("pd", pd))
	return eval, nil
}

// DecideAndLimit buckets the session's PD and computes the credit limit,
// recording the outcome on the evaluation. Idempotent per session.
func (p *Pipeline) DecideAndLimit(ctx context.Context, eval *domain.Evaluation) {
	_, span := tracer.Start(ctx, "Pipeline.DecideAndLimit")
	defer span.End()

	if eval.Decided {
		return
	}

	eval.Decision = p.decider.Decide(eval.PD)
	eval.Limit = p.decider.ComputeLimit(eval.PD)
	eval.Decided = true

	p.metrics.IncrEvaluation(string(eval.Decision))
	p.logger.Info("decision made",
		zap.String("session_id", eval.SessionID),
		zap.String("decision", string(eval.Decision)),
		zap.Int64("limit", eval.Limit))
}

// Provision opens the revolving-credit account for an approved session.
func (p *Pipeline) Provision(ctx context.Context, eval *domain.Evaluation) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Provision")
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordRequestDuration("provision", time.Since(start)) }()

	account, err := p.store.CreateAccount(ctx, eval.KYC, eval.PD, eval.Limit)
	if err != nil {
		return nil, err
	}

	p.metrics.IncrProvisioned()
	return account, nil
}

// Borrow draws amount against the account's available credit.
func (p *Pipeline) Borrow(ctx context.Context, userID string, amount int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Borrow")
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordRequestDuration("borrow", time.Since(start)) }()

	if amount < 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-negative"}
	}

	account, err := p.store.Borrow(ctx, userID, amount)
	p.metrics.IncrTransition(string(domain.TransactionBorrow), transitionOutcome(err))
	return account, err
}

// Repay pays amount back against the account's outstanding balance.
func (p *Pipeline) Repay(ctx context.Context, userID string, amount int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Repay")
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordRequestDuration("repay", time.Since(start)) }()

	if amount < 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-negative"}
	}

	account, err := p.store.Repay(ctx, userID, amount)
	p.metrics.IncrTransition(string(domain.TransactionRepay), transitionOutcome(err))
	return account, err
}

// GetAccount fetches an account by user id.
func (p *Pipeline) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.GetAccount")
	defer span.End()

	return p.store.GetAccount(ctx, userID)
}

// ListTransactions fetches the account's transaction history, newest-first.
func (p *Pipeline) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.ListTransactions")
	defer span.End()

	return p.store.ListTransactions(ctx, userID)
}

// transitionOutcome maps a ledger error to the metric label.
func transitionOutcome(err error) string {
	var insufficient *domain.ErrInsufficientCredit
	var over *domain.ErrOverRepayment
	var notFound *domain.ErrNotFound
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &insufficient):
		return "insufficient_credit"
	case errors.As(err, &over):
		return "over_repayment"
	case errors.As(err, &notFound):
		return "not_found"
	default:
		return "error"
	}
}

// validateKYC enforces the intake constraints before anything is scored.
func validateKYC(kyc domain.KYCRecord) error {
	if kyc.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if len(kyc.NationalIDLast4) != 4 {
		return &domain.ErrValidation{Field: "national_id_last4", Message: "must be exactly 4 characters"}
	}
	if kyc.Age < 18 || kyc.Age > 80 {
		return &domain.ErrValidation{Field: "age", Message: "must be between 18 and 80"}
	}
	if kyc.MonthlyIncome < 0 {
		return &domain.ErrValidation{Field: "monthly_income", Message: "must be non-negative"}
	}
	if !validJobType(kyc.JobType) {
		return &domain.ErrValidation{Field: "job_type", Message: "unknown job type"}
	}
	if !validRegion(kyc.Region) {
		return &domain.ErrValidation{Field: "region", Message: "unknown region"}
	}
	return nil
}

func validJobType(j domain.JobType) bool {
	for _, v := range domain.ValidJobTypes {
		if j == v {
			return true
		}
	}
	return false
}

func validRegion(r domain.Region) bool {
	for _, v := range domain.ValidRegions {
		if r == v {
			return true
		}
	}
	return false
}
