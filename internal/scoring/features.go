// Package scoring derives model features from KYC input and estimates the
// probability of default through a pluggable predictor.
package scoring

import (
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/config"
	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/port"
)

// Synthesized signal ranges, matching the data the system would otherwise
// pull from a credit bureau. Upper bounds are exclusive.
const (
	creditScoreMin = 300
	creditScoreMax = 850
	pastDelayMax   = 5
)

// Engine derives feature vectors and produces PD estimates. The random
// source is injected so tests can seed it; access is serialized because
// *rand.Rand is not safe for concurrent use.
type Engine struct {
	cfg       config.FeatureConfig
	predictor port.Predictor

	mu  sync.Mutex
	rng *rand.Rand

	logger *zap.Logger
}

// NewEngine creates a scoring engine around the given predictor.
func NewEngine(cfg config.FeatureConfig, predictor port.Predictor, rng *rand.Rand, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, predictor: predictor, rng: rng, logger: logger}
}

// DeriveFeatures maps age and income directly from the KYC record and, per
// configuration, synthesizes credit score, past-delinquency count and
// loan-usage ratio. Disabled flags leave the corresponding field nil.
func (e *Engine) DeriveFeatures(kyc domain.KYCRecord) domain.FeatureVector {
	f := domain.FeatureVector{
		Age:    float64(kyc.Age),
		Income: kyc.MonthlyIncome,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.SimulateCreditScore {
		score := creditScoreMin + e.rng.Intn(creditScoreMax-creditScoreMin)
		f.CreditScore = &score
	}
	if e.cfg.SimulateDelay {
		delay := e.rng.Intn(pastDelayMax)
		f.PastDelay = &delay
	}
	if e.cfg.SimulateUsage {
		usage := e.rng.Float64()
		f.LoanUsage = &usage
	}
	return f
}

// EstimatePD feeds the feature vector to the predictor and returns the
// estimated default probability in [0,1].
func (e *Engine) EstimatePD(features domain.FeatureVector) (float64, error) {
	pd, err := e.predictor.PredictDefault(features)
	if err != nil {
		return 0, err
	}
	e.logger.Debug("pd estimated",
		zap.Float64("pd", pd),
		zap.Bool("complete_features", features.Complete()),
	)
	return pd, nil
}
