package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/config"
	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/port"
)

// featureCount is the width of the ordered model input:
// (age, income, credit_score, past_delay, loan_usage).
const featureCount = 5

// LogisticModel is a trained binary classifier serialized as JSON:
// per-feature standardization parameters plus logistic-regression
// coefficients. PredictDefault returns the probability mass of the
// "default" class.
type LogisticModel struct {
	Weights   [featureCount]float64 `json:"weights"`
	Intercept float64               `json:"intercept"`
	// Optional standardization fitted alongside the model. A zero Scale
	// entry disables scaling for that feature.
	Means  [featureCount]float64 `json:"means"`
	Scales [featureCount]float64 `json:"scales"`
}

// LoadModel reads a serialized LogisticModel from path.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return &m, nil
}

// PredictDefault scores the ordered tuple (age, income, credit_score,
// past_delay, loan_usage). A trained model requires a complete feature
// vector; a missing field means the feature-engineering flags disagree
// with the model and is reported as a configuration error.
func (m *LogisticModel) PredictDefault(f domain.FeatureVector) (float64, error) {
	if !f.Complete() {
		return 0, &domain.ErrConfiguration{
			Reason: "trained predictor requires credit_score, past_delay and loan_usage; enable the feature_engineering flags",
		}
	}

	x := [featureCount]float64{
		f.Age,
		f.Income,
		float64(*f.CreditScore),
		float64(*f.PastDelay),
		*f.LoanUsage,
	}

	z := m.Intercept
	for i, v := range x {
		if m.Scales[i] != 0 {
			v = (v - m.Means[i]) / m.Scales[i]
		}
		z += m.Weights[i] * v
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// FallbackPredictor is the explicit placeholder policy for when no trained
// model is available: a uniform sample in [0, 0.5). Not a real estimate.
type FallbackPredictor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackPredictor creates the uniform-random fallback.
func NewFallbackPredictor(rng *rand.Rand) *FallbackPredictor {
	return &FallbackPredictor{rng: rng}
}

// PredictDefault ignores the features entirely.
func (p *FallbackPredictor) PredictDefault(_ domain.FeatureVector) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() * 0.5, nil
}

// NewPredictor loads the trained model from cfg.Path, falling back to the
// uniform-random predictor when permitted. A missing or unreadable model
// with the fallback disallowed is fatal, as is a trained model paired with
// disabled feature simulation.
func NewPredictor(cfg config.ModelConfig, features config.FeatureConfig, rng *rand.Rand, logger *zap.Logger) (port.Predictor, error) {
	model, err := LoadModel(cfg.Path)
	if err != nil {
		if !cfg.UseMockModelIfMissing {
			return nil, &domain.ErrConfiguration{
				Reason: fmt.Sprintf("predictor unavailable (%v) and mock model disabled", err),
			}
		}
		logger.Warn("predictor unavailable, using uniform-random fallback",
			zap.String("model_path", cfg.Path),
			zap.Error(err),
		)
		return NewFallbackPredictor(rng), nil
	}

	if !features.SimulateCreditScore || !features.SimulateDelay || !features.SimulateUsage {
		return nil, &domain.ErrConfiguration{
			Reason: "trained predictor requires all feature_engineering simulate flags enabled",
		}
	}

	logger.Info("trained predictor loaded", zap.String("model_path", cfg.Path))
	return model, nil
}
