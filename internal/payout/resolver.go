// Package payout computes the approved amount for auto-approved claims.
package payout

import (
	"context"
	"log/slog"
	"math"

	"github.com/openagri/fieldclaim/internal/domain"
)

// Resolution is the outcome of payout resolution. It is always produced:
// a prediction-service failure is a branch, not an error.
type Resolution struct {
	// Amount is the final approved amount, clamped and rounded to the
	// nearest whole currency unit.
	Amount float64

	// Source records which component produced the amount.
	Source domain.DecisionSource

	// MLUsed is true only when the prediction service's amount was adopted.
	MLUsed bool

	// ModelConfidence is the service's confidence, or one derived from the
	// predicted/expected gap. Diagnostic, distinct from the claim's own
	// confidence score. Nil on the rule-engine path.
	ModelConfidence *float64
}

// Input carries everything resolution needs for one approved claim.
type Input struct {
	ClaimID        string
	CropType       string
	ExpectedAmount float64
	Confidence     float64

	// Reading is the sensor reading behind the approval; nil disables the
	// prediction attempt.
	Reading *domain.SensorReading
}

// Resolver blends the rule-based payout baseline with the external
// prediction service under hard safety bounds.
type Resolver struct {
	cfg       domain.DecisionConfig
	predictor domain.Predictor
}

// NewResolver creates a resolver. predictor may be nil, which forces the
// rule-based baseline.
func NewResolver(cfg domain.DecisionConfig, predictor domain.Predictor) *Resolver {
	return &Resolver{cfg: cfg, predictor: predictor}
}

// Resolve computes the bounded approved amount for an auto-approved claim.
// It never fails: any prediction-service problem falls back to the
// rule-based baseline and is logged for reconciliation.
func (r *Resolver) Resolve(ctx context.Context, in Input) Resolution {
	factor := r.cfg.LowConfidenceFactor
	if in.Confidence >= r.cfg.HighConfidence {
		factor = r.cfg.HighConfidenceFactor
	}

	res := Resolution{
		Amount: factor * in.ExpectedAmount,
		Source: domain.SourceRuleEngine,
	}

	if r.predictor != nil && in.Reading != nil {
		req := domain.PredictionRequest{
			CropType:       in.CropType,
			SoilMoisture:   in.Reading.SoilMoisture,
			AirTemp:        in.Reading.AirTemp,
			Humidity:       in.Reading.Humidity,
			SoilTemp:       in.Reading.SoilTemp,
			ExpectedAmount: in.ExpectedAmount,
		}

		prediction, err := r.predictor.Predict(ctx, req)
		if err != nil {
			slog.Warn("prediction failed, using rule-based amount",
				"claim_id", in.ClaimID,
				"crop_type", in.CropType,
				"expected_amount", in.ExpectedAmount,
				"error", err,
			)
		} else {
			res.Amount = prediction.Amount
			res.Source = domain.SourceMLModel
			res.MLUsed = true

			confidence := prediction.Confidence
			if confidence == nil {
				derived := deriveConfidence(prediction.Amount, in.ExpectedAmount)
				confidence = &derived
			}
			res.ModelConfidence = confidence
		}
	}

	// Safety clamp, then round to the nearest whole currency unit.
	res.Amount = math.Min(res.Amount, in.ExpectedAmount)
	res.Amount = math.Min(res.Amount, r.cfg.MaxPayout)
	res.Amount = math.Round(res.Amount)

	return res
}

// deriveConfidence maps the relative gap between predicted and expected
// amounts to a coarse confidence when the service supplies none.
func deriveConfidence(predicted, expected float64) float64 {
	if expected == 0 {
		return 0.4
	}
	ratio := math.Abs(predicted-expected) / expected
	switch {
	case ratio < 0.15:
		return 0.9
	case ratio < 0.30:
		return 0.7
	default:
		return 0.4
	}
}
