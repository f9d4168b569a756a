package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/openagri/fieldclaim/internal/domain"
)

type fakePredictor struct {
	result domain.PredictionResult
	err    error
	calls  int
}

func (f *fakePredictor) Predict(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResult, error) {
	f.calls++
	return f.result, f.err
}

func reading() *domain.SensorReading {
	return &domain.SensorReading{
		ID:           "reading-001",
		SoilMoisture: 10,
		AirTemp:      45,
		Humidity:     10,
		SoilTemp:     40,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestResolverBaseline(t *testing.T) {
	cfg := domain.DefaultDecisionConfig()

	t.Run("HighConfidenceFactor", func(t *testing.T) {
		r := NewResolver(cfg, nil)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     1.0,
		})
		if res.Amount != 9000 {
			t.Errorf("expected 9000, got %g", res.Amount)
		}
		if res.Source != domain.SourceRuleEngine {
			t.Errorf("expected rule engine source, got %s", res.Source)
		}
		if res.MLUsed {
			t.Error("expected MLUsed false on baseline path")
		}
		if res.ModelConfidence != nil {
			t.Error("expected nil model confidence on baseline path")
		}
	})

	t.Run("LowConfidenceFactor", func(t *testing.T) {
		r := NewResolver(cfg, nil)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     0.75,
		})
		if res.Amount != 6000 {
			t.Errorf("expected 6000, got %g", res.Amount)
		}
	})

	t.Run("HighConfidenceCutoffInclusive", func(t *testing.T) {
		r := NewResolver(cfg, nil)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     0.9,
		})
		if res.Amount != 9000 {
			t.Errorf("expected high factor at confidence 0.9, got %g", res.Amount)
		}
	})

	t.Run("NilReadingSkipsPrediction", func(t *testing.T) {
		p := &fakePredictor{result: domain.PredictionResult{Amount: 5000}}
		r := NewResolver(cfg, p)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     1.0,
		})
		if p.calls != 0 {
			t.Errorf("expected no prediction call without reading, got %d", p.calls)
		}
		if res.Amount != 9000 {
			t.Errorf("expected baseline amount, got %g", res.Amount)
		}
	})
}

func TestResolverPrediction(t *testing.T) {
	cfg := domain.DefaultDecisionConfig()

	t.Run("AdoptsPredictedAmount", func(t *testing.T) {
		p := &fakePredictor{result: domain.PredictionResult{Amount: 7500, Confidence: floatPtr(0.85)}}
		r := NewResolver(cfg, p)
		res := r.Resolve(context.Background(), Input{
			ClaimID:        "claim-001",
			ExpectedAmount: 10000,
			Confidence:     1.0,
			Reading:        reading(),
		})
		if res.Amount != 7500 {
			t.Errorf("expected 7500, got %g", res.Amount)
		}
		if res.Source != domain.SourceMLModel {
			t.Errorf("expected ml source, got %s", res.Source)
		}
		if !res.MLUsed {
			t.Error("expected MLUsed true")
		}
		if res.ModelConfidence == nil || *res.ModelConfidence != 0.85 {
			t.Errorf("expected service confidence 0.85, got %v", res.ModelConfidence)
		}
	})

	t.Run("FailureFallsBackToBaseline", func(t *testing.T) {
		p := &fakePredictor{err: errors.New("timeout")}
		r := NewResolver(cfg, p)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     1.0,
			Reading:        reading(),
		})
		if res.Amount != 9000 {
			t.Errorf("expected baseline 9000 after prediction failure, got %g", res.Amount)
		}
		if res.Source != domain.SourceRuleEngine {
			t.Errorf("expected rule engine source, got %s", res.Source)
		}
		if res.MLUsed {
			t.Error("expected MLUsed false after failure")
		}
	})

	t.Run("ClampsToExpectedAmount", func(t *testing.T) {
		p := &fakePredictor{result: domain.PredictionResult{Amount: 25000, Confidence: floatPtr(0.9)}}
		r := NewResolver(cfg, p)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     1.0,
			Reading:        reading(),
		})
		if res.Amount != 10000 {
			t.Errorf("expected clamp to expected amount 10000, got %g", res.Amount)
		}
		// Provenance still records the ML path even when clamped
		if !res.MLUsed {
			t.Error("expected MLUsed true for clamped prediction")
		}
	})

	t.Run("ClampsToMaxPayout", func(t *testing.T) {
		p := &fakePredictor{result: domain.PredictionResult{Amount: 900000, Confidence: floatPtr(0.9)}}
		r := NewResolver(cfg, p)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 800000,
			Confidence:     1.0,
			Reading:        reading(),
		})
		if res.Amount != cfg.MaxPayout {
			t.Errorf("expected clamp to max payout %g, got %g", cfg.MaxPayout, res.Amount)
		}
	})

	t.Run("RoundsToWholeUnit", func(t *testing.T) {
		p := &fakePredictor{result: domain.PredictionResult{Amount: 7500.6, Confidence: floatPtr(0.9)}}
		r := NewResolver(cfg, p)
		res := r.Resolve(context.Background(), Input{
			ExpectedAmount: 10000,
			Confidence:     1.0,
			Reading:        reading(),
		})
		if res.Amount != 7501 {
			t.Errorf("expected 7501, got %g", res.Amount)
		}
	})
}

func TestDeriveConfidence(t *testing.T) {
	cases := []struct {
		name      string
		predicted float64
		expected  float64
		want      float64
	}{
		{"CloseMatch", 9500, 10000, 0.9},
		{"ModerateGap", 8000, 10000, 0.7},
		{"LargeGap", 5000, 10000, 0.4},
		{"ZeroExpected", 5000, 0, 0.4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := deriveConfidence(tc.predicted, tc.expected)
			if got != tc.want {
				t.Errorf("deriveConfidence(%g, %g) = %g, want %g", tc.predicted, tc.expected, got, tc.want)
			}
		})
	}
}

func TestResolverDerivedConfidence(t *testing.T) {
	cfg := domain.DefaultDecisionConfig()
	// No service-supplied confidence: derived from the 5% gap
	p := &fakePredictor{result: domain.PredictionResult{Amount: 9500}}
	r := NewResolver(cfg, p)
	res := r.Resolve(context.Background(), Input{
		ExpectedAmount: 10000,
		Confidence:     1.0,
		Reading:        reading(),
	})
	if res.ModelConfidence == nil || *res.ModelConfidence != 0.9 {
		t.Errorf("expected derived confidence 0.9, got %v", res.ModelConfidence)
	}
}
