package rules

import (
	"testing"

	"github.com/openagri/fieldclaim/internal/domain"
)

func testReading(soilMoisture, airTemp, humidity, soilTemp float64) *domain.SensorReading {
	return &domain.SensorReading{
		ID:           "reading-001",
		FarmerID:     "farmer-001",
		DeviceID:     "device-001",
		SoilMoisture: soilMoisture,
		AirTemp:      airTemp,
		Humidity:     humidity,
		SoilTemp:     soilTemp,
	}
}

func TestEngineEvaluate(t *testing.T) {
	engine, err := NewEngine(domain.DefaultThresholds())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	t.Run("AllViolations", func(t *testing.T) {
		// soilMoisture 10 < 30, airTemp 45 > 40, humidity 10 < 25, soilTemp 40 > 35
		a, err := engine.Evaluate(testReading(10, 45, 10, 40))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if a.Violations != 4 {
			t.Errorf("expected 4 violations, got %d", a.Violations)
		}
		if a.Borderline {
			t.Error("expected no borderline flag")
		}
	})

	t.Run("NoViolations", func(t *testing.T) {
		a, err := engine.Evaluate(testReading(50, 25, 60, 20))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if a.Violations != 0 {
			t.Errorf("expected 0 violations, got %d", a.Violations)
		}
		if a.Borderline {
			t.Error("expected no borderline flag")
		}
	})

	t.Run("BorderlineSoilMoisture", func(t *testing.T) {
		// 29 is below the 30 threshold (violation) and inside [28,32] (borderline)
		a, err := engine.Evaluate(testReading(29, 25, 60, 20))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if a.Violations != 1 {
			t.Errorf("expected 1 violation, got %d", a.Violations)
		}
		if !a.Borderline {
			t.Error("expected borderline flag for soil moisture 29")
		}
	})

	t.Run("BorderlineWithoutViolation", func(t *testing.T) {
		// 31 is inside [28,32] but not below 30
		a, err := engine.Evaluate(testReading(31, 25, 60, 20))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if a.Violations != 0 {
			t.Errorf("expected 0 violations, got %d", a.Violations)
		}
		if !a.Borderline {
			t.Error("expected borderline flag for soil moisture 31")
		}
	})

	t.Run("BandBoundsInclusive", func(t *testing.T) {
		for _, v := range []float64{28, 32} {
			a, err := engine.Evaluate(testReading(v, 25, 60, 20))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if !a.Borderline {
				t.Errorf("expected borderline flag at band bound %g", v)
			}
		}
	})

	t.Run("ThresholdBoundsExclusive", func(t *testing.T) {
		// Exactly at the limits: no violation (strict comparisons)
		a, err := engine.Evaluate(testReading(30, 40, 25, 35))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if a.Violations != 0 {
			t.Errorf("expected 0 violations at exact thresholds, got %d", a.Violations)
		}
	})

	t.Run("NilReading", func(t *testing.T) {
		a, err := engine.Evaluate(nil)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if a.Violations != 0 || a.Borderline {
			t.Errorf("expected zero assessment for nil reading, got %+v", a)
		}
	})
}

func TestEngineAlternateThresholds(t *testing.T) {
	thr := domain.Thresholds{
		SoilMoistureLow:  50,
		AirTempHigh:      30,
		HumidityLow:      40,
		SoilTempHigh:     25,
		SoilMoistureBand: domain.Band{Low: 48, High: 52},
		AirTempBand:      domain.Band{Low: 28, High: 30},
		HumidityBand:     domain.Band{Low: 38, High: 42},
		SoilTempBand:     domain.Band{Low: 23, High: 25},
	}
	engine, err := NewEngine(thr)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	// Healthy by default thresholds, three violations under the strict set
	a, err := engine.Evaluate(testReading(45, 32, 45, 26))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if a.Violations != 3 {
		t.Errorf("expected 3 violations with strict thresholds, got %d", a.Violations)
	}
}
