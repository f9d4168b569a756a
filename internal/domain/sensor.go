package domain

import "time"

// SensorReading is an environmental snapshot submitted by a farmer's field
// device. Readings are immutable once created; one reading logically informs
// at most one claim decision.
type SensorReading struct {
	ID       string `json:"id"`
	FarmerID string `json:"farmerId"`
	DeviceID string `json:"deviceId"`

	SoilMoisture float64 `json:"soilMoisture"`
	AirTemp      float64 `json:"airTemp"`
	Humidity     float64 `json:"humidity"`
	SoilTemp     float64 `json:"soilTemp"`

	CreatedAt time.Time `json:"createdAt"`
}

// Assessment is the Threshold Evaluator's output for one reading.
type Assessment struct {
	// Violations counts hard threshold breaches, 0..4.
	Violations int `json:"violations"`

	// Borderline is set when any metric lands inside its borderline band,
	// independent of whether it also breached its threshold.
	Borderline bool `json:"borderline"`
}
