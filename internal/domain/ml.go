package domain

import "context"

// PredictionRequest carries the features sent to the prediction service.
type PredictionRequest struct {
	CropType       string  `json:"cropType"`
	SoilMoisture   float64 `json:"soilMoisture"`
	AirTemp        float64 `json:"airTemp"`
	Humidity       float64 `json:"humidity"`
	SoilTemp       float64 `json:"soilTemp"`
	ExpectedAmount float64 `json:"expectedAmount"`
}

// PredictionResult is a successful response from the prediction service.
type PredictionResult struct {
	// Amount is the predicted payout, already validated as a finite number.
	Amount float64

	// Confidence is the service's own confidence, when it supplies one.
	Confidence *float64
}

// TrainingExample is one feature tuple submitted to the training service.
type TrainingExample struct {
	SoilMoisture   float64 `json:"soilMoisture"`
	AirTemp        float64 `json:"airTemp"`
	Humidity       float64 `json:"humidity"`
	SoilTemp       float64 `json:"soilTemp"`
	ExpectedAmount float64 `json:"expectedAmount"`
	ApprovedAmount float64 `json:"approvedAmount"`
}

// Predictor calls the external prediction service.
// The service is unreliable by design: timeouts and malformed responses are
// expected operating conditions, and callers must treat a returned error as a
// fallback branch, never as a claim-submission failure.
type Predictor interface {
	Predict(ctx context.Context, req PredictionRequest) (PredictionResult, error)
}

// Trainer calls the external model-training service with a claim batch.
type Trainer interface {
	Train(ctx context.Context, examples []TrainingExample) error
}
