// Package ml provides HTTP clients for the external prediction and
// model-training services. Both services are treated as unreliable:
// every call is timeout-bounded and failures are typed, expected results
// rather than exceptional conditions.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/openagri/fieldclaim/internal/domain"
)

var (
	// ErrUnavailable covers timeouts, connection failures, and non-2xx
	// responses from the model service.
	ErrUnavailable = errors.New("model service unavailable")

	// ErrInvalidPrediction covers responses that arrive but carry no
	// usable numeric amount (missing field, wrong type, NaN, Inf).
	ErrInvalidPrediction = errors.New("invalid prediction response")
)

// Client talks to the model service over HTTP.
// It implements both domain.Predictor and domain.Trainer.
type Client struct {
	baseURL    string
	predictCli *http.Client
	trainCli   *http.Client
}

// NewClient creates a model-service client with per-call timeouts.
func NewClient(cfg domain.MLConfig) *Client {
	predictTimeout := cfg.PredictTimeout
	if predictTimeout <= 0 {
		predictTimeout = 5 * time.Second
	}
	trainTimeout := cfg.TrainTimeout
	if trainTimeout <= 0 {
		trainTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		predictCli: &http.Client{Timeout: predictTimeout},
		trainCli:   &http.Client{Timeout: trainTimeout},
	}
}

// predictResponse tolerates both field names the model service has shipped
// for the predicted amount.
type predictResponse struct {
	PredictedAmount *float64 `json:"predicted_amount"`
	ApprovedAmount  *float64 `json:"approvedAmount"`
	Confidence      *float64 `json:"confidence"`
}

// Predict requests a payout prediction for one claim.
func (c *Client) Predict(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.predictCli.Do(httpReq)
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return domain.PredictionResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}

	amount := pr.PredictedAmount
	if amount == nil {
		amount = pr.ApprovedAmount
	}
	if amount == nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: missing predicted amount", ErrInvalidPrediction)
	}
	if math.IsNaN(*amount) || math.IsInf(*amount, 0) {
		return domain.PredictionResult{}, fmt.Errorf("%w: non-finite predicted amount", ErrInvalidPrediction)
	}

	return domain.PredictionResult{Amount: *amount, Confidence: pr.Confidence}, nil
}

type trainRequest struct {
	Claims []domain.TrainingExample `json:"claims"`
}

// Train submits a batch of training examples.
func (c *Client) Train(ctx context.Context, examples []domain.TrainingExample) error {
	body, err := json.Marshal(trainRequest{Claims: examples})
	if err != nil {
		return fmt.Errorf("failed to marshal training payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/train", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.trainCli.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return nil
}
