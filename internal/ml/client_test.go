package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openagri/fieldclaim/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(domain.MLConfig{
		BaseURL:        url,
		PredictTimeout: 2 * time.Second,
		TrainTimeout:   2 * time.Second,
	})
}

func TestClientPredict(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/predict" {
				t.Errorf("expected /predict, got %s", r.URL.Path)
			}
			var req domain.PredictionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"predicted_amount": 7500.0,
				"confidence":       0.85,
			})
		}))
		defer srv.Close()

		result, err := newTestClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{
			CropType:       "wheat",
			ExpectedAmount: 10000,
		})
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if result.Amount != 7500 {
			t.Errorf("expected 7500, got %g", result.Amount)
		}
		if result.Confidence == nil || *result.Confidence != 0.85 {
			t.Errorf("expected confidence 0.85, got %v", result.Confidence)
		}
	})

	t.Run("LegacyFieldName", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"approvedAmount": 6200.0})
		}))
		defer srv.Close()

		result, err := newTestClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if result.Amount != 6200 {
			t.Errorf("expected 6200, got %g", result.Amount)
		}
		if result.Confidence != nil {
			t.Errorf("expected nil confidence, got %v", *result.Confidence)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := NewClient(domain.MLConfig{
			BaseURL:        srv.URL,
			PredictTimeout: 20 * time.Millisecond,
			TrainTimeout:   time.Second,
		})
		_, err := client.Predict(context.Background(), domain.PredictionRequest{})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable on timeout, got %v", err)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})
		if !errors.Is(err, ErrInvalidPrediction) {
			t.Errorf("expected ErrInvalidPrediction, got %v", err)
		}
	})

	t.Run("MissingAmount", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"confidence": 0.9})
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})
		if !errors.Is(err, ErrInvalidPrediction) {
			t.Errorf("expected ErrInvalidPrediction, got %v", err)
		}
	})

	t.Run("NonFiniteAmount", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// NaN cannot be encoded by encoding/json; hand-write the body
			w.Write([]byte(`{"predicted_amount": 1e999}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})
		if !errors.Is(err, ErrInvalidPrediction) {
			t.Errorf("expected ErrInvalidPrediction for non-finite amount, got %v", err)
		}
	})
}

func TestClientTrain(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var received struct {
			Claims []domain.TrainingExample `json:"claims"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/train" {
				t.Errorf("expected /train, got %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		examples := []domain.TrainingExample{
			{SoilMoisture: 10, AirTemp: 45, Humidity: 10, SoilTemp: 40, ExpectedAmount: 10000, ApprovedAmount: 9000},
			{SoilMoisture: 12, AirTemp: 43, Humidity: 11, SoilTemp: 38, ExpectedAmount: 8000, ApprovedAmount: 7200},
			{SoilMoisture: 14, AirTemp: 42, Humidity: 12, SoilTemp: 37, ExpectedAmount: 5000, ApprovedAmount: 4500},
		}
		if err := newTestClient(srv.URL).Train(context.Background(), examples); err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		if len(received.Claims) != 3 {
			t.Errorf("expected 3 examples in payload, got %d", len(received.Claims))
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).Train(context.Background(), nil)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})
}
