package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openagri/fieldclaim/internal/domain"
	"github.com/openagri/fieldclaim/internal/engine"
	"github.com/openagri/fieldclaim/internal/repository"
)

// analyticsCacheTTL bounds how stale the admin analytics snapshot may be.
const analyticsCacheTTL = 30 * time.Second

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	orchestrator *engine.Orchestrator
	decision     domain.DecisionConfig
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, orchestrator *engine.Orchestrator, decision domain.DecisionConfig, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		orchestrator: orchestrator,
		decision:     decision,
		version:      version,
	}
}

// SensorReadingRequest is the request body for POST /sensors.
type SensorReadingRequest struct {
	DeviceID     string  `json:"deviceId"`
	SoilMoisture float64 `json:"soilMoisture"`
	AirTemp      float64 `json:"airTemp"`
	Humidity     float64 `json:"humidity"`
	SoilTemp     float64 `json:"soilTemp"`
}

// ClaimRequest is the request body for POST /claims.
type ClaimRequest struct {
	CropType        string  `json:"cropType"`
	Reason          string  `json:"reason"`
	ExpectedAmount  float64 `json:"expectedAmount"`
	SensorReadingID *string `json:"sensorReadingId,omitempty"`
}

// OverrideRequest is the request body for PATCH /admin/claims/{id}/status.
type OverrideRequest struct {
	Status         string   `json:"status"`
	ApprovedAmount *float64 `json:"approvedAmount,omitempty"`
}

// ClaimResponse decorates a claim with its derived statuses so clients
// never have to interpret the verdict union themselves.
type ClaimResponse struct {
	*domain.Claim
	Status     string `json:"status"`
	AutoStatus string `json:"autoStatus"`
}

func toClaimResponse(c *domain.Claim) ClaimResponse {
	return ClaimResponse{Claim: c, Status: c.Status(), AutoStatus: c.AutoStatus()}
}

func toClaimResponses(claims []*domain.Claim) []ClaimResponse {
	out := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, toClaimResponse(c))
	}
	return out
}

// CreateSensorReading handles POST /sensors.
func (h *Handler) CreateSensorReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmerID := GetFarmerID(ctx)

	var req SensorReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "deviceId is required",
		})
		return
	}

	reading := &domain.SensorReading{
		ID:           uuid.New().String(),
		FarmerID:     farmerID,
		DeviceID:     req.DeviceID,
		SoilMoisture: req.SoilMoisture,
		AirTemp:      req.AirTemp,
		Humidity:     req.Humidity,
		SoilTemp:     req.SoilTemp,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.repo.SaveSensorReading(ctx, reading); err != nil {
		slog.Error("failed to save sensor reading", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save sensor reading",
		})
		return
	}

	writeJSON(w, http.StatusCreated, reading)
}

// ListSensorReadings handles GET /sensors.
func (h *Handler) ListSensorReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmerID := GetFarmerID(ctx)

	readings, err := h.repo.ListSensorReadingsByFarmer(ctx, farmerID)
	if err != nil {
		slog.Error("failed to list sensor readings", "farmer_id", farmerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list sensor readings",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readings": readings,
		"count":    len(readings),
	})
}

// GetSensorReading handles GET /sensors/{id}.
func (h *Handler) GetSensorReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmerID := GetFarmerID(ctx)
	readingID := chi.URLParam(r, "id")

	reading, err := h.repo.GetSensorReading(ctx, readingID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "sensor reading not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get sensor reading", "id", readingID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get sensor reading",
		})
		return
	}

	if reading.FarmerID != farmerID {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "sensor reading belongs to another farmer",
		})
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// SubmitClaim handles POST /claims. The decision happens synchronously;
// the response carries the verdict.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmerID := GetFarmerID(ctx)

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	claim, err := h.orchestrator.Submit(ctx, engine.SubmitInput{
		FarmerID:        farmerID,
		CropType:        req.CropType,
		Reason:          req.Reason,
		ExpectedAmount:  req.ExpectedAmount,
		SensorReadingID: req.SensorReadingID,
	})
	if err != nil {
		h.writeClaimError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClaimResponse(claim))
}

// ListClaims handles GET /claims, scoped to the calling farmer.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmerID := GetFarmerID(ctx)

	claims, err := h.repo.ListClaimsByFarmer(ctx, farmerID)
	if err != nil {
		slog.Error("failed to list claims", "farmer_id", farmerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": toClaimResponses(claims),
		"count":  len(claims),
	})
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmerID := GetFarmerID(ctx)
	claimID := chi.URLParam(r, "id")

	claim, err := h.repo.GetClaim(ctx, claimID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get claim", "id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get claim",
		})
		return
	}

	if claim.FarmerID != farmerID {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "claim belongs to another farmer",
		})
		return
	}

	writeJSON(w, http.StatusOK, toClaimResponse(claim))
}

// AdminListClaims handles GET /admin/claims. Supports an optional
// ?status= filter (pending|approved|rejected).
func (h *Handler) AdminListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := h.repo.ListClaims(ctx)
	if err != nil {
		slog.Error("failed to list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := claims[:0]
		for _, c := range claims {
			if c.Status() == status {
				filtered = append(filtered, c)
			}
		}
		claims = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": toClaimResponses(claims),
		"count":  len(claims),
	})
}

// AdminOverrideClaim handles PATCH /admin/claims/{id}/status.
func (h *Handler) AdminOverrideClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := GetActorID(ctx)
	claimID := chi.URLParam(r, "id")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	claim, err := h.orchestrator.Override(ctx, engine.OverrideInput{
		ClaimID:      claimID,
		TargetStatus: req.Status,
		Amount:       req.ApprovedAmount,
		ActorID:      actorID,
	})
	if err != nil {
		h.writeClaimError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimResponse(claim))
}

// AdminAnalytics handles GET /admin/analytics. The snapshot is cached
// briefly; analytics tolerate slight staleness.
func (h *Handler) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, "analytics"); err == nil && cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	stats, err := h.repo.ClaimStats(ctx, h.decision.MaxPayout)
	if err != nil {
		slog.Error("failed to compute claim stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute analytics",
		})
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"stats":     stats,
		"maxPayout": h.decision.MaxPayout,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode analytics",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, "analytics", body, analyticsCacheTTL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeClaimError maps pipeline errors to HTTP status codes.
func (h *Handler) writeClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation),
		errors.Is(err, engine.ErrInvalidStatus),
		errors.Is(err, engine.ErrAmountRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

	case errors.Is(err, engine.ErrAlreadyApproved):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})

	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})

	default:
		slog.Error("claim operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
