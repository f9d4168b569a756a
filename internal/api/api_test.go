package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/openagri/fieldclaim/internal/cache"
	"github.com/openagri/fieldclaim/internal/domain"
	"github.com/openagri/fieldclaim/internal/engine"
	"github.com/openagri/fieldclaim/internal/payout"
	"github.com/openagri/fieldclaim/internal/repository"
	"github.com/openagri/fieldclaim/internal/rules"
)

// createTestServer wires a server on SQLite with no bus and no predictor.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	decision := domain.DefaultDecisionConfig()
	ruleEngine, err := rules.NewEngine(decision.Thresholds)
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}
	scorer := rules.NewScorer(decision)
	resolver := payout.NewResolver(decision, nil)
	orchestrator := engine.New(repo, nil, ruleEngine, scorer, resolver, decision)

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, cache.NewLRUCache(100), orchestrator, decision, "test-v1")
}

func doRequest(t *testing.T, server *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func farmerHeaders(id string) map[string]string {
	return map[string]string{FarmerIDHeader: id}
}

func adminHeaders(id string) map[string]string {
	return map[string]string{ActorRoleHeader: "admin", ActorIDHeader: id}
}

func createReading(t *testing.T, server *Server, farmerID string, req SensorReadingRequest) string {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/sensors", req, farmerHeaders(farmerID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating reading, got %d: %s", rr.Code, rr.Body.String())
	}
	var reading domain.SensorReading
	if err := json.Unmarshal(rr.Body.Bytes(), &reading); err != nil {
		t.Fatalf("failed to decode reading: %v", err)
	}
	return reading.ID
}

func stressedSensorRequest() SensorReadingRequest {
	return SensorReadingRequest{
		DeviceID:     "device-001",
		SoilMoisture: 10,
		AirTemp:      45,
		Humidity:     10,
		SoilTemp:     40,
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/ready", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestFarmerIdentityRequired(t *testing.T) {
	server := createTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/claims", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without X-Farmer-ID, got %d", rr.Code)
	}
}

func TestSensorEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		id := createReading(t, server, "farmer-001", stressedSensorRequest())

		rr := doRequest(t, server, http.MethodGet, "/sensors/"+id, nil, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("OtherFarmerForbidden", func(t *testing.T) {
		id := createReading(t, server, "farmer-001", stressedSensorRequest())

		rr := doRequest(t, server, http.MethodGet, "/sensors/"+id, nil, farmerHeaders("farmer-002"))
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/sensors/nonexistent", nil, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("MissingDeviceID", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/sensors", SensorReadingRequest{}, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestClaimEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("SubmitAutoApproved", func(t *testing.T) {
		readingID := createReading(t, server, "farmer-001", stressedSensorRequest())

		rr := doRequest(t, server, http.MethodPost, "/claims", ClaimRequest{
			CropType:        "wheat",
			Reason:          "drought",
			ExpectedAmount:  10000,
			SensorReadingID: &readingID,
		}, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ClaimResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode claim: %v", err)
		}
		if resp.Status != domain.StatusApproved {
			t.Errorf("expected approved, got %s", resp.Status)
		}
		if resp.AutoStatus != domain.AutoStatusApproved {
			t.Errorf("expected auto status approved, got %s", resp.AutoStatus)
		}
		if resp.ApprovedAmount != 9000 {
			t.Errorf("expected approved amount 9000, got %g", resp.ApprovedAmount)
		}
	})

	t.Run("SubmitWithoutReadingPending", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/claims", ClaimRequest{
			CropType:       "corn",
			Reason:         "flood",
			ExpectedAmount: 5000,
		}, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ClaimResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != domain.StatusPending {
			t.Errorf("expected pending, got %s", resp.Status)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/claims", ClaimRequest{
			CropType: "wheat",
		}, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("UnknownReadingNotFound", func(t *testing.T) {
		missing := "nonexistent"
		rr := doRequest(t, server, http.MethodPost, "/claims", ClaimRequest{
			CropType:        "wheat",
			Reason:          "drought",
			ExpectedAmount:  1000,
			SensorReadingID: &missing,
		}, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("GetOwnClaim", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/claims", ClaimRequest{
			CropType:       "rice",
			Reason:         "hail",
			ExpectedAmount: 2000,
		}, farmerHeaders("farmer-003"))
		var created ClaimResponse
		json.Unmarshal(rr.Body.Bytes(), &created)

		rr = doRequest(t, server, http.MethodGet, "/claims/"+created.ID, nil, farmerHeaders("farmer-003"))
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}

		rr = doRequest(t, server, http.MethodGet, "/claims/"+created.ID, nil, farmerHeaders("farmer-004"))
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403 for other farmer, got %d", rr.Code)
		}
	})

	t.Run("ListOwnClaims", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/claims", nil, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp struct {
			Claims []ClaimResponse `json:"claims"`
			Count  int             `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count < 2 {
			t.Errorf("expected at least 2 claims for farmer-001, got %d", resp.Count)
		}
	})
}

func TestAdminEndpoints(t *testing.T) {
	server := createTestServer(t)

	submitPending := func(t *testing.T) ClaimResponse {
		t.Helper()
		rr := doRequest(t, server, http.MethodPost, "/claims", ClaimRequest{
			CropType:       "wheat",
			Reason:         "drought",
			ExpectedAmount: 10000,
		}, farmerHeaders("farmer-001"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp ClaimResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		return resp
	}

	t.Run("RoleRequired", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/admin/claims", nil, nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403 without role, got %d", rr.Code)
		}

		rr = doRequest(t, server, http.MethodGet, "/admin/claims", nil, map[string]string{
			ActorRoleHeader: "farmer",
			ActorIDHeader:   "user-001",
		})
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403 for non-admin role, got %d", rr.Code)
		}
	})

	t.Run("Override", func(t *testing.T) {
		claim := submitPending(t)

		amount := 8000.0
		rr := doRequest(t, server, http.MethodPatch, "/admin/claims/"+claim.ID+"/status", OverrideRequest{
			Status:         domain.StatusApproved,
			ApprovedAmount: &amount,
		}, adminHeaders("admin-001"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ClaimResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != domain.StatusApproved {
			t.Errorf("expected approved, got %s", resp.Status)
		}
		if resp.ApprovedAmount != 8000 {
			t.Errorf("expected 8000, got %g", resp.ApprovedAmount)
		}
		if resp.ApprovedBy == nil || *resp.ApprovedBy != "admin-001" {
			t.Errorf("expected approvedBy admin-001, got %v", resp.ApprovedBy)
		}

		// Approved is terminal: a second override conflicts
		rr = doRequest(t, server, http.MethodPatch, "/admin/claims/"+claim.ID+"/status", OverrideRequest{
			Status: domain.StatusRejected,
		}, adminHeaders("admin-001"))
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409 re-deciding approved claim, got %d", rr.Code)
		}
	})

	t.Run("OverrideAmountRequired", func(t *testing.T) {
		claim := submitPending(t)

		rr := doRequest(t, server, http.MethodPatch, "/admin/claims/"+claim.ID+"/status", OverrideRequest{
			Status: domain.StatusApproved,
		}, adminHeaders("admin-001"))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without amount, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("OverrideInvalidStatus", func(t *testing.T) {
		claim := submitPending(t)

		rr := doRequest(t, server, http.MethodPatch, "/admin/claims/"+claim.ID+"/status", OverrideRequest{
			Status: "escalated",
		}, adminHeaders("admin-001"))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for invalid status, got %d", rr.Code)
		}
	})

	t.Run("OverrideMissingClaim", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPatch, "/admin/claims/nonexistent/status", OverrideRequest{
			Status: domain.StatusRejected,
		}, adminHeaders("admin-001"))
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("ListWithStatusFilter", func(t *testing.T) {
		submitPending(t)

		rr := doRequest(t, server, http.MethodGet, "/admin/claims?status=pending", nil, adminHeaders("admin-001"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp struct {
			Claims []ClaimResponse `json:"claims"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Claims) == 0 {
			t.Error("expected pending claims in filtered list")
		}
		for _, c := range resp.Claims {
			if c.Status != domain.StatusPending {
				t.Errorf("expected only pending claims, got %s", c.Status)
			}
		}
	})

	t.Run("Analytics", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/admin/analytics", nil, adminHeaders("admin-001"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Stats     domain.ClaimStats `json:"stats"`
			MaxPayout float64           `json:"maxPayout"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode analytics: %v", err)
		}
		if resp.MaxPayout != 500000 {
			t.Errorf("expected maxPayout 500000, got %g", resp.MaxPayout)
		}
		if resp.Stats.TotalClaims == 0 {
			t.Error("expected non-zero claim count")
		}
	})
}
