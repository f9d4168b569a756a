// Benchmark tool for load-testing the Fieldclaim claim pipeline.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -claims 1000
//
// This tool:
//   1. Creates a sensor reading per simulated farmer
//   2. Submits claims referencing those readings concurrently
//   3. Tallies the verdict distribution and latency percentiles
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SensorRequest mirrors the POST /sensors body.
type SensorRequest struct {
	DeviceID     string  `json:"deviceId"`
	SoilMoisture float64 `json:"soilMoisture"`
	AirTemp      float64 `json:"airTemp"`
	Humidity     float64 `json:"humidity"`
	SoilTemp     float64 `json:"soilTemp"`
}

// ClaimRequest mirrors the POST /claims body.
type ClaimRequest struct {
	CropType        string  `json:"cropType"`
	Reason          string  `json:"reason"`
	ExpectedAmount  float64 `json:"expectedAmount"`
	SensorReadingID *string `json:"sensorReadingId,omitempty"`
}

// ClaimResponse is the subset of the claim response the tool reads.
type ClaimResponse struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	AutoStatus      string   `json:"autoStatus"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	ApprovedAmount  float64  `json:"approvedAmount"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Approved int64
	Rejected int64
	Pending  int64
	Errors   int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) record(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

func (m *Metrics) percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

var cropTypes = []string{"wheat", "corn", "rice", "soybean", "cotton"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Fieldclaim base URL")
	claims := flag.Int("claims", 1000, "Number of claims to submit")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	stressed := flag.Float64("stressed", 0.5, "Fraction of readings with stressed field conditions (0.0-1.0)")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           FIELDCLAIM BENCHMARK - Claim Submission             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nURL:       %s\n", *baseURL)
	fmt.Printf("Claims:    %d\n", *claims)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Printf("Stressed:  %.2f\n\n", *stressed)

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Fieldclaim not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run cmd/fieldclaim/main.go")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	metrics := &Metrics{}
	jobs := make(chan int, *claims)
	for i := 0; i < *claims; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			for i := range jobs {
				submitOne(client, *baseURL, rng, *stressed, i, metrics)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := metrics.Approved + metrics.Rejected + metrics.Pending
	fmt.Println("Results:")
	fmt.Printf("  Approved:  %d\n", metrics.Approved)
	fmt.Printf("  Rejected:  %d\n", metrics.Rejected)
	fmt.Printf("  Pending:   %d\n", metrics.Pending)
	fmt.Printf("  Errors:    %d\n", metrics.Errors)
	fmt.Printf("  Total:     %d in %s (%.1f claims/sec)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Println("\nLatency:")
	fmt.Printf("  p50:  %s\n", metrics.percentile(0.50).Round(time.Millisecond))
	fmt.Printf("  p95:  %s\n", metrics.percentile(0.95).Round(time.Millisecond))
	fmt.Printf("  p99:  %s\n", metrics.percentile(0.99).Round(time.Millisecond))
}

func submitOne(client *http.Client, baseURL string, rng *rand.Rand, stressed float64, i int, metrics *Metrics) {
	farmerID := fmt.Sprintf("bench-farmer-%04d", i%100)

	reading := healthyReading(rng)
	if rng.Float64() < stressed {
		reading = stressedReading(rng)
	}

	readingID, err := postJSON(client, baseURL+"/sensors", farmerID, reading)
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	claim := ClaimRequest{
		CropType:        cropTypes[rng.Intn(len(cropTypes))],
		Reason:          "benchmark drought damage",
		ExpectedAmount:  1000 + rng.Float64()*99000,
		SensorReadingID: &readingID,
	}

	reqStart := time.Now()
	body, _ := json.Marshal(claim)
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/claims", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Farmer-ID", farmerID)

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer resp.Body.Close()
	metrics.record(time.Since(reqStart))

	if resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	var cr ClaimResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	switch cr.Status {
	case "approved":
		atomic.AddInt64(&metrics.Approved, 1)
	case "rejected":
		atomic.AddInt64(&metrics.Rejected, 1)
	default:
		atomic.AddInt64(&metrics.Pending, 1)
	}
}

// healthyReading produces values well clear of every threshold and band.
func healthyReading(rng *rand.Rand) SensorRequest {
	return SensorRequest{
		DeviceID:     fmt.Sprintf("bench-device-%02d", rng.Intn(20)),
		SoilMoisture: 45 + rng.Float64()*20,
		AirTemp:      20 + rng.Float64()*10,
		Humidity:     50 + rng.Float64()*30,
		SoilTemp:     18 + rng.Float64()*8,
	}
}

// stressedReading breaches all four thresholds, which auto-approves.
func stressedReading(rng *rand.Rand) SensorRequest {
	return SensorRequest{
		DeviceID:     fmt.Sprintf("bench-device-%02d", rng.Intn(20)),
		SoilMoisture: 5 + rng.Float64()*15,
		AirTemp:      42 + rng.Float64()*8,
		Humidity:     5 + rng.Float64()*12,
		SoilTemp:     37 + rng.Float64()*8,
	}
}

func postJSON(client *http.Client, url, farmerID string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Farmer-ID", farmerID)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}
