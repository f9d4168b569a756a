// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openagri/fieldclaim/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// approvedVerdicts is the SQL fragment matching terminal approvals.
const approvedVerdicts = `('auto_approved', 'admin_approved')`

// rejectedVerdicts is the SQL fragment matching rejections.
const rejectedVerdicts = `('auto_rejected', 'admin_rejected')`

// SaveSensorReading stores an immutable sensor reading.
func (r *SQLRepository) SaveSensorReading(ctx context.Context, reading *domain.SensorReading) error {
	if reading.ID == "" || reading.FarmerID == "" {
		return fmt.Errorf("%w: reading id and farmer id are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO sensor_readings (
			id, farmer_id, device_id, soil_moisture, air_temp, humidity, soil_temp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		reading.ID, reading.FarmerID, reading.DeviceID,
		reading.SoilMoisture, reading.AirTemp, reading.Humidity, reading.SoilTemp,
		reading.CreatedAt,
	)
	return err
}

// GetSensorReading retrieves a reading by ID.
func (r *SQLRepository) GetSensorReading(ctx context.Context, id string) (*domain.SensorReading, error) {
	query := `
		SELECT id, farmer_id, device_id, soil_moisture, air_temp, humidity, soil_temp, created_at
		FROM sensor_readings
		WHERE id = ?
	`

	var reading domain.SensorReading
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&reading.ID, &reading.FarmerID, &reading.DeviceID,
		&reading.SoilMoisture, &reading.AirTemp, &reading.Humidity, &reading.SoilTemp,
		&reading.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &reading, nil
}

// ListSensorReadingsByFarmer retrieves a farmer's readings, newest first.
func (r *SQLRepository) ListSensorReadingsByFarmer(ctx context.Context, farmerID string) ([]*domain.SensorReading, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("%w: farmer id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, farmer_id, device_id, soil_moisture, air_temp, humidity, soil_temp, created_at
		FROM sensor_readings
		WHERE farmer_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*domain.SensorReading
	for rows.Next() {
		var reading domain.SensorReading
		if err := rows.Scan(
			&reading.ID, &reading.FarmerID, &reading.DeviceID,
			&reading.SoilMoisture, &reading.AirTemp, &reading.Humidity, &reading.SoilTemp,
			&reading.CreatedAt,
		); err != nil {
			return nil, err
		}
		readings = append(readings, &reading)
	}

	return readings, rows.Err()
}

const claimColumns = `
	id, farmer_id, crop_type, reason, expected_amount, sensor_reading_id,
	verdict, auto_verdict, confidence_score, model_confidence,
	decision_source, ml_used, approved_amount, used_for_training,
	approved_by, approved_at, history, created_at, updated_at
`

// SaveClaim stores a claim with its initial history.
func (r *SQLRepository) SaveClaim(ctx context.Context, claim *domain.Claim) error {
	if claim.ID == "" || claim.FarmerID == "" {
		return fmt.Errorf("%w: claim id and farmer id are required", ErrInvalidInput)
	}

	history, err := json.Marshal(claim.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	query := `
		INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.FarmerID, claim.CropType, claim.Reason,
		claim.ExpectedAmount, claim.SensorReadingID,
		string(claim.Verdict), string(claim.AutoVerdict),
		claim.ConfidenceScore, claim.ModelConfidence,
		string(claim.DecisionSource), boolToInt(claim.MLUsed),
		claim.ApprovedAmount, boolToInt(claim.UsedForTraining),
		claim.ApprovedBy, claim.ApprovedAt,
		string(history), claim.CreatedAt, claim.UpdatedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID.
func (r *SQLRepository) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), id)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return claim, err
}

// ListClaimsByFarmer retrieves a farmer's claims, newest first.
func (r *SQLRepository) ListClaimsByFarmer(ctx context.Context, farmerID string) ([]*domain.Claim, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("%w: farmer id is required", ErrInvalidInput)
	}

	query := `SELECT ` + claimColumns + ` FROM claims WHERE farmer_id = ? ORDER BY created_at DESC`
	return r.queryClaims(ctx, query, farmerID)
}

// ListClaims retrieves all claims, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context) ([]*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims ORDER BY created_at DESC`
	return r.queryClaims(ctx, query)
}

func (r *SQLRepository) queryClaims(ctx context.Context, query string, args ...any) ([]*domain.Claim, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// UpdateClaimDecision persists an admin override.
func (r *SQLRepository) UpdateClaimDecision(ctx context.Context, claim *domain.Claim) error {
	history, err := json.Marshal(claim.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	query := `
		UPDATE claims
		SET verdict = ?, approved_amount = ?, approved_by = ?, approved_at = ?,
		    decision_source = ?, ml_used = ?, used_for_training = ?,
		    history = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(claim.Verdict), claim.ApprovedAmount,
		claim.ApprovedBy, claim.ApprovedAt,
		string(claim.DecisionSource), boolToInt(claim.MLUsed),
		boolToInt(claim.UsedForTraining),
		string(history), claim.UpdatedAt,
		claim.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListTrainableClaims returns approved claims not yet used for training,
// with a positive payout and a sensor reference, joined with their
// readings, oldest first.
func (r *SQLRepository) ListTrainableClaims(ctx context.Context, limit int) ([]*domain.TrainableClaim, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	query := `
		SELECT c.id, c.farmer_id, c.crop_type, c.reason, c.expected_amount, c.sensor_reading_id,
		       c.verdict, c.auto_verdict, c.confidence_score, c.model_confidence,
		       c.decision_source, c.ml_used, c.approved_amount, c.used_for_training,
		       c.approved_by, c.approved_at, c.history, c.created_at, c.updated_at,
		       s.id, s.farmer_id, s.device_id, s.soil_moisture, s.air_temp, s.humidity, s.soil_temp, s.created_at
		FROM claims c
		JOIN sensor_readings s ON s.id = c.sensor_reading_id
		WHERE c.verdict IN ` + approvedVerdicts + `
		  AND c.used_for_training = 0
		  AND c.approved_amount > 0
		ORDER BY c.created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []*domain.TrainableClaim
	for rows.Next() {
		var (
			claim           domain.Claim
			reading         domain.SensorReading
			sensorReadingID sql.NullString
			confidence      sql.NullFloat64
			modelConfidence sql.NullFloat64
			mlUsed          int
			usedForTraining int
			approvedBy      sql.NullString
			approvedAt      sql.NullTime
			history         string
		)

		if err := rows.Scan(
			&claim.ID, &claim.FarmerID, &claim.CropType, &claim.Reason,
			&claim.ExpectedAmount, &sensorReadingID,
			&claim.Verdict, &claim.AutoVerdict, &confidence, &modelConfidence,
			&claim.DecisionSource, &mlUsed, &claim.ApprovedAmount, &usedForTraining,
			&approvedBy, &approvedAt, &history, &claim.CreatedAt, &claim.UpdatedAt,
			&reading.ID, &reading.FarmerID, &reading.DeviceID,
			&reading.SoilMoisture, &reading.AirTemp, &reading.Humidity, &reading.SoilTemp,
			&reading.CreatedAt,
		); err != nil {
			return nil, err
		}

		applyClaimNullables(&claim, sensorReadingID, confidence, modelConfidence, mlUsed, usedForTraining, approvedBy, approvedAt, history)
		batch = append(batch, &domain.TrainableClaim{Claim: &claim, Reading: &reading})
	}

	return batch, rows.Err()
}

// MarkClaimsTrained flips used_for_training for the batch in one statement.
func (r *SQLRepository) MarkClaimsTrained(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE claims SET used_for_training = 1, updated_at = ? WHERE id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	_, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	return err
}

// ClaimStats aggregates claim counts and payout figures.
func (r *SQLRepository) ClaimStats(ctx context.Context, maxPayout float64) (*domain.ClaimStats, error) {
	stats := &domain.ClaimStats{}

	countQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN verdict IN ` + approvedVerdicts + ` THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN verdict IN ` + rejectedVerdicts + ` THEN 1 ELSE 0 END), 0)
		FROM claims
	`
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(
		&stats.TotalClaims, &stats.Approved, &stats.Rejected,
	); err != nil {
		return nil, err
	}
	stats.Pending = stats.TotalClaims - stats.Approved - stats.Rejected

	payoutQuery := `
		SELECT COALESCE(SUM(approved_amount), 0),
		       COALESCE(AVG(approved_amount), 0),
		       COALESCE(SUM(CASE WHEN approved_amount >= ? THEN 1 ELSE 0 END), 0)
		FROM claims
		WHERE verdict IN ` + approvedVerdicts + `
	`
	if err := r.db.QueryRowContext(ctx, r.rebind(payoutQuery), maxPayout).Scan(
		&stats.TotalPayout, &stats.AvgPayout, &stats.CappedClaims,
	); err != nil {
		return nil, err
	}

	stats.TotalPayout = math.Round(stats.TotalPayout)
	stats.AvgPayout = math.Round(stats.AvgPayout)

	return stats, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for claim scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (*domain.Claim, error) {
	var (
		claim           domain.Claim
		sensorReadingID sql.NullString
		confidence      sql.NullFloat64
		modelConfidence sql.NullFloat64
		mlUsed          int
		usedForTraining int
		approvedBy      sql.NullString
		approvedAt      sql.NullTime
		history         string
	)

	if err := s.Scan(
		&claim.ID, &claim.FarmerID, &claim.CropType, &claim.Reason,
		&claim.ExpectedAmount, &sensorReadingID,
		&claim.Verdict, &claim.AutoVerdict, &confidence, &modelConfidence,
		&claim.DecisionSource, &mlUsed, &claim.ApprovedAmount, &usedForTraining,
		&approvedBy, &approvedAt, &history, &claim.CreatedAt, &claim.UpdatedAt,
	); err != nil {
		return nil, err
	}

	applyClaimNullables(&claim, sensorReadingID, confidence, modelConfidence, mlUsed, usedForTraining, approvedBy, approvedAt, history)
	return &claim, nil
}

func applyClaimNullables(claim *domain.Claim, sensorReadingID sql.NullString, confidence, modelConfidence sql.NullFloat64, mlUsed, usedForTraining int, approvedBy sql.NullString, approvedAt sql.NullTime, history string) {
	if sensorReadingID.Valid {
		claim.SensorReadingID = &sensorReadingID.String
	}
	if confidence.Valid {
		claim.ConfidenceScore = &confidence.Float64
	}
	if modelConfidence.Valid {
		claim.ModelConfidence = &modelConfidence.Float64
	}
	claim.MLUsed = mlUsed == 1
	claim.UsedForTraining = usedForTraining == 1
	if approvedBy.Valid {
		claim.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		claim.ApprovedAt = &t
	}
	if history != "" {
		json.Unmarshal([]byte(history), &claim.History)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
