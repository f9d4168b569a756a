package domain

import (
	"context"
	"time"
)

// TrainableClaim pairs an approved claim with the sensor reading that
// informed it, ready to be turned into a training example.
type TrainableClaim struct {
	Claim   *Claim
	Reading *SensorReading
}

// Repository defines the persistence surface the decision engine needs.
type Repository interface {
	// Sensor reading operations
	SaveSensorReading(ctx context.Context, reading *SensorReading) error
	GetSensorReading(ctx context.Context, id string) (*SensorReading, error)
	ListSensorReadingsByFarmer(ctx context.Context, farmerID string) ([]*SensorReading, error)

	// Claim operations
	SaveClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, id string) (*Claim, error)
	ListClaimsByFarmer(ctx context.Context, farmerID string) ([]*Claim, error)
	ListClaims(ctx context.Context) ([]*Claim, error)

	// UpdateClaimDecision persists an admin override: verdict, amounts,
	// audit fields, and the appended history entry.
	UpdateClaimDecision(ctx context.Context, claim *Claim) error

	// ListTrainableClaims returns approved claims not yet used for
	// training, with a positive approved amount and a sensor reference,
	// joined with their readings, up to limit.
	ListTrainableClaims(ctx context.Context, limit int) ([]*TrainableClaim, error)

	// MarkClaimsTrained flips usedForTraining for the given claim ids in
	// a single statement. The flag never reverts.
	MarkClaimsTrained(ctx context.Context, ids []string) error

	// ClaimStats aggregates counts and payout figures for analytics.
	ClaimStats(ctx context.Context, maxPayout float64) (*ClaimStats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
