package repository

// Schema definitions for the Fieldclaim database.
// Compatible with both SQLite and PostgreSQL.

const schemaSensorReadings = `
CREATE TABLE IF NOT EXISTS sensor_readings (
    id TEXT PRIMARY KEY,
    farmer_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    soil_moisture REAL NOT NULL,
    air_temp REAL NOT NULL,
    humidity REAL NOT NULL,
    soil_temp REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sensor_readings_farmer ON sensor_readings(farmer_id);
CREATE INDEX IF NOT EXISTS idx_sensor_readings_created ON sensor_readings(farmer_id, created_at);
`

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    farmer_id TEXT NOT NULL,
    crop_type TEXT NOT NULL,
    reason TEXT NOT NULL,
    expected_amount REAL NOT NULL,
    sensor_reading_id TEXT,
    verdict TEXT NOT NULL,
    auto_verdict TEXT NOT NULL,
    confidence_score REAL,
    model_confidence REAL,
    decision_source TEXT NOT NULL,
    ml_used INTEGER NOT NULL DEFAULT 0,
    approved_amount REAL NOT NULL DEFAULT 0,
    used_for_training INTEGER NOT NULL DEFAULT 0,
    approved_by TEXT,
    approved_at TIMESTAMP,
    history TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_farmer ON claims(farmer_id);
CREATE INDEX IF NOT EXISTS idx_claims_verdict ON claims(verdict);
CREATE INDEX IF NOT EXISTS idx_claims_trainable ON claims(verdict, used_for_training);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSensorReadings,
		schemaClaims,
	}
}
