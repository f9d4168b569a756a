package domain

import "time"

// Config holds the complete Fieldclaim configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backing services are used
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	ML         MLConfig         `json:"ml"`

	// Decision engine constants
	Decision DecisionConfig `json:"decision"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// MLConfig holds the external model-service endpoints and timeouts.
// Both calls are bounded so a dead service can never stall submission.
type MLConfig struct {
	BaseURL        string        `json:"baseUrl"`
	PredictTimeout time.Duration `json:"predictTimeout"`
	TrainTimeout   time.Duration `json:"trainTimeout"`
}

// Band is an inclusive value range used for borderline detection.
type Band struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies inside the band, bounds inclusive.
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Thresholds are the fixed sensor limits the rule engine evaluates against.
// They are business constants, immutable after construction; the struct
// exists so tests can evaluate with alternate sets.
type Thresholds struct {
	SoilMoistureLow float64 `json:"soilMoistureLow"`
	AirTempHigh     float64 `json:"airTempHigh"`
	HumidityLow     float64 `json:"humidityLow"`
	SoilTempHigh    float64 `json:"soilTempHigh"`

	SoilMoistureBand Band `json:"soilMoistureBand"`
	AirTempBand      Band `json:"airTempBand"`
	HumidityBand     Band `json:"humidityBand"`
	SoilTempBand     Band `json:"soilTempBand"`
}

// DefaultThresholds returns the production threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SoilMoistureLow:  30,
		AirTempHigh:      40,
		HumidityLow:      25,
		SoilTempHigh:     35,
		SoilMoistureBand: Band{Low: 28, High: 32},
		AirTempBand:      Band{Low: 38, High: 40},
		HumidityBand:     Band{Low: 23, High: 27},
		SoilTempBand:     Band{Low: 33, High: 35},
	}
}

// DecisionConfig holds the decision-engine business constants.
type DecisionConfig struct {
	Thresholds Thresholds `json:"thresholds"`

	// MaxPayout is the global payout cap in whole currency units.
	MaxPayout float64 `json:"maxPayout"`

	// ApproveConfidence is the minimum confidence for auto-approval.
	ApproveConfidence float64 `json:"approveConfidence"`

	// HighConfidence separates the two rule-based payout factors.
	HighConfidence       float64 `json:"highConfidence"`
	HighConfidenceFactor float64 `json:"highConfidenceFactor"`
	LowConfidenceFactor  float64 `json:"lowConfidenceFactor"`

	// TrainingBatchSize is how many approved claims a retraining round needs.
	TrainingBatchSize int `json:"trainingBatchSize"`
}

// DefaultDecisionConfig returns the production decision constants.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		Thresholds:           DefaultThresholds(),
		MaxPayout:            500000,
		ApproveConfidence:    0.75,
		HighConfidence:       0.9,
		HighConfidenceFactor: 0.9,
		LowConfidenceFactor:  0.6,
		TrainingBatchSize:    3,
	}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process channels + LRU cache.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fieldclaim.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		ML: MLConfig{
			BaseURL:        "http://127.0.0.1:5000",
			PredictTimeout: 5 * time.Second,
			TrainTimeout:   10 * time.Second,
		},
		Decision: DefaultDecisionConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fieldclaim",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fieldclaim",
	}
	cfg.Cache = CacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
