package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string
	Validation  ValidationConfig
	Aggregation AggregationConfig
	RulesFile   string
	Database    DatabaseConfig
	Redis       RedisConfig
	S3          S3Config
	DynamoDB    DynamoDBConfig
	CloudWatch  CloudWatchConfig
	NATS        NATSConfig
	Prometheus  PrometheusConfig
}

// ValidationConfig пороги правил; YAML-теги совпадают с ключами файла правил
type ValidationConfig struct {
	P95ThresholdMs     float64 `yaml:"p95_threshold_ms"`
	P95SoftThresholdMs float64 `yaml:"p95_soft_threshold_ms"`
	AverageP95WarnMs   float64 `yaml:"average_p95_warn_ms"`
	P99OutlierMs       float64 `yaml:"p99_outlier_ms"`
	MinTotalSamples    int     `yaml:"min_total_samples"`
	MinDurationMinutes float64 `yaml:"min_duration_minutes"`
	TrendFactor        float64 `yaml:"trend_factor"`
	TrendMinEntries    int     `yaml:"trend_min_entries"`
}

type AggregationConfig struct {
	Cadence        time.Duration
	DurationSource string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
	Retention       time.Duration
}

type DynamoDBConfig struct {
	Enabled         bool
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

type CloudWatchConfig struct {
	MetricsEnabled    bool
	LogsEnabled       bool
	Region            string
	Endpoint          string
	AccessKeyID       string
	SecretAccessKey   string
	Namespace         string
	LogGroupName      string
	LogStreamPrefix   string
	RequestsPerSecond float64
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

type PrometheusConfig struct {
	TextfilePath string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	validation, err := loadValidation()
	if err != nil {
		return nil, err
	}

	cadence, err := parseDuration(getEnv("LOG_CADENCE", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_CADENCE: %w", err)
	}
	if cadence <= 0 {
		return nil, fmt.Errorf("invalid LOG_CADENCE: must be positive")
	}

	durationSource := getEnv("DURATION_SOURCE", "cadence")
	if durationSource != "cadence" && durationSource != "timestamps" {
		return nil, fmt.Errorf("invalid DURATION_SOURCE: %q (want cadence or timestamps)", durationSource)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	redisTTL, err := parseDuration(getEnv("REDIS_CACHE_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_CACHE_TTL: %w", err)
	}

	presignedTTL, err := parseDuration(getEnv("S3_PRESIGNED_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGNED_TTL: %w", err)
	}

	retention, err := parseDuration(getEnv("REPORT_RETENTION", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_RETENTION: %w", err)
	}

	cloudWatchRPS, err := getEnvFloat("CLOUDWATCH_REQUESTS_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}

	awsRegion := getEnv("AWS_REGION", "us-east-1")
	awsAccessKeyID := getEnv("AWS_ACCESS_KEY_ID", "")
	awsSecretAccessKey := getEnv("AWS_SECRET_ACCESS_KEY", "")

	cfg := &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Validation: validation,
		Aggregation: AggregationConfig{
			Cadence:        cadence,
			DurationSource: durationSource,
		},
		RulesFile: getEnv("LATENCY_RULES_FILE", ""),
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "latency"),
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      redisTTL,
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", awsRegion),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", awsAccessKeyID),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", awsSecretAccessKey),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "latency-reports"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    presignedTTL,
			Retention:       retention,
		},
		DynamoDB: DynamoDBConfig{
			Enabled:         getEnvBool("DYNAMODB_ENABLED", false),
			TableName:       getEnv("DYNAMODB_TABLE", "latency-reports"),
			Region:          getEnv("DYNAMODB_REGION", awsRegion),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     awsAccessKeyID,
			SecretAccessKey: awsSecretAccessKey,
			StrongReads:     getEnvBool("DYNAMODB_STRONG_READS", false),
		},
		CloudWatch: CloudWatchConfig{
			MetricsEnabled:    getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			LogsEnabled:       getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			Region:            awsRegion,
			Endpoint:          getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:       awsAccessKeyID,
			SecretAccessKey:   awsSecretAccessKey,
			Namespace:         getEnv("CLOUDWATCH_NAMESPACE", "LatencyValidator"),
			LogGroupName:      getEnv("CLOUDWATCH_LOG_GROUP", "/latency-validator"),
			LogStreamPrefix:   getEnv("CLOUDWATCH_LOG_STREAM_PREFIX", "latency-analyzer"),
			RequestsPerSecond: cloudWatchRPS,
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("NATS_SUBJECT", "latency.validation.completed"),
		},
		Prometheus: PrometheusConfig{
			TextfilePath: getEnv("PROMETHEUS_TEXTFILE", ""),
		},
	}

	if cfg.S3.Enabled && cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}
	if cfg.S3.URLMode != "presigned" && cfg.S3.URLMode != "public" {
		return nil, fmt.Errorf("invalid S3_URL_MODE: %q", cfg.S3.URLMode)
	}
	if cfg.DynamoDB.Enabled && !cfg.S3.Enabled {
		return nil, fmt.Errorf("DYNAMODB_ENABLED=true requires S3_ENABLED=true")
	}

	return cfg, nil
}

func loadValidation() (ValidationConfig, error) {
	var (
		v   ValidationConfig
		err error
	)

	if v.P95ThresholdMs, err = getEnvFloat("LATENCY_P95_THRESHOLD_MS", 100); err != nil {
		return v, err
	}
	if v.P95SoftThresholdMs, err = getEnvFloat("LATENCY_P95_SOFT_THRESHOLD_MS", 90); err != nil {
		return v, err
	}
	if v.AverageP95WarnMs, err = getEnvFloat("LATENCY_AVG_P95_WARN_MS", 80); err != nil {
		return v, err
	}
	if v.P99OutlierMs, err = getEnvFloat("LATENCY_P99_OUTLIER_MS", 150); err != nil {
		return v, err
	}
	if v.MinTotalSamples, err = getEnvInt("LATENCY_MIN_TOTAL_SAMPLES", 3600); err != nil {
		return v, err
	}
	if v.MinDurationMinutes, err = getEnvFloat("LATENCY_MIN_DURATION_MINUTES", 30); err != nil {
		return v, err
	}
	if v.TrendFactor, err = getEnvFloat("LATENCY_TREND_FACTOR", 1.2); err != nil {
		return v, err
	}
	if v.TrendMinEntries, err = getEnvInt("LATENCY_TREND_MIN_ENTRIES", 5); err != nil {
		return v, err
	}

	return v, v.Validate()
}

// Validate проверяет согласованность порогов
func (v ValidationConfig) Validate() error {
	if v.P95ThresholdMs <= 0 {
		return fmt.Errorf("invalid p95 threshold: %g", v.P95ThresholdMs)
	}
	if v.P95SoftThresholdMs > v.P95ThresholdMs {
		return fmt.Errorf("p95 soft threshold %g exceeds threshold %g", v.P95SoftThresholdMs, v.P95ThresholdMs)
	}
	if v.MinTotalSamples < 0 || v.MinDurationMinutes < 0 {
		return fmt.Errorf("minimum sample count and duration must not be negative")
	}
	if v.TrendFactor <= 0 || v.TrendMinEntries < 3 {
		return fmt.Errorf("invalid trend settings: factor=%g min_entries=%d", v.TrendFactor, v.TrendMinEntries)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
