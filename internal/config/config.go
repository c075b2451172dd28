package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Matching MatchingConfig `yaml:"matching"`
	Oracle   OracleConfig   `yaml:"-"`
	Database DatabaseConfig `yaml:"-"`
	Log      LogConfig      `yaml:"-"`
	Web      WebConfig      `yaml:"-"`
}

type CaptureConfig struct {
	SampleCount       int           `yaml:"sample_count"`
	DiversityFloor    float64       `yaml:"diversity_floor"`
	MinFaceSizeRatio  float64       `yaml:"min_face_size_ratio"`
	MaxAttempts       int           `yaml:"max_attempts"`
	TickInterval      time.Duration `yaml:"tick_interval"`
	MaxOracleFailures int           `yaml:"max_oracle_failures"`
}

type MatchingConfig struct {
	Threshold       float64 `yaml:"threshold"`
	OverwritePolicy string  `yaml:"overwrite_policy"` // always, on-match or enroll-only
}

type OracleConfig struct {
	URL          string        // embedding server, defaults to http://localhost:8000
	Timeout      time.Duration // per detection call
	MaxFrameSide int           // frames larger than this are downscaled before upload, 0 disables
}

type DatabaseConfig struct {
	Backend        string        // memory, bolt, redis, postgres or mariadb
	URL            string        // PostgreSQL connection URL
	MariaDBDSN     string        // MariaDB DSN (e.g., face:face@tcp(mariadb:3306)/face)
	BoltPath       string        // BoltDB file path
	RedisURL       string        // redis://host:6379/0
	KeyPrefix      string        // namespace for credential keys
	MaxOpenConns   int           // Maximum open connections (default 5)
	MaxIdleConns   int           // Maximum idle connections (default 2)
	ConnectTimeout time.Duration // total time spent retrying the initial connection
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable in time.ParseDuration format.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadPolicy decodes the embedded policy defaults.
func loadPolicy() Config {
	var cfg Config
	if err := yaml.Unmarshal(policyYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	cfg := loadPolicy()

	cfg.Capture = CaptureConfig{
		SampleCount:       envInt("FACE_SAMPLE_COUNT", cfg.Capture.SampleCount),
		DiversityFloor:    envFloat("FACE_DIVERSITY_FLOOR", cfg.Capture.DiversityFloor),
		MinFaceSizeRatio:  envFloat("FACE_MIN_SIZE_RATIO", cfg.Capture.MinFaceSizeRatio),
		MaxAttempts:       envInt("FACE_MAX_ATTEMPTS", cfg.Capture.MaxAttempts),
		TickInterval:      envDuration("FACE_TICK_INTERVAL", cfg.Capture.TickInterval),
		MaxOracleFailures: envInt("FACE_MAX_ORACLE_FAILURES", cfg.Capture.MaxOracleFailures),
	}
	cfg.Matching = MatchingConfig{
		Threshold:       envFloat("FACE_MATCH_THRESHOLD", cfg.Matching.Threshold),
		OverwritePolicy: envString("FACE_OVERWRITE_POLICY", cfg.Matching.OverwritePolicy),
	}
	cfg.Oracle = OracleConfig{
		URL:          os.Getenv("EMBEDDING_URL"),
		Timeout:      envDuration("EMBEDDING_TIMEOUT", 10*time.Second),
		MaxFrameSide: envInt("EMBEDDING_MAX_FRAME_SIDE", 1280),
	}
	cfg.Database = DatabaseConfig{
		Backend:        envString("CREDENTIAL_BACKEND", "bolt"),
		URL:            os.Getenv("DATABASE_URL"),
		MariaDBDSN:     os.Getenv("MARIADB_DSN"),
		BoltPath:       envString("BOLT_PATH", "face-enroll.db"),
		RedisURL:       envString("REDIS_URL", "redis://localhost:6379/0"),
		KeyPrefix:      os.Getenv("CREDENTIAL_KEY_PREFIX"),
		MaxOpenConns:   envInt("DATABASE_MAX_OPEN_CONNS", 5),
		MaxIdleConns:   envInt("DATABASE_MAX_IDLE_CONNS", 2),
		ConnectTimeout: envDuration("DATABASE_CONNECT_TIMEOUT", 30*time.Second),
	}
	cfg.Log = LogConfig{
		Level:  envString("LOG_LEVEL", "info"),
		Format: envString("LOG_FORMAT", "console"),
	}
	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", "0.0.0.0"),
		Port:           envInt("WEB_PORT", 8080),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
	}

	return &cfg
}
