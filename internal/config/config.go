// Package config resolves runtime settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration shared by every command.
type Config struct {
	ServiceID string
	LogLevel  string
	HTTPPort  int
	GRPCPort  int

	// DatabaseURL selects the Postgres store; empty runs on the in-memory store.
	DatabaseURL string
	// KafkaBrokers selects Kafka; empty uses the in-process broker.
	KafkaBrokers  []string
	RedisURL      string
	EmbeddedRelay bool

	S3Bucket   string
	S3Region   string
	S3Endpoint string

	PostmarkURL   string
	PostmarkToken string
	MailFrom      string
	// EmailFunctionURL is where completion notifications are posted.
	// Empty means this process's own function route.
	EmailFunctionURL string

	GoogleMapsAPIKey string
	GeocodeURL       string

	RefreshThrottle time.Duration
	RetryStep       time.Duration
	MaxRetries      int
	// SessionIdle is how long an operator session survives without requests.
	SessionIdle     time.Duration
	DedupTTL        time.Duration
	ShutdownTimeout time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		RedisURL     string   `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Storage struct {
		Bucket   string `yaml:"bucket"`
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"storage"`
	Mail struct {
		PostmarkURL      string `yaml:"postmark_url"`
		From             string `yaml:"from"`
		EmailFunctionURL string `yaml:"email_function_url"`
	} `yaml:"mail"`
	Sync struct {
		RefreshThrottle string `yaml:"refresh_throttle"`
		RetryStep       string `yaml:"retry_step"`
		MaxRetries      int    `yaml:"max_retries"`
		SessionIdle     string `yaml:"session_idle"`
	} `yaml:"sync"`
}

// Load reads path when it exists and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{
		ServiceID:       "instaprint",
		LogLevel:        "info",
		EmbeddedRelay:   true,
		HTTPPort:        8080,
		GRPCPort:        9090,
		S3Bucket:        "documents",
		S3Region:        "us-east-1",
		PostmarkURL:     "https://api.postmarkapp.com",
		MailFrom:        "orders@instaprint.app",
		GeocodeURL:      "https://maps.googleapis.com/maps/api/geocode/json",
		RefreshThrottle: 5 * time.Second,
		RetryStep:       time.Second,
		MaxRetries:      3,
		SessionIdle:     2 * time.Minute,
		DedupTTL:        24 * time.Hour,
		ShutdownTimeout: 10 * time.Second,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var envErrs []error
	intVar := func(dst *int, key string) {
		if v, err := envInt(key, *dst); err != nil {
			envErrs = append(envErrs, err)
		} else {
			*dst = v
		}
	}
	durationVar := func(dst *time.Duration, key string) {
		if v, err := envDuration(key, *dst); err != nil {
			envErrs = append(envErrs, err)
		} else {
			*dst = v
		}
	}

	cfg.ServiceID = getEnv("SERVICE_ID", cfg.ServiceID)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	intVar(&cfg.HTTPPort, "HTTP_PORT")
	intVar(&cfg.GRPCPort, "GRPC_PORT")
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	if v, err := envBool("EMBEDDED_RELAY", cfg.EmbeddedRelay); err != nil {
		envErrs = append(envErrs, err)
	} else {
		cfg.EmbeddedRelay = v
	}
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.PostmarkURL = getEnv("POSTMARK_URL", cfg.PostmarkURL)
	cfg.PostmarkToken = getEnv("POSTMARK_SERVER_TOKEN", cfg.PostmarkToken)
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.MailFrom)
	cfg.EmailFunctionURL = getEnv("EMAIL_FUNCTION_URL", cfg.EmailFunctionURL)
	cfg.GoogleMapsAPIKey = getEnv("GOOGLE_MAPS_API_KEY", cfg.GoogleMapsAPIKey)
	cfg.GeocodeURL = getEnv("GEOCODE_URL", cfg.GeocodeURL)
	durationVar(&cfg.RefreshThrottle, "REFRESH_THROTTLE")
	durationVar(&cfg.RetryStep, "RETRY_STEP")
	intVar(&cfg.MaxRetries, "MAX_RETRIES")
	durationVar(&cfg.SessionIdle, "SESSION_IDLE_TIMEOUT")
	if err := errors.Join(envErrs...); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if f.Service.ID != "" {
		c.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		c.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		c.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		c.DatabaseURL = f.Dependencies.PostgresURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		c.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.RedisURL != "" {
		c.RedisURL = f.Dependencies.RedisURL
	}
	if f.Storage.Bucket != "" {
		c.S3Bucket = f.Storage.Bucket
	}
	if f.Storage.Region != "" {
		c.S3Region = f.Storage.Region
	}
	if f.Storage.Endpoint != "" {
		c.S3Endpoint = f.Storage.Endpoint
	}
	if f.Mail.PostmarkURL != "" {
		c.PostmarkURL = f.Mail.PostmarkURL
	}
	if f.Mail.From != "" {
		c.MailFrom = f.Mail.From
	}
	if f.Mail.EmailFunctionURL != "" {
		c.EmailFunctionURL = f.Mail.EmailFunctionURL
	}
	if f.Sync.MaxRetries > 0 {
		c.MaxRetries = f.Sync.MaxRetries
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{f.Sync.RefreshThrottle, &c.RefreshThrottle},
		{f.Sync.RetryStep, &c.RetryStep},
		{f.Sync.SessionIdle, &c.SessionIdle},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("failed to parse config file: invalid duration %q: %w", d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

func (c Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT %d", c.GRPCPort)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid MAX_RETRIES %d", c.MaxRetries)
	}
	if c.RetryStep <= 0 {
		return fmt.Errorf("invalid RETRY_STEP %s", c.RetryStep)
	}
	if c.RefreshThrottle < 0 {
		return fmt.Errorf("invalid REFRESH_THROTTLE %s", c.RefreshThrottle)
	}
	if c.SessionIdle <= 0 {
		return fmt.Errorf("invalid SESSION_IDLE_TIMEOUT %s", c.SessionIdle)
	}
	return nil
}

// HTTPAddr is the listen address of the API server.
func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// LocalEmailFunctionURL is the function route served by this process.
func (c Config) LocalEmailFunctionURL() string {
	return fmt.Sprintf("http://localhost:%d/functions/send-order-completed-email", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envInt falls back on an unset key and rejects a malformed value.
func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: not an integer", key, raw)
	}
	return v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	switch raw := os.Getenv(key); raw {
	case "":
		return fallback, nil
	case "1", "true", "TRUE", "yes", "YES":
		return true, nil
	case "0", "false", "FALSE", "no", "NO":
		return false, nil
	default:
		return fallback, fmt.Errorf("invalid %s %q: not a boolean", key, raw)
	}
}

// envDuration accepts Go durations ("750ms") or whole seconds ("5").
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	if v, err := time.ParseDuration(raw); err == nil {
		return v, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return fallback, fmt.Errorf("invalid %s %q: not a duration", key, raw)
}

func envCSV(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
