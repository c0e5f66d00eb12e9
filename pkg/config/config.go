package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Webhook RateLimitBucketConfig `yaml:"webhook"`
	Ingest  RateLimitBucketConfig `yaml:"ingest"`
}

type Config struct {
	Port          int    `yaml:"port"`
	Env           string `yaml:"env"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// WorkflowWebhookURL is the external quality-check workflow endpoint the
	// completed batch is posted to.
	WorkflowWebhookURL   string `yaml:"workflowWebhookUrl"`
	SubmitTimeoutSeconds int    `yaml:"submitTimeoutSeconds"`
	ProbeTimeoutSeconds  int    `yaml:"probeTimeoutSeconds"`

	// Storage selects the image store backend: "local" or "bucket".
	StorageBackend string `yaml:"storageBackend"`
	StorageDir     string `yaml:"storageDir"`
	StorageBaseURL string `yaml:"storageBaseUrl"`
	StorageBucket  string `yaml:"storageBucket"`
	StorageAnonKey string `yaml:"storageAnonKey"`

	WebhookHmacSecret              string `yaml:"webhookHmacSecret"`
	VerdictWebhookMaxAttempts      int    `yaml:"verdictWebhookMaxAttempts"`
	VerdictWebhookBaseBackoffSecs  int    `yaml:"verdictWebhookBaseBackoffSeconds"`
	VerdictWebhookMaxBackoffSecs   int    `yaml:"verdictWebhookMaxBackoffSeconds"`
	SubscriptionMinIntervalSeconds int    `yaml:"subscriptionMinIntervalSeconds"`
	SubscriptionTTLSeconds         int    `yaml:"subscriptionTtlSeconds"`

	AuthProvider string          `yaml:"authProvider"`
	AuthConfig   json.RawMessage `yaml:"authConfig"`

	AllowedOrigins []string `yaml:"allowedOrigins"`
	Clients        []string `yaml:"clients"`

	TracingEnabled bool    `yaml:"tracingEnabled"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint"`
	OTLPInsecure   bool    `yaml:"otlpInsecure"`
	SampleRatio    float64 `yaml:"sampleRatio"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// LoadConfig reads the optional yaml file, layers environment overrides on
// top, and applies defaults. An empty path skips the file entirely.
func LoadConfig(filePath string) (*Config, error) {
	var c Config
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("FLEETFOX_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("N8N_WEBHOOK_URL"); v != "" {
		c.WorkflowWebhookURL = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.StorageBaseURL = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		c.StorageAnonKey = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.StorageBackend = v
	}
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		c.StorageDir = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		c.StorageBucket = v
	}
	if v := os.Getenv("WEBHOOK_HMAC_SECRET"); v != "" {
		c.WebhookHmacSecret = v
	}
	if v := os.Getenv("SUBMIT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SubmitTimeoutSeconds = n
		}
	}

	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.SubmitTimeoutSeconds <= 0 {
		c.SubmitTimeoutSeconds = 30
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = 10
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "local"
	}
	if c.StorageDir == "" {
		c.StorageDir = "/tmp/fleetfox-images"
	}
	if c.StorageBucket == "" {
		c.StorageBucket = "vehicle-qa-images"
	}
	if c.VerdictWebhookMaxAttempts <= 0 {
		c.VerdictWebhookMaxAttempts = 5
	}
	if c.VerdictWebhookBaseBackoffSecs <= 0 {
		c.VerdictWebhookBaseBackoffSecs = 2
	}
	if c.VerdictWebhookMaxBackoffSecs <= 0 {
		c.VerdictWebhookMaxBackoffSecs = 60
	}
	if c.SubscriptionMinIntervalSeconds <= 0 {
		c.SubscriptionMinIntervalSeconds = 5
	}
	if c.SubscriptionTTLSeconds <= 0 {
		c.SubscriptionTTLSeconds = 3600
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		c.SampleRatio = 1
	}

	return &c, nil
}

// Production reports whether the deployment context is adjudged production.
func (c *Config) Production() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// Validate enforces the env-sensitive invariants. The loopback guard also
// runs at dispatch time; failing here surfaces the misconfiguration at boot
// instead of on the first submission.
func (c *Config) Validate() error {
	var errs []string

	if c.WorkflowWebhookURL != "" {
		u, err := url.Parse(c.WorkflowWebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "workflowWebhookUrl must be a valid http(s) URL")
		}
	}
	if c.Production() {
		if c.WorkflowWebhookURL == "" {
			errs = append(errs, "workflowWebhookUrl is required in production")
		} else if IsLoopbackURL(c.WorkflowWebhookURL) {
			errs = append(errs, "workflowWebhookUrl must not point at a loopback address in production")
		}
		if strings.TrimSpace(c.WebhookHmacSecret) == "" {
			errs = append(errs, "webhookHmacSecret is required in production")
		}
	}
	if c.StorageBackend != "local" && c.StorageBackend != "bucket" {
		errs = append(errs, "storageBackend must be \"local\" or \"bucket\"")
	}
	if c.StorageBackend == "bucket" && c.StorageBaseURL == "" {
		errs = append(errs, "storageBaseUrl is required for the bucket backend")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsLoopbackURL reports whether raw points at localhost, 127.0.0.0/8 or ::1.
func IsLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
