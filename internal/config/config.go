package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	ServerAddress  string      `json:"serverAddress" yaml:"serverAddress"`
	DatabasePath   string      `json:"databasePath" yaml:"databasePath"`
	DatabaseURL    string      `json:"databaseUrl" yaml:"databaseUrl"`
	DatabaseDriver string      `json:"databaseDriver" yaml:"databaseDriver"`
	ImageStorage   Storage     `json:"imageStorage" yaml:"imageStorage"`
	Export         Export      `json:"export" yaml:"export"`
	OTP            OTP         `json:"otp" yaml:"otp"`
	SMS            SMS         `json:"sms" yaml:"sms"`
	Security       Security    `json:"security" yaml:"security"`
	Telemetry      Telemetry   `json:"telemetry" yaml:"telemetry"`
	Maintenance    Maintenance `json:"maintenance" yaml:"maintenance"`
}

// Storage configures where captured images live
type Storage struct {
	BasePath          string   `json:"basePath" yaml:"basePath"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB" yaml:"maxFileSizeMB"`
	AllowedExtensions []string `json:"allowedExtensions" yaml:"allowedExtensions"`
	PreviewMaxSize    int      `json:"previewMaxSize" yaml:"previewMaxSize"`
}

// Export configures the export directory and the PDF font
type Export struct {
	Directory   string `json:"directory" yaml:"directory"`
	// Path to a TTF with Devanagari glyphs; Hindi labels are skipped without it.
	PDFFontPath string `json:"pdfFontPath" yaml:"pdfFontPath"`
}

// OTP tunes the one-time password flow
type OTP struct {
	ExpiryMinutes       int `json:"expiryMinutes" yaml:"expiryMinutes"`
	MaxAttempts         int `json:"maxAttempts" yaml:"maxAttempts"`
	CleanupIntervalSecs int `json:"cleanupIntervalSeconds" yaml:"cleanupIntervalSeconds"`
}

// Expiry returns the session lifetime
func (o OTP) Expiry() time.Duration {
	return time.Duration(o.ExpiryMinutes) * time.Minute
}

// CleanupInterval returns how often expired sessions are swept
func (o OTP) CleanupInterval() time.Duration {
	return time.Duration(o.CleanupIntervalSecs) * time.Second
}

// SMS configures the gateway used to deliver codes. An empty GatewayURL means
// codes are only written to the log.
type SMS struct {
	GatewayURL   string `json:"gatewayUrl" yaml:"gatewayUrl"`
	TokenURL     string `json:"tokenUrl" yaml:"tokenUrl"`
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
	SenderID     string `json:"senderId" yaml:"senderId"`
}

// Enabled reports whether a gateway is configured
func (s SMS) Enabled() bool {
	return s.GatewayURL != ""
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey" yaml:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader" yaml:"apiKeyHeader"`
	// Origins accepted on the event stream; empty accepts any
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins"`
}

// Maintenance schedules the image folder sweep
type Maintenance struct {
	IntervalMinutes    int `json:"intervalMinutes" yaml:"intervalMinutes"`
	OrphanGraceMinutes int `json:"orphanGraceMinutes" yaml:"orphanGraceMinutes"`
}

// Interval returns the time between sweeps
func (m Maintenance) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// OrphanGrace returns how old an unreferenced image must be before removal
func (m Maintenance) OrphanGrace() time.Duration {
	return time.Duration(m.OrphanGraceMinutes) * time.Minute
}

// Telemetry configures OpenTelemetry export
type Telemetry struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	Environment string  `json:"environment" yaml:"environment"`
	SampleRatio float64 `json:"sampleRatio" yaml:"sampleRatio"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerAddress:  ":8080",
		DatabasePath:   "cattle_breed_database.db",
		DatabaseDriver: "postgres",
		ImageStorage: Storage{
			BasePath:      "./data",
			MaxFileSizeMB: 25,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".heic", ".heif",
			},
			PreviewMaxSize: 640,
		},
		Export: Export{
			Directory: "./exports",
		},
		OTP: OTP{
			ExpiryMinutes:       5,
			MaxAttempts:         3,
			CleanupIntervalSecs: 60,
		},
		SMS: SMS{
			SenderID: "CTLBRD",
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
		Maintenance: Maintenance{
			IntervalMinutes:    60,
			OrphanGraceMinutes: 10,
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4317",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration from defaults, then CONFIG_PATH (JSON or YAML),
// then environment variables, and prepares the storage directories.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.json"
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config file; a missing file is not an error
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.prepareDirs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	setString("SERVER_ADDRESS", &cfg.ServerAddress)
	setString("DATABASE_PATH", &cfg.DatabasePath)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("DATABASE_DRIVER", &cfg.DatabaseDriver)
	setString("IMAGE_STORAGE_PATH", &cfg.ImageStorage.BasePath)
	setString("EXPORT_DIR", &cfg.Export.Directory)
	setString("PDF_FONT_PATH", &cfg.Export.PDFFontPath)
	setInt("OTP_EXPIRY_MINUTES", &cfg.OTP.ExpiryMinutes)
	setInt("OTP_MAX_ATTEMPTS", &cfg.OTP.MaxAttempts)
	setString("SMS_GATEWAY_URL", &cfg.SMS.GatewayURL)
	setString("SMS_TOKEN_URL", &cfg.SMS.TokenURL)
	setString("SMS_CLIENT_ID", &cfg.SMS.ClientID)
	setString("SMS_CLIENT_SECRET", &cfg.SMS.ClientSecret)
	setString("API_KEY", &cfg.Security.APIKey)
	setInt("MAINTENANCE_INTERVAL_MINUTES", &cfg.Maintenance.IntervalMinutes)
	setString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	setString("ENVIRONMENT", &cfg.Telemetry.Environment)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Security.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ImageStorage.MaxFileSizeMB = n
		}
	}
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.OTP.ExpiryMinutes <= 0 {
		return fmt.Errorf("otp.expiryMinutes must be positive")
	}
	if c.OTP.MaxAttempts <= 0 {
		return fmt.Errorf("otp.maxAttempts must be positive")
	}
	switch c.DatabaseDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported databaseDriver %q (want postgres or pgx)", c.DatabaseDriver)
	}
	if c.SMS.Enabled() && c.SMS.TokenURL == "" {
		return fmt.Errorf("sms.tokenUrl is required when sms.gatewayUrl is set")
	}
	return nil
}

func (c *Config) prepareDirs() error {
	for _, dir := range []*string{&c.ImageStorage.BasePath, &c.Export.Directory} {
		if err := os.MkdirAll(*dir, 0755); err != nil {
			return err
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return err
		}
		*dir = abs
	}
	return nil
}
