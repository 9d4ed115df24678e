package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Ingest modes
const (
	ModeURL    = "url"
	ModeRehost = "rehost"
	ModeBase64 = "base64"
)

// Storage backends for rehost mode
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Duration is a time.Duration that reads from JSON as "30s", "10m", ...
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration
type Config struct {
	Server struct {
		Port     string `json:"port"`
		Debug    bool   `json:"debug"`
		BaseURL  string `json:"base_url"`  // externally visible base URL
		APIToken string `json:"api_token"` // empty disables caller auth
	} `json:"server"`

	Model struct {
		Type      string   `json:"type"` // only "openai"
		APIKey    string   `json:"api_key"`
		BaseURL   string   `json:"base_url"`
		Name      string   `json:"name"`
		MaxTokens int      `json:"max_tokens"`
		Timeout   Duration `json:"timeout"`
	} `json:"model"`

	Retry struct {
		Attempts int      `json:"attempts"`
		Backoff  Duration `json:"backoff"`
	} `json:"retry"`

	Ingest struct {
		Mode            string   `json:"mode"` // "url", "rehost" or "base64"
		ForceHTTPS      bool     `json:"force_https"`
		VerifyReachable bool     `json:"verify_reachable"`
		ProbeTimeout    Duration `json:"probe_timeout"`
	} `json:"ingest"`

	Storage struct {
		Type       string `json:"type"` // "local" or "s3"
		UploadDir  string `json:"upload_dir"`
		PublicPath string `json:"public_path"`
		S3         struct {
			Bucket        string `json:"bucket"`
			Region        string `json:"region"`
			Endpoint      string `json:"endpoint"`
			AccessKey     string `json:"access_key"`
			SecretKey     string `json:"secret_key"`
			PublicBaseURL string `json:"public_base_url"`
		} `json:"s3"`
	} `json:"storage"`

	Retention struct {
		TTL      Duration `json:"ttl"` // 0 keeps uploads forever
		Interval Duration `json:"interval"`
	} `json:"retention"`

	Database struct {
		Path string `json:"path"`
	} `json:"database"`
}

// LoadConfig loads configuration from a JSON file. A missing file is not an
// error: environment variables and defaults fill every field.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := defaults()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Model.Type = "openai"
	c.Model.BaseURL = "https://api.openai.com/v1"
	c.Model.Name = "gpt-4o"
	c.Model.MaxTokens = 300
	c.Model.Timeout = Duration(60 * time.Second)
	c.Retry.Attempts = 3
	c.Retry.Backoff = Duration(time.Second)
	c.Ingest.Mode = ModeBase64
	c.Ingest.ProbeTimeout = Duration(5 * time.Second)
	c.Storage.Type = StorageLocal
	c.Storage.UploadDir = "./uploads"
	c.Storage.PublicPath = "/uploads"
	c.Retention.TTL = Duration(24 * time.Hour)
	c.Retention.Interval = Duration(10 * time.Minute)
	c.Database.Path = "uploads.db"
	return &c
}

// applyEnv overrides settings that are usually secrets or deployment specific
func applyEnv(c *Config) {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.BaseURL, "PUBLIC_BASE_URL")
	setString(&c.Server.APIToken, "API_TOKEN")
	setString(&c.Model.APIKey, "OPENAI_API_KEY")
	setString(&c.Model.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Ingest.Mode, "INGEST_MODE")
	setString(&c.Storage.UploadDir, "UPLOAD_DIR")
	setString(&c.Storage.S3.Bucket, "S3_BUCKET")
	setString(&c.Storage.S3.Region, "S3_REGION")
	setString(&c.Storage.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.S3.PublicBaseURL, "S3_PUBLIC_BASE_URL")
	setString(&c.Database.Path, "DATABASE_PATH")

	if v, err := strconv.ParseBool(os.Getenv("TRAY_DEBUG")); err == nil {
		c.Server.Debug = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("model api key is not set (OPENAI_API_KEY)")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model max_tokens must be positive, got %d", c.Model.MaxTokens)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}

	switch c.Ingest.Mode {
	case ModeURL, ModeBase64:
	case ModeRehost:
		switch c.Storage.Type {
		case StorageLocal:
			if c.Server.BaseURL == "" {
				return fmt.Errorf("server base_url is required for local rehost storage")
			}
		case StorageS3:
			if c.Storage.S3.Bucket == "" || c.Storage.S3.PublicBaseURL == "" {
				return fmt.Errorf("s3 bucket and public_base_url are required for s3 storage")
			}
		default:
			return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported ingest mode: %s", c.Ingest.Mode)
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("TRAY_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
