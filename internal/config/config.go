package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port      int    `yaml:"port" validate:"min=1,max=65535"`
		Host      string `yaml:"host"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"oneof=console json"`
	} `yaml:"log"`

	Workers struct {
		Count     int `yaml:"count" validate:"min=1"`
		QueueSize int `yaml:"queue_size" validate:"min=1"`
	} `yaml:"workers"`

	Storage struct {
		TempDir   string `yaml:"temp_dir" validate:"required"`
		OutputDir string `yaml:"output_dir" validate:"required"`
		MediaDir  string `yaml:"media_dir" validate:"required"`
		Database  string `yaml:"database" validate:"required"`
	} `yaml:"storage"`

	Supabase struct {
		URL        string `yaml:"url" validate:"omitempty,url"`
		AnonKey    string `yaml:"anon_key"`
		ServiceKey string `yaml:"service_key"`
		JWTSecret  string `yaml:"jwt_secret"`
		Bucket     string `yaml:"bucket" validate:"required"`
	} `yaml:"supabase"`

	Auth struct {
		Admin struct {
			Email        string `yaml:"email" validate:"omitempty,email"`
			PasswordHash string `yaml:"password_hash"`
		} `yaml:"admin"`
		SessionTTL time.Duration `yaml:"session_ttl"`
	} `yaml:"auth"`

	Keys struct {
		ElevenLabs string        `yaml:"elevenlabs"`
		Anthropic  string        `yaml:"anthropic"`
		CacheTTL   time.Duration `yaml:"cache_ttl"`
	} `yaml:"keys"`

	Transcription struct {
		Provider     string        `yaml:"provider" validate:"oneof=elevenlabs whisper"`
		BaseURL      string        `yaml:"base_url" validate:"omitempty,url"`
		Model        string        `yaml:"model"`
		Language     string        `yaml:"language"`
		SegmentGap   time.Duration `yaml:"segment_gap"`
		ExtractAudio bool          `yaml:"extract_audio"`
		WhisperModel string        `yaml:"whisper_model"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"transcription"`

	Analysis struct {
		BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
		Model       string        `yaml:"model"`
		MaxTokens   int           `yaml:"max_tokens" validate:"min=1"`
		Temperature *float64      `yaml:"temperature" validate:"omitempty,min=0,max=1"` // nil means unset
		Timeout     time.Duration `yaml:"timeout"`
		MaxRetries  int           `yaml:"max_retries" validate:"min=0"`
	} `yaml:"analysis"`

	Recorder struct {
		MaxDuration time.Duration `yaml:"max_duration" validate:"min=1s"`
		IdleTimeout time.Duration `yaml:"idle_timeout"`
	} `yaml:"recorder"`

	Cleanup struct {
		Interval time.Duration `yaml:"interval"`
		MaxAge   time.Duration `yaml:"max_age"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB  int `yaml:"max_file_size_mb" validate:"min=1"`
		WarnFileSizeMB int `yaml:"warn_file_size_mb" validate:"min=0"`
	} `yaml:"limits"`

	Demo struct {
		SampleRecordings bool `yaml:"sample_recordings"`
	} `yaml:"demo"`
}

// Load reads the YAML file at path, applies .env and environment overrides,
// fills defaults and validates the result. A missing file yields a config
// built from defaults and environment alone.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.PublicURL == "" {
		host := c.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		c.Server.PublicURL = fmt.Sprintf("http://%s:%d", host, c.Server.Port)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 100
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "outputs"
	}
	if c.Storage.MediaDir == "" {
		c.Storage.MediaDir = "media"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "speech-coach.db"
	}
	if c.Supabase.Bucket == "" {
		c.Supabase.Bucket = "recordings"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = time.Hour
	}
	if c.Keys.CacheTTL == 0 {
		c.Keys.CacheTTL = 5 * time.Minute
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "elevenlabs"
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "scribe_v1"
	}
	if c.Transcription.SegmentGap == 0 {
		c.Transcription.SegmentGap = time.Second
	}
	if c.Transcription.WhisperModel == "" {
		c.Transcription.WhisperModel = "small"
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 5 * time.Minute
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "claude-sonnet-4-5"
	}
	if c.Analysis.MaxTokens == 0 {
		c.Analysis.MaxTokens = 4000
	}
	if c.Analysis.Temperature == nil {
		t := 0.1
		c.Analysis.Temperature = &t
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 2 * time.Minute
	}
	if c.Recorder.MaxDuration == 0 {
		c.Recorder.MaxDuration = 45 * time.Second
	}
	if c.Recorder.IdleTimeout == 0 {
		c.Recorder.IdleTimeout = 15 * time.Minute
	}
	if c.Cleanup.Interval == 0 {
		c.Cleanup.Interval = 30 * time.Minute
	}
	if c.Cleanup.MaxAge == 0 {
		c.Cleanup.MaxAge = 24 * time.Hour
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Speech Coach"
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 100
	}
	if c.Limits.WarnFileSizeMB == 0 {
		c.Limits.WarnFileSizeMB = 20
	}
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Auth.Admin.Email != "" && c.Auth.Admin.PasswordHash == "" {
		return errors.New("invalid config: auth.admin.password_hash is required when auth.admin.email is set")
	}
	if c.Auth.Admin.Email != "" && c.Supabase.JWTSecret == "" {
		return errors.New("invalid config: supabase.jwt_secret is required for the admin login")
	}
	if c.Limits.WarnFileSizeMB > c.Limits.MaxFileSizeMB {
		return errors.New("invalid config: limits.warn_file_size_mb exceeds limits.max_file_size_mb")
	}
	return nil
}

// SupabaseEnabled reports whether the hosted backend is configured.
func (c *Config) SupabaseEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.AnonKey != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) applyEnv() {
	setString(&c.Supabase.URL, "SUPABASE_URL")
	setString(&c.Supabase.AnonKey, "SUPABASE_ANON_KEY")
	setString(&c.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&c.Supabase.JWTSecret, "SUPABASE_JWT_SECRET")
	setString(&c.Keys.ElevenLabs, "ELEVENLABS_API_KEY")
	setString(&c.Keys.Anthropic, "ANTHROPIC_API_KEY")
	setString(&c.Auth.Admin.Email, "ADMIN_EMAIL")
	setString(&c.Auth.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
