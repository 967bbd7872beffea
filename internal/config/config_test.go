package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Recorder.MaxDuration != 45*time.Second {
		t.Errorf("MaxDuration = %v, want 45s", cfg.Recorder.MaxDuration)
	}
	if cfg.Limits.MaxFileSizeMB != 100 || cfg.Limits.WarnFileSizeMB != 20 {
		t.Errorf("Limits = %+v, want 100/20", cfg.Limits)
	}
	if cfg.Transcription.Model != "scribe_v1" {
		t.Errorf("Transcription.Model = %q, want scribe_v1", cfg.Transcription.Model)
	}
	if cfg.Analysis.MaxTokens != 4000 || *cfg.Analysis.Temperature != 0.1 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Supabase.Bucket != "recordings" {
		t.Errorf("Bucket = %q, want recordings", cfg.Supabase.Bucket)
	}
	if cfg.Server.PublicURL != "http://localhost:8080" {
		t.Errorf("PublicURL = %q", cfg.Server.PublicURL)
	}
	if cfg.SupabaseEnabled() {
		t.Error("SupabaseEnabled() = true without url/key")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
server:
  port: 9000
  public_url: https://coach.example.com/
recorder:
  max_duration: 30s
cleanup:
  interval: 10m
supabase:
  url: https://abc.supabase.co
  anon_key: anon
`)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Server.PublicURL != "https://coach.example.com" {
		t.Errorf("PublicURL = %q, want trailing slash trimmed", cfg.Server.PublicURL)
	}
	if cfg.Recorder.MaxDuration != 30*time.Second {
		t.Errorf("MaxDuration = %v, want 30s", cfg.Recorder.MaxDuration)
	}
	if cfg.Cleanup.Interval != 10*time.Minute {
		t.Errorf("Cleanup.Interval = %v, want 10m", cfg.Cleanup.Interval)
	}
	if cfg.Keys.Anthropic != "sk-ant" {
		t.Errorf("Keys.Anthropic = %q", cfg.Keys.Anthropic)
	}
	if !cfg.SupabaseEnabled() {
		t.Error("SupabaseEnabled() = false")
	}
}

func TestLoad_ExplicitZeroTemperature(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
analysis:
  temperature: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Analysis.Temperature == nil || *cfg.Analysis.Temperature != 0 {
		t.Errorf("Temperature = %v, want explicit 0 kept", cfg.Analysis.Temperature)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad provider", func(c *Config) { c.Transcription.Provider = "carrier-pigeon" }},
		{"admin without hash", func(c *Config) {
			c.Auth.Admin.Email = "admin@example.com"
			c.Supabase.JWTSecret = "secret"
		}},
		{"admin without jwt secret", func(c *Config) {
			c.Auth.Admin.Email = "admin@example.com"
			c.Auth.Admin.PasswordHash = "$2a$10$x"
		}},
		{"warn above max", func(c *Config) { c.Limits.WarnFileSizeMB = 500 }},
		{"recorder too short", func(c *Config) { c.Recorder.MaxDuration = time.Millisecond }},
		{"temperature above 1", func(c *Config) { t := 1.5; c.Analysis.Temperature = &t }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "server: [not, a, map")
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil error for broken YAML")
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}
