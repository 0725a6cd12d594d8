package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"TRANSCRIBE_URL": "http://localhost:9000/v1/audio/transcriptions",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.TranscribeModel != "whisper-1" {
			t.Errorf("TranscribeModel = %q, want whisper-1", cfg.TranscribeModel)
		}
		if cfg.TranscribeTimeout != 0 {
			t.Errorf("TranscribeTimeout = %v, want 0 (none)", cfg.TranscribeTimeout)
		}
		if cfg.ReadTimeout != 60*time.Second {
			t.Errorf("ReadTimeout = %v, want 60s", cfg.ReadTimeout)
		}
		if cfg.MaxUploadMB != 32 {
			t.Errorf("MaxUploadMB = %d, want 32", cfg.MaxUploadMB)
		}
		if cfg.S3.Enabled() {
			t.Error("S3 should be disabled without a bucket")
		}
		if cfg.S3.Region != "us-east-1" {
			t.Errorf("S3.Region = %q, want us-east-1", cfg.S3.Region)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:       "nonexistent.env",
			HTTPAddr:      ":9090",
			LogLevel:      "debug",
			TranscribeURL: "http://override/v1/audio/transcriptions",
			ArchiveDir:    "/tmp/archive",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.TranscribeURL != "http://override/v1/audio/transcriptions" {
			t.Errorf("TranscribeURL = %q, want override", cfg.TranscribeURL)
		}
		if cfg.ArchiveDir != "/tmp/archive" {
			t.Errorf("ArchiveDir = %q, want /tmp/archive", cfg.ArchiveDir)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.TranscribeURL != "http://localhost:9000/v1/audio/transcriptions" {
			t.Errorf("TranscribeURL = %q, want env value", cfg.TranscribeURL)
		}
	})

	t.Run("env_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(path, []byte("CORS_ORIGINS=https://a.example,https://b.example\nS3_BUCKET=archive\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		defer os.Unsetenv("CORS_ORIGINS")
		defer os.Unsetenv("S3_BUCKET")

		cfg, err := Load(Overrides{EnvFile: path})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
			t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
		}
		if !cfg.S3.Enabled() || cfg.S3.Bucket != "archive" {
			t.Errorf("S3 = %+v, want bucket archive", cfg.S3)
		}
	})
}

func TestLoadInvalid(t *testing.T) {
	t.Run("max_upload", func(t *testing.T) {
		cleanup := setEnvs(t, map[string]string{"MAX_UPLOAD_MB": "0"})
		defer cleanup()
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("expected error for MAX_UPLOAD_MB=0")
		}
	})

	t.Run("half_s3_credentials", func(t *testing.T) {
		cleanup := setEnvs(t, map[string]string{
			"S3_BUCKET":     "b",
			"S3_ACCESS_KEY": "AKIA",
		})
		defer cleanup()
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("expected error when only S3_ACCESS_KEY is set")
		}
	})

	t.Run("bad_duration", func(t *testing.T) {
		cleanup := setEnvs(t, map[string]string{"TRANSCRIBE_TIMEOUT": "soon"})
		defer cleanup()
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("expected error for unparseable duration")
		}
	})
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
