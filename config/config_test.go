package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "negative min items",
			mutate: func(cfg *Config) {
				cfg.MinItems = -1
			},
			wantErr: "min items",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff exceeds max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 10 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "empty data dir",
			mutate: func(cfg *Config) {
				cfg.DataDir = ""
			},
			wantErr: "data directory",
		},
		{
			name: "zero surge threshold",
			mutate: func(cfg *Config) {
				cfg.SurgeThreshold = 0
			},
			wantErr: "surge threshold",
		},
		{
			name: "upload enabled without endpoint",
			mutate: func(cfg *Config) {
				cfg.Upload.Enabled = true
				cfg.Upload.Bucket = "rankings"
				cfg.Upload.AccessKey = "key"
				cfg.Upload.SecretKey = "secret"
			},
			wantErr: "upload endpoint",
		},
		{
			name: "upload enabled without credentials",
			mutate: func(cfg *Config) {
				cfg.Upload.Enabled = true
				cfg.Upload.Endpoint = "minio.local:9000"
				cfg.Upload.Bucket = "rankings"
			},
			wantErr: "upload credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AppID = "test-app-id"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestRequireAppID(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.RequireAppID(); err == nil {
		t.Fatalf("empty APP_ID should be rejected for fetch runs")
	}
	cfg.AppID = "test-app-id"
	if err := cfg.RequireAppID(); err != nil {
		t.Fatalf("RequireAppID with credential: %v", err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("RANKWATCH_TEST_INT", "42")
	value, ok, err := EnvInt("RANKWATCH_TEST_INT")
	if err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (42, true, nil)", value, ok, err)
	}

	t.Setenv("RANKWATCH_TEST_INT", "not-a-number")
	if _, _, err := EnvInt("RANKWATCH_TEST_INT"); err == nil {
		t.Fatalf("expected parse error for non-integer value")
	}

	if _, ok, err := EnvInt("RANKWATCH_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report (false, nil), got (%v, %v)", ok, err)
	}

	t.Setenv("RANKWATCH_TEST_BOOL", "true")
	flag, ok, err := EnvBool("RANKWATCH_TEST_BOOL")
	if err != nil || !ok || !flag {
		t.Fatalf("EnvBool = (%v, %v, %v), want (true, true, nil)", flag, ok, err)
	}
}
