// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"os"
	"testing"
	"time"

	"github.com/danielhkuo/taiyo/policy"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("DATABASE_URL", "postgres://test")
}

func TestParseFlags_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9068 {
		t.Errorf("Expected port 9068, got %d", cfg.Port)
	}
	if cfg.PublicPort != cfg.Port {
		t.Errorf("Expected public port to follow port, got %d", cfg.PublicPort)
	}
	if cfg.StartCoin != 10 || cfg.FMaxPrice != 300 || cfg.ExtraPrice != 150 {
		t.Errorf("Unexpected economy defaults: %+v", cfg.Prices())
	}
	if cfg.SaveExportCooldown != 24*time.Hour {
		t.Errorf("Expected 24h export cooldown, got %v", cfg.SaveExportCooldown)
	}
	if cfg.DailyDownloadLimit != 1<<30 {
		t.Errorf("Expected 1 GiB download limit, got %d", cfg.DailyDownloadLimit)
	}
	if !cfg.BatchEnabled {
		t.Error("Expected batch downloads enabled by default")
	}
}

func TestParseFlags_EnvVars(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("AUTHORIZATION_NEEDED", "true")
	t.Setenv("AUTHORIZATION_MODE", "1")
	t.Setenv("SAVE_EXPORT_COOLDOWN", "60")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	p := cfg.Policy()
	if !p.AuthorizationNeeded || p.Mode != policy.ModeEmail {
		t.Errorf("Unexpected policy config: %+v", p)
	}
	if cfg.SaveExportCooldown != time.Minute {
		t.Errorf("Expected bare seconds to parse, got %v", cfg.SaveExportCooldown)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "postgres://cli"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://cli" {
		t.Errorf("CLI should override env: got %s", cfg.DatabaseURL)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, nil},
		{"bad port", map[string]string{"PORT": "abc"}, nil},
		{"bad mode", nil, []string{"-auth-mode", "3"}},
		{"discord without salt", map[string]string{"AUTHORIZATION_MODE": "2"}, nil},
		{"zero logins", nil, []string{"-logins", "0"}},
		{"unknown flag", nil, []string{"-nope"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := ParseFlags(tc.args); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParseFlags_EnvFile(t *testing.T) {
	setBaseEnv(t)
	path := t.TempDir() + "/test.env"
	if err := writeFile(path, "START_COIN=42\nPORT=7000\n"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("PORT", "7500")

	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StartCoin != 42 {
		t.Errorf("Expected START_COIN from file, got %d", cfg.StartCoin)
	}
	if cfg.Port != 7500 {
		t.Errorf("Environment should win over file: expected 7500, got %d", cfg.Port)
	}
}

func TestBaseURL(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		expected string
	}{
		{"host and port", Config{PublicHost: "10.0.0.2", PublicPort: 9068}, "http://10.0.0.2:9068/"},
		{"override", Config{PublicHost: "10.0.0.2", PublicPort: 9068, OverrideHost: "https://taiyo.example/"}, "https://taiyo.example/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.BaseURL(); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
