package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secscan.yaml")
	configYAML := `
edgar:
  contact: research@example.com
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scan.MaxRPS != 9.8 {
		t.Fatalf("expected default max_rps 9.8, got %v", cfg.Scan.MaxRPS)
	}
	if cfg.Scan.CompanyConcurrency != 10 || cfg.Scan.DocConcurrency != 20 {
		t.Fatalf("expected default concurrency 10/20, got %d/%d",
			cfg.Scan.CompanyConcurrency, cfg.Scan.DocConcurrency)
	}
	if cfg.Scan.YearsBack != 5 {
		t.Fatalf("expected default lookback 5 years, got %d", cfg.Scan.YearsBack)
	}
	if len(cfg.Scan.Forms) != 6 {
		t.Fatalf("expected six default forms, got %v", cfg.Scan.Forms)
	}
	if cfg.Scan.MasterRecord != MasterRecordAlways {
		t.Fatalf("expected master_record default %q, got %q", MasterRecordAlways, cfg.Scan.MasterRecord)
	}
	if cfg.Archive.Backend != BackendLocal {
		t.Fatalf("expected local archive backend by default, got %q", cfg.Archive.Backend)
	}
	if got := cfg.Edgar.Timeout(); got != 60*time.Second {
		t.Fatalf("expected 60s request timeout, got %v", got)
	}
	if got := cfg.HTTP.Backoff(); len(got) != 3 || got[0] != 15*time.Second || got[2] != 60*time.Second {
		t.Fatalf("expected backoff [15s 30s 60s], got %v", got)
	}
	if got := cfg.Scan.MaxSaveBytes(); got != 20*1024*1024 {
		t.Fatalf("expected 20MiB save cap, got %d", got)
	}
	if got := cfg.Scan.ChunkBytes(); got != 256*1024 {
		t.Fatalf("expected 256KiB chunks, got %d", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secscan.yaml")
	configYAML := `
edgar:
  contact: research@example.com
  user_agent: custom-agent/2.0
  timeout_seconds: 30
scan:
  roster: universe.csv
  years_back: 2
  forms: ["10-K"]
  max_rps: 5
  company_concurrency: 4
  doc_concurrency: 8
  include_pdf: true
  master_record: on_match
http:
  max_retries: 2
  backoff_seconds: [1, 2]
archive:
  backend: gcs
  gcs_bucket: filings-bucket
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Edgar.UserAgent != "custom-agent/2.0" {
		t.Fatalf("expected user agent override, got %q", cfg.Edgar.UserAgent)
	}
	if cfg.Scan.Roster != "universe.csv" || cfg.Scan.YearsBack != 2 {
		t.Fatalf("expected scan overrides to apply: %+v", cfg.Scan)
	}
	if !cfg.Scan.IncludePDF || cfg.Scan.MasterRecord != MasterRecordOnMatch {
		t.Fatalf("expected pdf and master_record overrides: %+v", cfg.Scan)
	}
	if cfg.Archive.Backend != BackendGCS || cfg.Archive.GCSBucket != "filings-bucket" {
		t.Fatalf("expected gcs archive overrides: %+v", cfg.Archive)
	}
	set := cfg.Scan.FormSet()
	if _, ok := set["10-K"]; !ok || len(set) != 1 {
		t.Fatalf("expected form set {10-K}, got %v", set)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
}

func TestLoadMissingContact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secscan.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  max_rps: 5\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "contact") {
		t.Fatalf("expected contact error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	valid := func() Config {
		return Config{
			Edgar: EdgarConfig{Contact: "research@example.com"},
			Scan: ScanConfig{
				Roster:             "companies.csv",
				YearsBack:          5,
				Forms:              []string{"10-K"},
				MaxRPS:             9.8,
				CompanyConcurrency: 10,
				DocConcurrency:     20,
				MasterRecord:       MasterRecordAlways,
			},
			HTTP:    HTTPConfig{MaxRetries: 3, BackoffSeconds: []int{15}},
			Paths:   PathsConfig{ArchiveDir: "edgar_archive"},
			Archive: ArchiveConfig{Backend: BackendLocal},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("base config should validate, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rps", func(c *Config) { c.Scan.MaxRPS = 0 }},
		{"no forms", func(c *Config) { c.Scan.Forms = nil }},
		{"no roster", func(c *Config) { c.Scan.Roster = " " }},
		{"bad master record", func(c *Config) { c.Scan.MasterRecord = "sometimes" }},
		{"zero concurrency", func(c *Config) { c.Scan.CompanyConcurrency = 0 }},
		{"negative lookback", func(c *Config) { c.Scan.YearsBack = -1 }},
		{"no backoff", func(c *Config) { c.HTTP.BackoffSeconds = nil }},
		{"unknown backend", func(c *Config) { c.Archive.Backend = "s3" }},
		{"gcs without bucket", func(c *Config) { c.Archive.Backend = BackendGCS }},
		{"local without dir", func(c *Config) { c.Paths.ArchiveDir = "" }},
		{"resume above max", func(c *Config) {
			c.Scan.MaxStagingMB = 100
			c.Scan.ResumeStagingMB = 100
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		cfg := valid()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
