// Package config loads and validates scanner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Master-record policies for the master-text fallback path.
const (
	MasterRecordAlways  = "always"
	MasterRecordOnMatch = "on_match"
)

// Archive backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all scanner configuration knobs loaded via Viper.
type Config struct {
	Edgar   EdgarConfig   `mapstructure:"edgar"`
	Scan    ScanConfig    `mapstructure:"scan"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Status  StatusConfig  `mapstructure:"status"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// EdgarConfig identifies the client to EDGAR and locates its endpoints.
type EdgarConfig struct {
	// Contact is the identifying contact string EDGAR's access policy
	// requires on every request. The run aborts without it.
	Contact        string `mapstructure:"contact"`
	UserAgent      string `mapstructure:"user_agent"`
	DataBaseURL    string `mapstructure:"data_base_url"`
	ArchiveBaseURL string `mapstructure:"archive_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ScanConfig governs the crawl-and-scan engine.
type ScanConfig struct {
	Roster             string   `mapstructure:"roster"`
	YearsBack          int      `mapstructure:"years_back"`
	Forms              []string `mapstructure:"forms"`
	MaxRPS             float64  `mapstructure:"max_rps"`
	CompanyConcurrency int      `mapstructure:"company_concurrency"`
	DocConcurrency     int      `mapstructure:"doc_concurrency"`
	MaxSaveMB          int      `mapstructure:"max_save_mb"`
	ChunkKB            int      `mapstructure:"chunk_kb"`
	IncludePDF         bool     `mapstructure:"include_pdf"`
	MasterRecord       string   `mapstructure:"master_record"`
	// MaxStagingMB pauses admission of new companies while the staging
	// tree exceeds this size; 0 disables the check.
	MaxStagingMB    int `mapstructure:"max_staging_mb"`
	ResumeStagingMB int `mapstructure:"resume_staging_mb"`
}

// HTTPConfig configures retry behavior for outbound requests.
type HTTPConfig struct {
	MaxRetries     int   `mapstructure:"max_retries"`
	BackoffSeconds []int `mapstructure:"backoff_seconds"`
}

// PathsConfig locates local state on disk.
type PathsConfig struct {
	StagingDir   string `mapstructure:"staging_dir"`
	ProgressFile string `mapstructure:"progress_file"`
	ArchiveDir   string `mapstructure:"archive_dir"`
}

// ArchiveConfig selects the long-term storage backend for the flusher.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// StatusConfig controls the optional status HTTP server.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features. Level, when set,
// overrides the preset's default threshold (debug for development, info
// for production).
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SECSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("edgar.user_agent", "secscan/1.0")
	v.SetDefault("edgar.data_base_url", "https://data.sec.gov")
	v.SetDefault("edgar.archive_base_url", "https://www.sec.gov")
	v.SetDefault("edgar.timeout_seconds", 60)
	v.SetDefault("scan.roster", "companies.csv")
	v.SetDefault("scan.years_back", 5)
	v.SetDefault("scan.forms", []string{"10-K", "10-Q", "8-K", "20-F", "40-F", "6-K"})
	v.SetDefault("scan.max_rps", 9.8)
	v.SetDefault("scan.company_concurrency", 10)
	v.SetDefault("scan.doc_concurrency", 20)
	v.SetDefault("scan.max_save_mb", 20)
	v.SetDefault("scan.chunk_kb", 256)
	v.SetDefault("scan.include_pdf", false)
	v.SetDefault("scan.master_record", MasterRecordAlways)
	v.SetDefault("scan.max_staging_mb", 0)
	v.SetDefault("scan.resume_staging_mb", 0)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_seconds", []int{15, 30, 60})
	v.SetDefault("paths.staging_dir", "edgar_tmp/stage")
	v.SetDefault("paths.progress_file", "edgar_tmp/progress.txt")
	v.SetDefault("paths.archive_dir", "edgar_archive")
	v.SetDefault("archive.backend", BackendLocal)
	v.SetDefault("archive.prefix", "filings")
	v.SetDefault("logging.development", true)
}

// Validate rejects configurations the run cannot safely start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Edgar.Contact) == "" {
		return fmt.Errorf("edgar.contact is required: EDGAR's access policy demands an identifying contact on every request")
	}
	if strings.TrimSpace(c.Scan.Roster) == "" {
		return fmt.Errorf("scan.roster is required")
	}
	if c.Scan.MaxRPS <= 0 {
		return fmt.Errorf("scan.max_rps must be positive, got %v", c.Scan.MaxRPS)
	}
	if c.Scan.CompanyConcurrency <= 0 || c.Scan.DocConcurrency <= 0 {
		return fmt.Errorf("concurrency values must be positive")
	}
	if c.Scan.YearsBack <= 0 {
		return fmt.Errorf("scan.years_back must be positive, got %d", c.Scan.YearsBack)
	}
	if len(c.Scan.Forms) == 0 {
		return fmt.Errorf("scan.forms must not be empty")
	}
	switch c.Scan.MasterRecord {
	case MasterRecordAlways, MasterRecordOnMatch:
	default:
		return fmt.Errorf("scan.master_record must be %q or %q, got %q",
			MasterRecordAlways, MasterRecordOnMatch, c.Scan.MasterRecord)
	}
	switch c.Archive.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
			return fmt.Errorf("paths.archive_dir is required for the local archive backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Archive.GCSBucket) == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be %q or %q, got %q",
			BackendLocal, BackendGCS, c.Archive.Backend)
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be positive, got %d", c.HTTP.MaxRetries)
	}
	if len(c.HTTP.BackoffSeconds) == 0 {
		return fmt.Errorf("http.backoff_seconds must not be empty")
	}
	if c.Scan.MaxStagingMB > 0 && c.Scan.ResumeStagingMB >= c.Scan.MaxStagingMB {
		return fmt.Errorf("scan.resume_staging_mb must be below scan.max_staging_mb")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (c EdgarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the escalating backoff schedule as durations.
func (c HTTPConfig) Backoff() []time.Duration {
	out := make([]time.Duration, len(c.BackoffSeconds))
	for i, s := range c.BackoffSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// FormSet returns the allowed form types as a lookup set.
func (c ScanConfig) FormSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Forms))
	for _, f := range c.Forms {
		set[strings.ToUpper(strings.TrimSpace(f))] = struct{}{}
	}
	return set
}

// MaxSaveBytes returns the per-document size cap in bytes.
func (c ScanConfig) MaxSaveBytes() int64 {
	return int64(c.MaxSaveMB) * 1024 * 1024
}

// ChunkBytes returns the streaming chunk size in bytes.
func (c ScanConfig) ChunkBytes() int {
	return c.ChunkKB * 1024
}
