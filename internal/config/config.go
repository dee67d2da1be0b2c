package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Taxonomy sources loaded at startup and on every reload tick.
	// Local paths, file:// or s3://bucket/key.
	KEGGSource string
	NCBISource string

	// Parsing
	LastCodeWins bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Source limits
	MaxSourceBytes int64

	// Job state
	JobTTL time.Duration

	// Periodic reload of configured sources; zero disables it.
	ReloadInterval time.Duration

	// Query latency window for /api/stats/queries
	StatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// S3
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("TAXINDEX_API_KEY"),

		KEGGSource: os.Getenv("KEGG_TAXONOMY_SOURCE"),
		NCBISource: os.Getenv("NCBI_TAXONOMY_SOURCE"),

		LastCodeWins: envBool("TAXONOMY_LAST_CODE_WINS", false),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 16),

		MaxSourceBytes: envInt64("MAX_SOURCE_BYTES", 52428800), // 50MB

		JobTTL:         envDuration("JOB_TTL", 1*time.Hour),
		ReloadInterval: envDuration("RELOAD_INTERVAL", 0),
		StatsWindow:    envDuration("STATS_WINDOW", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3PathStyle: envBool("S3_PATH_STYLE", false),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.ReloadInterval < 0 {
		cfg.ReloadInterval = 0
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("TAXINDEX_API_KEY is required")
	}
	if c.ReloadInterval > 0 && c.KEGGSource == "" && c.NCBISource == "" {
		return fmt.Errorf("RELOAD_INTERVAL needs KEGG_TAXONOMY_SOURCE or NCBI_TAXONOMY_SOURCE")
	}
	return nil
}

// Sources maps dialect names to their configured locations.
func (c Config) Sources() map[string]string {
	out := make(map[string]string, 2)
	if c.KEGGSource != "" {
		out["kegg"] = c.KEGGSource
	}
	if c.NCBISource != "" {
		out["ncbi"] = c.NCBISource
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
