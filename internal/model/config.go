package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete claimstore configuration
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Detector DetectorConfig `yaml:"detector" mapstructure:"detector"`
	Query    QueryConfig    `yaml:"query" mapstructure:"query"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig controls the durable repository
type StoreConfig struct {
	Path       string        `yaml:"path" mapstructure:"path"`               // Badger directory
	InMemory   bool          `yaml:"in_memory" mapstructure:"in_memory"`     // No disk persistence
	SyncWrites bool          `yaml:"sync_writes" mapstructure:"sync_writes"` // fsync every commit
	GCInterval time.Duration `yaml:"gc_interval" mapstructure:"gc_interval"` // Value log GC, 0 disables
}

// DetectorConfig controls relationship detection
type DetectorConfig struct {
	Window          Window              `yaml:"window" mapstructure:"window"`
	Fanout          string              `yaml:"fanout" mapstructure:"fanout"`                     // earliest | all
	Compatibility   map[string][]string `yaml:"compatibility" mapstructure:"compatibility"`       // kind -> comparable kinds
	NegationMarkers []string            `yaml:"negation_markers" mapstructure:"negation_markers"` // Words that flip polarity
	PositiveTerms   []string            `yaml:"positive_terms" mapstructure:"positive_terms"`     // Upward directional words
	NegativeTerms   []string            `yaml:"negative_terms" mapstructure:"negative_terms"`     // Downward directional words
}

// QueryConfig controls the query engine
type QueryConfig struct {
	CacheTTL     time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`         // 0 disables the result cache
	CacheCleanup time.Duration `yaml:"cache_cleanup" mapstructure:"cache_cleanup"` // Expired item sweep interval
}

// IngestConfig controls batch ingestion
type IngestConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // Parallel candidate decoders
}

// ServerConfig controls the HTTP query surface
type ServerConfig struct {
	Addr              string        `yaml:"addr" mapstructure:"addr"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per client
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"` // CORS, empty disables
}

// LogConfig controls structured logging
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // dev | prod
}

// DefaultCompatibility is the kind comparison table. A recommendation is
// never compared against a factual claim.
func DefaultCompatibility() map[string][]string {
	return map[string][]string{
		string(KindPrediction):     {string(KindPrediction), string(KindOpinion)},
		string(KindFactual):        {string(KindFactual)},
		string(KindOpinion):        {string(KindOpinion), string(KindPrediction), string(KindRecommendation)},
		string(KindRecommendation): {string(KindRecommendation), string(KindOpinion)},
	}
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Store: StoreConfig{
			Path:       filepath.Join(home, ".claimstore", "data"),
			SyncWrites: true,
			GCInterval: 5 * time.Minute,
		},
		Detector: DetectorConfig{
			Window:          DefaultWindow,
			Fanout:          "earliest",
			Compatibility:   DefaultCompatibility(),
			NegationMarkers: []string{"not", "no", "never", "won't", "isn't", "aren't", "don't", "doesn't"},
			PositiveTerms:   []string{"rise", "rising", "up", "increase", "grow", "higher", "bullish", "gain"},
			NegativeTerms:   []string{"fall", "falling", "down", "decrease", "shrink", "lower", "bearish", "drop"},
		},
		Query: QueryConfig{
			CacheTTL:     30 * time.Second,
			CacheCleanup: 5 * time.Minute,
		},
		Ingest: IngestConfig{
			Workers: runtime.NumCPU(),
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8787",
			RequestsPerSecond: 20,
			Burst:             40,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}
