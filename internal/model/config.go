package model

import "time"

// Config holds the complete runtime configuration
type Config struct {
	Jurisdiction JurisdictionConfig `yaml:"jurisdiction" mapstructure:"jurisdiction"`
	Filter       FilterConfig       `yaml:"filter" mapstructure:"filter"`
	Match        MatchConfig        `yaml:"match" mapstructure:"match"`
	Score        ScoreConfig        `yaml:"score" mapstructure:"score"`
	Similarity   SimilarityConfig   `yaml:"similarity" mapstructure:"similarity"`
	SlotFill     SlotFillConfig     `yaml:"slotfill" mapstructure:"slotfill"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" mapstructure:"telemetry"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Proxy        ProxyConfig        `yaml:"proxy" mapstructure:"proxy"`
	CatalogPath  string             `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// JurisdictionConfig describes the service area
type JurisdictionConfig struct {
	Name         string     `yaml:"name" mapstructure:"name"`
	Places       []string   `yaml:"places" mapstructure:"places"`
	PINRanges    []PINRange `yaml:"pin_ranges" mapstructure:"pin_ranges"`
	PostalPrefix string     `yaml:"postal_prefix" mapstructure:"postal_prefix"` // leading digits of in-area postal codes
}

// PINRange is an inclusive postal-code range
type PINRange struct {
	Start int `yaml:"start" mapstructure:"start"`
	End   int `yaml:"end" mapstructure:"end"`
}

// FilterConfig tunes the validity rules
type FilterConfig struct {
	ShortMessageWords     int           `yaml:"short_message_words" mapstructure:"short_message_words"`
	RepeatedPairs         int           `yaml:"repeated_pairs" mapstructure:"repeated_pairs"`
	RepeatRatio           float64       `yaml:"repeat_ratio" mapstructure:"repeat_ratio"`
	MinMeaningfulLength   int           `yaml:"min_meaningful_length" mapstructure:"min_meaningful_length"`
	BulkWindow            int           `yaml:"bulk_window" mapstructure:"bulk_window"`
	BulkPrefixChars       int           `yaml:"bulk_prefix_chars" mapstructure:"bulk_prefix_chars"`
	BulkSharedTokens      int           `yaml:"bulk_shared_tokens" mapstructure:"bulk_shared_tokens"`
	BulkSimilarPairs      int           `yaml:"bulk_similar_pairs" mapstructure:"bulk_similar_pairs"`
	HistoryTTL            time.Duration `yaml:"history_ttl" mapstructure:"history_ttl"`
	HistoryMaxEntries     int           `yaml:"history_max_entries" mapstructure:"history_max_entries"`
	MinJurisdictionLength int           `yaml:"min_jurisdiction_length" mapstructure:"min_jurisdiction_length"`
}

// MatchConfig tunes case deduplication
type MatchConfig struct {
	DateWindowDays  int           `yaml:"date_window_days" mapstructure:"date_window_days"`
	Threshold       float64       `yaml:"threshold" mapstructure:"threshold"`
	LexicalWeight   float64       `yaml:"lexical_weight" mapstructure:"lexical_weight"`
	SemanticWeight  float64       `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" mapstructure:"provider_timeout"`
	MaxAttempts     int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ScoreConfig tunes prioritization
type ScoreConfig struct {
	Alpha           float64       `yaml:"alpha" mapstructure:"alpha"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" mapstructure:"provider_timeout"`
}

// SimilarityConfig selects the semantic similarity backend
type SimilarityConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // lexical, openai, ollama
	Model             string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey            string        `yaml:"-" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// SlotFillConfig selects the conversational slot-filler backend
type SlotFillConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // "", openai, anthropic, ollama
	Model             string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey            string        `yaml:"-" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 keeps the shared backend limit
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// StoreConfig selects where the case collection lives
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // json, sqlite, postgres, memory
	Path   string `yaml:"path,omitempty" mapstructure:"path"`
	DSN    string `yaml:"-" mapstructure:"dsn"`
}

// CacheConfig controls the embedding cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig sizes worker pools
type ConcurrencyConfig struct {
	Workers         int `yaml:"workers" mapstructure:"workers"`
	SimilarityCalls int `yaml:"similarity_calls" mapstructure:"similarity_calls"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// TelemetryConfig controls trace export
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Insecure    bool   `yaml:"insecure" mapstructure:"insecure"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// ServerConfig controls the HTTP surface
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ProxyConfig routes backend API traffic; empty values fall back to the environment
type ProxyConfig struct {
	HTTP    string `yaml:"http,omitempty" mapstructure:"http"`
	HTTPS   string `yaml:"https,omitempty" mapstructure:"https"`
	NoProxy string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Jurisdiction: JurisdictionConfig{
			Name:         "Uttar Pradesh",
			Places:       DefaultPlaces(),
			PINRanges:    []PINRange{{Start: 200000, End: 299999}},
			PostalPrefix: "2",
		},
		Filter: FilterConfig{
			ShortMessageWords:     10,
			RepeatedPairs:         3,
			RepeatRatio:           0.4,
			MinMeaningfulLength:   15,
			BulkWindow:            3,
			BulkPrefixChars:       50,
			BulkSharedTokens:      2,
			BulkSimilarPairs:      2,
			HistoryTTL:            24 * time.Hour,
			HistoryMaxEntries:     20,
			MinJurisdictionLength: 5,
		},
		Match: MatchConfig{
			DateWindowDays:  2,
			Threshold:       0.2,
			LexicalWeight:   0.6,
			SemanticWeight:  0.4,
			ProviderTimeout: 10 * time.Second,
			MaxAttempts:     3,
		},
		Score: ScoreConfig{
			Alpha:           0.5,
			ProviderTimeout: 10 * time.Second,
		},
		Similarity: SimilarityConfig{
			Provider:          "lexical",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		SlotFill: SlotFillConfig{
			Timeout:   30 * time.Second,
			MaxTokens: 1024,
		},
		Store: StoreConfig{
			Driver: "json",
			Path:   "cases.json",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".grievance-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:         4,
			SimilarityCalls: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "grievance",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
