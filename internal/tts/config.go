package tts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config contains all TTS configuration options.
type Config struct {
	// Engine selection and voice
	Engine   string `yaml:"engine" env:"SOUNDBOX_ENGINE"`
	Language string `yaml:"language" env:"SOUNDBOX_LANGUAGE"`
	Speaker  string `yaml:"speaker" env:"SOUNDBOX_SPEAKER"`
	Model    string `yaml:"model" env:"SOUNDBOX_MODEL"`

	// Concurrency is the number of synthesis calls allowed in flight
	Concurrency int `yaml:"concurrency" env:"SOUNDBOX_CONCURRENCY"`

	Segment SegmentConfig `yaml:"segment"`
	Sarvam  SarvamConfig  `yaml:"sarvam"`
	Mock    MockConfig    `yaml:"mock"`
	Cache   CacheConfig   `yaml:"cache"`
}

// SegmentConfig contains text segmentation limits.
type SegmentConfig struct {
	MaxLength           int  `yaml:"max_length" env:"SOUNDBOX_MAX_LENGTH"`
	MinForceSplitLength int  `yaml:"min_force_split_length" env:"SOUNDBOX_MIN_FORCE_SPLIT_LENGTH"`
	IndicDelimiters     bool `yaml:"indic_delimiters"`
}

// SarvamConfig contains Sarvam API settings.
type SarvamConfig struct {
	APIKey            string        `yaml:"api_key" env:"SARVAM_API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"SARVAM_BASE_URL"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// MockConfig contains Mock TTS engine specific settings for testing.
type MockConfig struct {
	SampleRate     int     `yaml:"sample_rate"`
	Channels       int     `yaml:"channels"`
	BitDepth       int     `yaml:"bit_depth"`
	WordsPerMinute int     `yaml:"words_per_minute"`
	FailureRate    float64 `yaml:"failure_rate"`
}

// CacheConfig contains fragment cache settings.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Backend  string `yaml:"backend"` // "memory", "disk" or "badger"
	Dir      string `yaml:"dir" env:"SOUNDBOX_CACHE_DIR"`
	MemoryMB int    `yaml:"memory_mb"`
	DiskMB   int    `yaml:"disk_mb"`
	TTLDays  int    `yaml:"ttl_days"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:      string(EngineSarvam),
		Language:    "hi-IN",
		Speaker:     "anushka",
		Model:       "bulbul:v2",
		Concurrency: 1,
		Segment: SegmentConfig{
			MaxLength:           DefaultMaxLength,
			MinForceSplitLength: DefaultMinForceSplitLength,
		},
		Sarvam: SarvamConfig{
			BaseURL:           "https://api.sarvam.ai",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
		},
		Mock: MockConfig{
			SampleRate:     22050,
			Channels:       1,
			BitDepth:       16,
			WordsPerMinute: 150,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Backend:  "disk",
			MemoryMB: 64,
			DiskMB:   512,
			TTLDays:  7,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if _, err := ValidateEngineSelection("", c); err != nil {
		return err
	}
	seg := Segmenter{MaxLength: c.Segment.MaxLength, MinForceSplitLength: c.Segment.MinForceSplitLength}
	if err := seg.Validate(); err != nil {
		return err
	}
	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", c.Concurrency)
	}
	switch c.Cache.Backend {
	case "memory", "disk", "badger":
	default:
		return fmt.Errorf("unknown cache backend %q (use memory, disk or badger)", c.Cache.Backend)
	}
	if c.Sarvam.RequestsPerMinute < 0 {
		return fmt.Errorf("sarvam requests_per_minute must not be negative, got %d", c.Sarvam.RequestsPerMinute)
	}
	if c.Mock.FailureRate < 0 || c.Mock.FailureRate > 1 {
		return fmt.Errorf("mock failure_rate must be between 0 and 1, got %.2f", c.Mock.FailureRate)
	}
	return nil
}

// LoadConfigFromViper loads TTS configuration from Viper, then applies
// environment overrides.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("tts.engine") {
		cfg.Engine = viper.GetString("tts.engine")
	}
	if viper.IsSet("tts.language") {
		cfg.Language = viper.GetString("tts.language")
	}
	if viper.IsSet("tts.speaker") {
		cfg.Speaker = viper.GetString("tts.speaker")
	}
	if viper.IsSet("tts.model") {
		cfg.Model = viper.GetString("tts.model")
	}
	if viper.IsSet("tts.concurrency") {
		cfg.Concurrency = viper.GetInt("tts.concurrency")
	}

	// Segmentation
	if viper.IsSet("tts.segment.max_length") {
		cfg.Segment.MaxLength = viper.GetInt("tts.segment.max_length")
	}
	if viper.IsSet("tts.segment.min_force_split_length") {
		cfg.Segment.MinForceSplitLength = viper.GetInt("tts.segment.min_force_split_length")
	}
	if viper.IsSet("tts.segment.indic_delimiters") {
		cfg.Segment.IndicDelimiters = viper.GetBool("tts.segment.indic_delimiters")
	}

	cfg.Sarvam = loadSarvamConfig(cfg.Sarvam)
	cfg.Mock = loadMockConfig(cfg.Mock)
	cfg.Cache = loadCacheConfig(cfg.Cache)

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid TTS configuration: %w", err)
	}

	return cfg, nil
}

// loadSarvamConfig loads Sarvam-specific configuration from Viper.
func loadSarvamConfig(cfg SarvamConfig) SarvamConfig {
	if viper.IsSet("tts.sarvam.api_key") {
		cfg.APIKey = viper.GetString("tts.sarvam.api_key")
	}
	if viper.IsSet("tts.sarvam.base_url") {
		cfg.BaseURL = viper.GetString("tts.sarvam.base_url")
	}
	if viper.IsSet("tts.sarvam.timeout") {
		if d, err := time.ParseDuration(viper.GetString("tts.sarvam.timeout")); err == nil {
			cfg.Timeout = d
		}
	}
	if viper.IsSet("tts.sarvam.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("tts.sarvam.requests_per_minute")
	}
	return cfg
}

// loadMockConfig loads Mock TTS-specific configuration from Viper.
func loadMockConfig(cfg MockConfig) MockConfig {
	if viper.IsSet("tts.mock.sample_rate") {
		cfg.SampleRate = viper.GetInt("tts.mock.sample_rate")
	}
	if viper.IsSet("tts.mock.channels") {
		cfg.Channels = viper.GetInt("tts.mock.channels")
	}
	if viper.IsSet("tts.mock.bit_depth") {
		cfg.BitDepth = viper.GetInt("tts.mock.bit_depth")
	}
	if viper.IsSet("tts.mock.words_per_minute") {
		cfg.WordsPerMinute = viper.GetInt("tts.mock.words_per_minute")
	}
	if viper.IsSet("tts.mock.failure_rate") {
		cfg.FailureRate = viper.GetFloat64("tts.mock.failure_rate")
	}
	return cfg
}

// loadCacheConfig loads fragment cache configuration from Viper.
func loadCacheConfig(cfg CacheConfig) CacheConfig {
	if viper.IsSet("tts.cache.enabled") {
		cfg.Enabled = viper.GetBool("tts.cache.enabled")
	}
	if viper.IsSet("tts.cache.backend") {
		cfg.Backend = viper.GetString("tts.cache.backend")
	}
	if viper.IsSet("tts.cache.dir") {
		cfg.Dir = viper.GetString("tts.cache.dir")
	}
	if viper.IsSet("tts.cache.memory_mb") {
		cfg.MemoryMB = viper.GetInt("tts.cache.memory_mb")
	}
	if viper.IsSet("tts.cache.disk_mb") {
		cfg.DiskMB = viper.GetInt("tts.cache.disk_mb")
	}
	if viper.IsSet("tts.cache.ttl_days") {
		cfg.TTLDays = viper.GetInt("tts.cache.ttl_days")
	}
	return cfg
}

// SetDefaults sets default values in Viper for TTS configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("tts.engine", defaults.Engine)
	viper.SetDefault("tts.language", defaults.Language)
	viper.SetDefault("tts.speaker", defaults.Speaker)
	viper.SetDefault("tts.model", defaults.Model)
	viper.SetDefault("tts.concurrency", defaults.Concurrency)

	viper.SetDefault("tts.segment.max_length", defaults.Segment.MaxLength)
	viper.SetDefault("tts.segment.min_force_split_length", defaults.Segment.MinForceSplitLength)
	viper.SetDefault("tts.segment.indic_delimiters", defaults.Segment.IndicDelimiters)

	viper.SetDefault("tts.sarvam.base_url", defaults.Sarvam.BaseURL)
	viper.SetDefault("tts.sarvam.timeout", defaults.Sarvam.Timeout.String())
	viper.SetDefault("tts.sarvam.requests_per_minute", defaults.Sarvam.RequestsPerMinute)

	viper.SetDefault("tts.mock.sample_rate", defaults.Mock.SampleRate)
	viper.SetDefault("tts.mock.channels", defaults.Mock.Channels)
	viper.SetDefault("tts.mock.bit_depth", defaults.Mock.BitDepth)
	viper.SetDefault("tts.mock.words_per_minute", defaults.Mock.WordsPerMinute)
	viper.SetDefault("tts.mock.failure_rate", defaults.Mock.FailureRate)

	viper.SetDefault("tts.cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("tts.cache.backend", defaults.Cache.Backend)
	viper.SetDefault("tts.cache.memory_mb", defaults.Cache.MemoryMB)
	viper.SetDefault("tts.cache.disk_mb", defaults.Cache.DiskMB)
	viper.SetDefault("tts.cache.ttl_days", defaults.Cache.TTLDays)
}

// NewSegmenterFromConfig builds the segmenter described by cfg.
func NewSegmenterFromConfig(cfg SegmentConfig) *Segmenter {
	s := NewSegmenter(cfg.MaxLength, cfg.MinForceSplitLength)
	if cfg.IndicDelimiters {
		s.Strategies = IndicStrategies()
	}
	return s
}
