package model

import "time"

// Config holds the complete rflocate configuration
type Config struct {
	Model                PathLossModel     `yaml:"model" mapstructure:"model"`
	Origin               OriginConfig      `yaml:"origin" mapstructure:"origin"`
	Bounds               BoundsConfig      `yaml:"bounds" mapstructure:"bounds"`
	MinStationDistanceKm float64           `yaml:"min_station_distance_km" mapstructure:"min_station_distance_km"`
	Locate               LocateConfig      `yaml:"locate" mapstructure:"locate"`
	Cache                CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency          ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output               OutputConfig      `yaml:"output" mapstructure:"output"`
	Logging              LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Metrics              MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Tracing              TracingConfig     `yaml:"tracing" mapstructure:"tracing"`
	LLM                  LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// OriginConfig is the geographic reference point of the local planar frame
type OriginConfig struct {
	Lat float64 `yaml:"lat" mapstructure:"lat"`
	Lon float64 `yaml:"lon" mapstructure:"lon"`
}

// BoundsConfig is the plausible area for an emitter, in planar km
type BoundsConfig struct {
	MinX float64 `yaml:"min_x" mapstructure:"min_x"`
	MinY float64 `yaml:"min_y" mapstructure:"min_y"`
	MaxX float64 `yaml:"max_x" mapstructure:"max_x"`
	MaxY float64 `yaml:"max_y" mapstructure:"max_y"`
}

// LocateConfig tunes the location engine
type LocateConfig struct {
	MaxIterations   int  `yaml:"max_iterations" mapstructure:"max_iterations"`
	FuncEvaluations int  `yaml:"func_evaluations" mapstructure:"func_evaluations"`
	Parallel        bool `yaml:"parallel" mapstructure:"parallel"` // Run estimators concurrently
}

// CacheConfig controls in-process memoisation of reports
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	HTML          bool `yaml:"html" mapstructure:"html"` // Also render the Markdown report to HTML
}

// LoggingConfig selects the structured log handler
type LoggingConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format    string `yaml:"format" mapstructure:"format"` // text or json
	AddSource bool   `yaml:"add_source" mapstructure:"add_source"`
}

// MetricsConfig controls prometheus output
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"` // node_exporter textfile, empty disables
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter    string  `yaml:"exporter" mapstructure:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"` // OTLP gRPC endpoint
	Insecure    bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// LLMConfig holds optional narrative summary settings
type LLMConfig struct {
	Provider  string  `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model     string  `yaml:"model" mapstructure:"model"`
	APIKey    string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second, 0 disables limiting
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Model: DefaultPathLossModel(),
		Origin: OriginConfig{
			Lat: 39.9042,
			Lon: 116.4074,
		},
		Bounds: BoundsConfig{
			MinX: -50,
			MinY: -50,
			MaxX: 150,
			MaxY: 150,
		},
		MinStationDistanceKm: 1.0,
		Locate: LocateConfig{
			MaxIterations:   200,
			FuncEvaluations: 2000,
			Parallel:        true,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRatio: 1.0,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1000,
		},
	}
}
