// Package config loads flood-cli configuration with viper and converts it
// into the immutable values threaded through the pipeline.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/flood-cli/internal/evaluate"
	"github.com/sells-group/flood-cli/internal/groundtruth"
	"github.com/sells-group/flood-cli/internal/matcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
	"github.com/sells-group/flood-cli/internal/resilience"
	"github.com/sells-group/flood-cli/internal/season"
	"github.com/sells-group/flood-cli/internal/source"
)

// Config holds the full application configuration.
type Config struct {
	Grid     raster.Grid    `yaml:"grid" mapstructure:"grid"`
	Season   SeasonConfig   `yaml:"season" mapstructure:"season"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Region   RegionConfig   `yaml:"region" mapstructure:"region"`
	Sweep    SweepConfig    `yaml:"sweep" mapstructure:"sweep"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Truth    TruthConfig    `yaml:"truth" mapstructure:"truth"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Matcher  MatcherConfig  `yaml:"matcher" mapstructure:"matcher"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SeasonConfig configures the historical years and the monsoon window.
type SeasonConfig struct {
	Years        []int `yaml:"years" mapstructure:"years"`
	MonsoonStart int   `yaml:"monsoon_start" mapstructure:"monsoon_start"`
	MonsoonEnd   int   `yaml:"monsoon_end" mapstructure:"monsoon_end"`
	PeriodDays   int   `yaml:"period_days" mapstructure:"period_days"`
}

// ClassifyConfig holds the single-run thresholds.
type ClassifyConfig struct {
	Threshold          float64 `yaml:"threshold" mapstructure:"threshold"`
	PerennialThreshold float64 `yaml:"perennial_threshold" mapstructure:"perennial_threshold"`
	WeekFreq           float64 `yaml:"week_freq" mapstructure:"week_freq"`
	YearFreq           float64 `yaml:"year_freq" mapstructure:"year_freq"`
	Sensor             string  `yaml:"sensor" mapstructure:"sensor"`
	Band               string  `yaml:"band" mapstructure:"band"`
	Year               int     `yaml:"year" mapstructure:"year"`
	Period             int     `yaml:"period" mapstructure:"period"`
}

// RegionConfig configures region extraction.
type RegionConfig struct {
	DilationM    float64 `yaml:"dilation_m" mapstructure:"dilation_m"`
	MinAreaSqm   float64 `yaml:"min_area_sqm" mapstructure:"min_area_sqm"`
	ScaleM       float64 `yaml:"scale_m" mapstructure:"scale_m"`
	Connectivity int     `yaml:"connectivity" mapstructure:"connectivity"`
}

// SweepConfig configures the accuracy sweep.
type SweepConfig struct {
	Thresholds           []float64 `yaml:"thresholds" mapstructure:"thresholds"`
	PerennialThresholds  []float64 `yaml:"perennial_thresholds" mapstructure:"perennial_thresholds"`
	WeekFreqs            []float64 `yaml:"week_freqs" mapstructure:"week_freqs"`
	YearFreqs            []float64 `yaml:"year_freqs" mapstructure:"year_freqs"`
	Year                 int       `yaml:"year" mapstructure:"year"`
	Period               int       `yaml:"period" mapstructure:"period"`
	Method               string    `yaml:"method" mapstructure:"method"`
	PredOverlap          float64   `yaml:"pred_overlap" mapstructure:"pred_overlap"`
	TruthOverlap         float64   `yaml:"truth_overlap" mapstructure:"truth_overlap"`
	PseudoNegativeFactor float64   `yaml:"pseudo_negative_factor" mapstructure:"pseudo_negative_factor"`
}

// BatchConfig lists the selections classified by the batch command.
type BatchConfig struct {
	Years   []int `yaml:"years" mapstructure:"years"`
	Periods []int `yaml:"periods" mapstructure:"periods"`
}

// TruthConfig locates the ground truth.
type TruthConfig struct {
	Path       string  `yaml:"path" mapstructure:"path"`
	Dir        string  `yaml:"dir" mapstructure:"dir"`
	MinAreaSqm float64 `yaml:"min_area_sqm" mapstructure:"min_area_sqm"`
	Value      float64 `yaml:"value" mapstructure:"value"`
	NameField  string  `yaml:"name_field" mapstructure:"name_field"`
}

// SourceConfig selects and tunes the observation backend.
type SourceConfig struct {
	Driver        string        `yaml:"driver" mapstructure:"driver"`
	Path          string        `yaml:"path" mapstructure:"path"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec    float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	Retry         RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit       CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig configures exponential backoff for transient failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the backend circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	Probes           int `yaml:"probes" mapstructure:"probes"`
}

// MatcherConfig configures the nearest-in-time search per sensor.
type MatcherConfig struct {
	S1WindowDays      int      `yaml:"s1_window_days" mapstructure:"s1_window_days"`
	S2WindowDays      int      `yaml:"s2_window_days" mapstructure:"s2_window_days"`
	S1Bands           []string `yaml:"s1_bands" mapstructure:"s1_bands"`
	S2Bands           []string `yaml:"s2_bands" mapstructure:"s2_bands"`
	SamplesPerPolygon int      `yaml:"samples_per_polygon" mapstructure:"samples_per_polygon"`
	Seed              uint64   `yaml:"seed" mapstructure:"seed"`
}

// ExportConfig configures region and report outputs.
type ExportConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// StoreConfig configures the run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the results API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FLOOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("grid.cell_size", 10)
	v.SetDefault("season.years", []int{2018, 2019, 2020, 2021, 2022, 2023, 2024})
	v.SetDefault("season.monsoon_start", 5)
	v.SetDefault("season.monsoon_end", 10)
	v.SetDefault("season.period_days", season.DefaultPeriodDays)
	v.SetDefault("classify.threshold", -16)
	v.SetDefault("classify.perennial_threshold", 0.9)
	v.SetDefault("classify.week_freq", 0.6)
	v.SetDefault("classify.year_freq", 0.9)
	v.SetDefault("classify.sensor", "S1")
	v.SetDefault("classify.band", "VV")
	v.SetDefault("region.dilation_m", 50)
	v.SetDefault("region.min_area_sqm", 100000)
	v.SetDefault("region.scale_m", 0)
	v.SetDefault("region.connectivity", 8)
	v.SetDefault("sweep.method", "cells")
	v.SetDefault("sweep.pred_overlap", evaluate.DefaultPredOverlap)
	v.SetDefault("sweep.truth_overlap", evaluate.DefaultTruthOverlap)
	v.SetDefault("sweep.pseudo_negative_factor", evaluate.DefaultPseudoNegativeFactor)
	v.SetDefault("truth.min_area_sqm", groundtruth.DefaultMinAreaSqm)
	v.SetDefault("truth.value", 1)
	v.SetDefault("truth.name_field", "name")
	v.SetDefault("truth.dir", "/tmp/flood-truth")
	v.SetDefault("source.driver", "csv")
	v.SetDefault("source.timeout_secs", 60)
	v.SetDefault("source.rate_per_sec", 5)
	v.SetDefault("source.burst", 5)
	v.SetDefault("source.max_concurrent", 4)
	v.SetDefault("source.retry.max_attempts", 3)
	v.SetDefault("source.retry.initial_backoff_ms", 500)
	v.SetDefault("source.retry.max_backoff_ms", 30000)
	v.SetDefault("source.retry.multiplier", 2.0)
	v.SetDefault("source.retry.jitter_fraction", 0.25)
	v.SetDefault("source.circuit.failure_threshold", 5)
	v.SetDefault("source.circuit.reset_timeout_secs", 30)
	v.SetDefault("source.circuit.probes", 1)
	v.SetDefault("matcher.s1_window_days", 7)
	v.SetDefault("matcher.s2_window_days", 3)
	v.SetDefault("matcher.s1_bands", model.RadarBands)
	v.SetDefault("matcher.s2_bands", model.OpticalBands)
	v.SetDefault("matcher.samples_per_polygon", 10)
	v.SetDefault("matcher.seed", 42)
	v.SetDefault("export.dir", "out")
	v.SetDefault("export.formats", []string{"shapefile", "csv", "ewkb", "xlsx", "yaml"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "flood.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Params returns the single-run parameter set.
func (c *Config) Params() model.Params {
	return model.Params{
		Threshold:          c.Classify.Threshold,
		PerennialThreshold: c.Classify.PerennialThreshold,
		WeekFreq:           c.Classify.WeekFreq,
		YearFreq:           c.Classify.YearFreq,
		DilationM:          c.Region.DilationM,
		MinAreaSqm:         c.Region.MinAreaSqm,
	}
}

// SeasonWindow returns the monsoon season definition.
func (c *Config) SeasonWindow() season.Season {
	return season.Season{
		StartMonth: c.Season.MonsoonStart,
		EndMonth:   c.Season.MonsoonEnd,
		PeriodDays: c.Season.PeriodDays,
	}
}

// RegionOptions returns the labelling scale and connectivity.
func (c *Config) RegionOptions() region.Options {
	return region.Options{
		DilationM:    c.Region.DilationM,
		MinAreaSqm:   c.Region.MinAreaSqm,
		ScaleM:       c.Region.ScaleM,
		Connectivity: c.Region.Connectivity,
	}
}

// Filter returns the observation filter used by the period composer.
func (c *Config) Filter() source.Filter {
	return source.Filter{Sensor: c.Classify.Sensor, Bands: []string{c.Classify.Band}}
}

// Space returns the sweep grid. Empty lists fall back to Params.
func (c *Config) Space() evaluate.Space {
	return evaluate.Space{
		Thresholds:          c.Sweep.Thresholds,
		PerennialThresholds: c.Sweep.PerennialThresholds,
		WeekFreqs:           c.Sweep.WeekFreqs,
		YearFreqs:           c.Sweep.YearFreqs,
	}
}

// SweepSelection is the (year, period) the sweep is evaluated on.
func (c *Config) SweepSelection() model.PeriodKey {
	return model.PeriodKey{Year: c.Sweep.Year, Index: c.Sweep.Period}
}

// Sensors returns the radar and optical matcher settings.
func (c *Config) Sensors() (radar, optical matcher.Sensor) {
	radar = matcher.Radar(c.Matcher.S1Bands...)
	optical = matcher.Optical(c.Matcher.S2Bands...)
	if c.Matcher.S1WindowDays > 0 {
		radar.Radius = days(c.Matcher.S1WindowDays)
	}
	if c.Matcher.S2WindowDays > 0 {
		optical.Radius = days(c.Matcher.S2WindowDays)
	}
	return radar, optical
}

// RetryPolicy returns the backend retry policy.
func (c *Config) RetryPolicy() resilience.Policy {
	r := c.Source.Retry
	return resilience.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: time.Duration(r.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(r.MaxBackoffMs) * time.Millisecond,
		Multiplier:     r.Multiplier,
		Jitter:         r.JitterFraction,
	}
}

// BreakerConfig returns the backend circuit breaker settings.
func (c *Config) BreakerConfig() resilience.BreakerConfig {
	b := c.Source.Circuit
	return resilience.BreakerConfig{
		FailureThreshold: b.FailureThreshold,
		ResetTimeout:     time.Duration(b.ResetTimeoutSecs) * time.Second,
		Probes:           b.Probes,
	}
}

// HTTPSourceOptions returns the remote backend options.
func (c *Config) HTTPSourceOptions() source.HTTPOptions {
	return source.HTTPOptions{
		BaseURL:    c.Source.BaseURL,
		Timeout:    time.Duration(c.Source.TimeoutSecs) * time.Second,
		RatePerSec: c.Source.RatePerSec,
		Burst:      c.Source.Burst,
		Retry:      c.RetryPolicy(),
		Breaker:    c.BreakerConfig(),
	}
}

// TruthOptions returns the ground truth loading options.
func (c *Config) TruthOptions() groundtruth.Options {
	return groundtruth.Options{
		Path:       c.Truth.Path,
		Dir:        c.Truth.Dir,
		MinAreaSqm: c.Truth.MinAreaSqm,
		Value:      c.Truth.Value,
		NameField:  c.Truth.NameField,
	}
}

// Validate checks the settings the named command depends on. Commands other
// than serve and runs need a usable grid, season and parameter set.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(err error, what string) {
		if err != nil {
			problems = append(problems, what+": "+err.Error())
		}
	}

	if mode != "serve" && mode != "runs" {
		add(c.Grid.Validate(), "grid")
		add(c.SeasonWindow().Validate(), "season")
		add(c.Params().Validate(), "classify")
		if len(c.Season.Years) == 0 {
			problems = append(problems, "season.years is required")
		}
	}

	switch mode {
	case "classify":
		if c.Classify.Year == 0 {
			problems = append(problems, "classify.year is required")
		}
	case "sweep":
		if c.Truth.Path == "" {
			problems = append(problems, "truth.path is required")
		}
		if c.Sweep.Year == 0 {
			problems = append(problems, "sweep.year is required")
		}
		if c.Sweep.Method != evaluate.MethodCells && c.Sweep.Method != evaluate.MethodPolygons {
			problems = append(problems, "sweep.method must be cells or polygons")
		}
	case "truth", "enrich":
		if c.Truth.Path == "" {
			problems = append(problems, "truth.path is required")
		}
	case "batch":
		if len(c.Batch.Years) == 0 || len(c.Batch.Periods) == 0 {
			problems = append(problems, "batch.years and batch.periods are required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
