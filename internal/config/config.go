// Package config loads client settings from defaults, an optional .env
// file, ECOLOOP_* environment variables and command-line overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ecoloop/ecoloop/internal/validation"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "ECOLOOP"

// Config holds every client setting.
type Config struct {
	APIURL         string        `mapstructure:"api_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`

	DBPath    string `mapstructure:"db"`
	LogFile   string `mapstructure:"log_file"`
	LogMode   string `mapstructure:"log_mode" validate:"oneof=dev prod"`
	TraceFile string `mapstructure:"trace_file"`
	OTLPURL   string `mapstructure:"otlp_endpoint"`

	SegmentCount           int     `mapstructure:"segment_count" validate:"min=1,max=20"`
	SeekTolerance          float64 `mapstructure:"seek_tolerance" validate:"gte=0"`
	DefaultDuration        float64 `mapstructure:"default_duration" validate:"gt=0"`
	PracticePassRatio      float64 `mapstructure:"practice_pass_ratio" validate:"gt=0,lte=1"`
	PracticeQuestionPolicy string  `mapstructure:"practice_question_policy" validate:"oneof=shared disjoint"`
	WatchRewardXP          int     `mapstructure:"watch_reward_xp" validate:"gte=0"`
	Autoplay               bool    `mapstructure:"autoplay"`
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// EnvFile is loaded if it exists. Variables already set in the
	// environment win over the file.
	EnvFile string

	// Overrides are applied last, typically from command-line flags.
	Overrides map[string]any
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"api_url":                  "http://localhost:8000",
		"request_timeout":          120 * time.Second,
		"db":                       "",
		"log_file":                 DefaultLogPath(),
		"log_mode":                 "dev",
		"trace_file":               "",
		"otlp_endpoint":            "",
		"segment_count":            5,
		"seek_tolerance":           0.5,
		"default_duration":         300.0,
		"practice_pass_ratio":      0.6,
		"practice_question_policy": "shared",
		"watch_reward_xp":          50,
		"autoplay":                 false,
	}
}

// Load reads and validates the configuration.
func Load(opts LoadOptions) (Config, error) {
	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", opts.EnvFile, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := validation.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DefaultLogPath returns $XDG_STATE_HOME/ecoloop/ecoloop.log, falling back
// to ~/.local/state.
func DefaultLogPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "ecoloop", "ecoloop.log")
}
