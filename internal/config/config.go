// Package config loads floorplan settings from defaults, an optional config
// file, FLOORPLAN_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/floorplan/internal/llm"
	"github.com/dshills/floorplan/internal/router"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLOORPLAN"

// Config is the resolved configuration.
type Config struct {
	DB                 string        `mapstructure:"db"`
	Model              string        `mapstructure:"model"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Temperature        float64       `mapstructure:"temperature"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	Region             string        `mapstructure:"region"`
	BuildingType       string        `mapstructure:"building_type"`
	FireExitMinWidthMM float64       `mapstructure:"fire_exit_min_width_mm"`
	Review             ReviewConfig  `mapstructure:"review"`
	Codes              CodesConfig   `mapstructure:"codes"`
}

// ReviewConfig configures the review router.
type ReviewConfig struct {
	MaxWorkload int               `mapstructure:"max_workload"`
	Retention   time.Duration     `mapstructure:"retention"`
	Reviewers   []router.Reviewer `mapstructure:"reviewers"`
}

// CodesConfig lists extra rule-table files.
type CodesConfig struct {
	Overlays []string `mapstructure:"overlays"`
}

// New returns a viper instance with defaults, env binding and the config
// search path set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("floorplan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "floorplan"))
	}
	return v
}

// SetDefaults registers every key's default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", ".floorplan/floorplan.db")
	v.SetDefault("model", "")
	v.SetDefault("timeout", 90*time.Second)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_tokens", 8192)
	v.SetDefault("region", "")
	v.SetDefault("building_type", "residential")
	v.SetDefault("fire_exit_min_width_mm", 900.0)
	v.SetDefault("review.max_workload", router.DefaultMaxWorkload)
	v.SetDefault("review.retention", router.DefaultRetention)
	v.SetDefault("review.reviewers", []map[string]any{})
	v.SetDefault("codes.overlays", []string{})
}

// Load reads the config file (path, or the search path when empty) and
// returns the validated configuration. A missing file on the search path is
// not an error; a missing explicit path is.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges and reviewer ids.
func (c Config) Validate() error {
	var problems []string
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature %g out of range 0-2", c.Temperature))
	}
	if c.MaxTokens < 0 {
		problems = append(problems, "max_tokens must not be negative")
	}
	if c.FireExitMinWidthMM <= 0 {
		problems = append(problems, "fire_exit_min_width_mm must be positive")
	}
	if c.Review.MaxWorkload < 1 {
		problems = append(problems, "review.max_workload must be at least 1")
	}
	if c.Review.Retention <= 0 {
		problems = append(problems, "review.retention must be positive")
	}
	seen := make(map[string]bool, len(c.Review.Reviewers))
	for i, r := range c.Review.Reviewers {
		switch {
		case r.ID == "":
			problems = append(problems, fmt.Sprintf("review.reviewers[%d]: id is required", i))
		case seen[r.ID]:
			problems = append(problems, fmt.Sprintf("review.reviewers[%d]: duplicate id %q", i, r.ID))
		}
		seen[r.ID] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LLMSettings returns the generation settings for the AI provider.
func (c Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}
