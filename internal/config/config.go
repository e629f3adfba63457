// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/review-tuner/internal/params"
)

var validate = validator.New()

// Config holds every tunable of the CLIs.
type Config struct {
	DBPath           string        `env:"TUNER_DB" envDefault:"review-tuner.db" validate:"required"`
	LogLevel         string        `env:"TUNER_LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogPretty        bool          `env:"TUNER_LOG_PRETTY" envDefault:"false"`
	CodecAddr        string        `env:"TUNER_CODEC_ADDR" envDefault:"localhost:50051" validate:"required,hostname_port"`
	GenerateTimeout  time.Duration `env:"TUNER_GENERATE_TIMEOUT" envDefault:"2m" validate:"gt=0"`
	HighScore        float64       `env:"TUNER_HIGH_SCORE_THRESHOLD" envDefault:"75" validate:"gte=0,lte=100"`
	ChronicThreshold int           `env:"TUNER_CHRONIC_THRESHOLD" envDefault:"3" validate:"gte=1"`
	ABRate           float64       `env:"TUNER_AB_RATE" envDefault:"1" validate:"gt=0"`
	ABBurst          int           `env:"TUNER_AB_BURST" envDefault:"2" validate:"gte=1"`
	SeedSettings     string        `env:"TUNER_SEED_SETTINGS"`
}

// #region load

// Load reads .env files (when present), then the process environment, and
// validates the result. Variables already set in the environment win over
// .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		log.Debug().Str("component", "config").Str("file", path).Msg("env file loaded")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// #endregion load

// #region seed

// SeedSettingsSet returns the global settings to install on a fresh database:
// the YAML file named by SeedSettings when set, otherwise the built-in
// defaults. The result is validated against schema.
func (c *Config) SeedSettingsSet(schema params.Schema) (params.ParameterSet, error) {
	if c.SeedSettings == "" {
		return params.DefaultSettings(), nil
	}
	return LoadSettingsFile(c.SeedSettings, schema)
}

// LoadSettingsFile decodes a YAML parameter set such as
//
//	h:
//	  persona: family
//	  tone: calm
//	c:
//	  elements: [rooms, breakfast]
func LoadSettingsFile(path string, schema params.Schema) (params.ParameterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return params.ParameterSet{}, fmt.Errorf("read settings file: %w", err)
	}

	var p params.ParameterSet
	if err := yaml.Unmarshal(data, &p); err != nil {
		return params.ParameterSet{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := schema.Validate(p); err != nil {
		return params.ParameterSet{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return p, nil
}

// #endregion seed
