// Package config loads the engine configuration from a YAML document,
// with environment-variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server             ServerConfig     `yaml:"server"`
	Model              ModelConfig      `yaml:"model"`
	FeatureEngineering FeatureConfig    `yaml:"feature_engineering"`
	DecisionThresholds ThresholdConfig  `yaml:"decision_thresholds"`
	LimitRule          LimitRuleConfig  `yaml:"limit_rule"`
	Database           DatabaseConfig   `yaml:"database"`
}

// ServerConfig configures the HTTP surface and observability endpoints.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	SessionTTL   string `yaml:"session_ttl"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// ModelConfig locates the serialized predictor and controls the fallback
// policy when it cannot be loaded.
type ModelConfig struct {
	Path                  string `yaml:"path"`
	UseMockModelIfMissing bool   `yaml:"use_mock_model_if_missing"`
}

// FeatureConfig independently toggles each synthesized feature field.
type FeatureConfig struct {
	SimulateCreditScore bool `yaml:"simulate_credit_score"`
	SimulateDelay       bool `yaml:"simulate_delay"`
	SimulateUsage       bool `yaml:"simulate_usage"`
}

// ThresholdConfig holds the two decision cut-offs, review <= reject.
type ThresholdConfig struct {
	Reject float64 `yaml:"reject"`
	Review float64 `yaml:"review"`
}

// LimitRuleConfig parameterizes the credit-limit formula
// base_amount + floor((1 - pd) * variable_amount).
type LimitRuleConfig struct {
	BaseAmount     int64 `yaml:"base_amount"`
	VariableAmount int64 `yaml:"variable_amount"`
}

// DatabaseConfig locates the SQLite ledger database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config at path, applies environment overrides and
// defaults, and validates the result. Validation failures are fatal at
// startup, not per-request errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when keys are omitted.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			LogLevel:     "info",
			SessionTTL:   "30m",
			OTLPEndpoint: "localhost:4317",
		},
		Model: ModelConfig{
			Path:                  "model/pd_model.json",
			UseMockModelIfMissing: true,
		},
		FeatureEngineering: FeatureConfig{
			SimulateCreditScore: true,
			SimulateDelay:       true,
			SimulateUsage:       true,
		},
		DecisionThresholds: ThresholdConfig{
			Reject: 0.3,
			Review: 0.1,
		},
		LimitRule: LimitRuleConfig{
			BaseAmount:     10000,
			VariableAmount: 20000,
		},
		Database: DatabaseConfig{
			Path: "db/loan.db",
		},
	}
}

// applyEnv lets the environment override deployment-specific values.
func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Server.OTLPEndpoint)
	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)
	c.Model.Path = getEnv("MODEL_PATH", c.Model.Path)
}

// Validate checks the invariants the engine depends on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Server.SessionTTL); err != nil {
		return fmt.Errorf("server.session_ttl: %w", err)
	}
	t := c.DecisionThresholds
	if t.Reject < 0 || t.Reject > 1 {
		return fmt.Errorf("decision_thresholds.reject out of [0,1]: %v", t.Reject)
	}
	if t.Review < 0 || t.Review > 1 {
		return fmt.Errorf("decision_thresholds.review out of [0,1]: %v", t.Review)
	}
	if t.Review > t.Reject {
		return fmt.Errorf("decision_thresholds.review (%v) must not exceed reject (%v)", t.Review, t.Reject)
	}
	if c.LimitRule.BaseAmount < 0 {
		return fmt.Errorf("limit_rule.base_amount must be non-negative: %d", c.LimitRule.BaseAmount)
	}
	if c.LimitRule.VariableAmount < 0 {
		return fmt.Errorf("limit_rule.variable_amount must be non-negative: %d", c.LimitRule.VariableAmount)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// SessionTTLDuration returns the parsed session TTL. Validate guarantees
// the value parses.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
