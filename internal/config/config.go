// Package config loads service configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"inverter-twin/internal/twin"
)

// Parameters mirrors twin.Parameters for YAML binding. Zero fields fall back
// to the service defaults.
type Parameters struct {
	RatedDCCapacityW   float64 `yaml:"rated_dc_capacity_w"`
	TempCoefficient    float64 `yaml:"temp_coefficient"`
	InverterEfficiency float64 `yaml:"inverter_efficiency"`
}

// Config is the full service configuration.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	Defaults  Parameters            `yaml:"defaults"`
	Inverters map[string]Parameters `yaml:"inverters"`

	AlertThresholdPct     float64 `yaml:"alert_threshold_pct"`
	StrictValidation      bool    `yaml:"strict_validation"`
	ZeroDenominatorPolicy string  `yaml:"zero_denominator_policy"`

	AlertWebhookURL string   `yaml:"alert_webhook_url"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaTopic      string   `yaml:"kafka_topic"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// TWIN_CONFIG and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: ":8080",
		Defaults: Parameters{
			RatedDCCapacityW:   twin.DefaultRatedDCCapacity,
			TempCoefficient:    twin.DefaultTempCoefficient,
			InverterEfficiency: twin.DefaultInverterEfficiency,
		},
		AlertThresholdPct:     twin.DefaultAlertThresholdPct,
		ZeroDenominatorPolicy: string(twin.ZeroDenominatorLegacy),
	}

	if path := os.Getenv("TWIN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Defaults.RatedDCCapacityW = getenvFloatDefault("RATED_DC_CAPACITY_W", cfg.Defaults.RatedDCCapacityW)
	cfg.Defaults.TempCoefficient = getenvFloatDefault("TEMP_COEFFICIENT", cfg.Defaults.TempCoefficient)
	cfg.Defaults.InverterEfficiency = getenvFloatDefault("INVERTER_EFFICIENCY", cfg.Defaults.InverterEfficiency)
	cfg.AlertThresholdPct = getenvFloatDefault("ALERT_THRESHOLD_PCT", cfg.AlertThresholdPct)
	cfg.StrictValidation = getenvBoolDefault("STRICT_VALIDATION", cfg.StrictValidation)
	cfg.ZeroDenominatorPolicy = getenvDefault("ZERO_DENOMINATOR_POLICY", cfg.ZeroDenominatorPolicy)
	cfg.AlertWebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.AlertWebhookURL)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}
	cfg.KafkaTopic = getenvDefault("KAFKA_ALERT_TOPIC", cfg.KafkaTopic)

	if !twin.ZeroDenominatorPolicy(cfg.ZeroDenominatorPolicy).IsValid() {
		return cfg, fmt.Errorf("config: unknown zero_denominator_policy %q", cfg.ZeroDenominatorPolicy)
	}
	if err := cfg.ModelParameters().Validate(); err != nil {
		return cfg, err
	}
	for id, params := range cfg.Inverters {
		if err := cfg.overrideFor(params).Validate(); err != nil {
			return cfg, fmt.Errorf("config: inverter %s: %w", id, err)
		}
	}
	return cfg, nil
}

// ModelParameters converts the default parameter section.
func (c Config) ModelParameters() twin.Parameters {
	return twin.Parameters{
		RatedDCCapacity:    c.Defaults.RatedDCCapacityW,
		TempCoefficient:    c.Defaults.TempCoefficient,
		InverterEfficiency: c.Defaults.InverterEfficiency,
	}
}

// ParameterOverrides converts per-inverter sections, filling unset fields
// from the defaults.
func (c Config) ParameterOverrides() map[string]twin.Parameters {
	if len(c.Inverters) == 0 {
		return nil
	}
	overrides := make(map[string]twin.Parameters, len(c.Inverters))
	for id, params := range c.Inverters {
		overrides[id] = c.overrideFor(params)
	}
	return overrides
}

// Policy converts the configured zero-denominator policy.
func (c Config) Policy() twin.ZeroDenominatorPolicy {
	return twin.ZeroDenominatorPolicy(c.ZeroDenominatorPolicy)
}

func (c Config) overrideFor(params Parameters) twin.Parameters {
	merged := c.ModelParameters()
	if params.RatedDCCapacityW != 0 {
		merged.RatedDCCapacity = params.RatedDCCapacityW
	}
	if params.TempCoefficient != 0 {
		merged.TempCoefficient = params.TempCoefficient
	}
	if params.InverterEfficiency != 0 {
		merged.InverterEfficiency = params.InverterEfficiency
	}
	return merged
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
