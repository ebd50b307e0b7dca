// Package config loads roleforge's runtime settings from a config file
// and environment variables via viper, layered over a fixed set of
// defaults.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings is the fully resolved configuration surface: agent-context
// budgets, workflow quality gating, and capability-matching weights.
type Settings struct {
	MaxContextTokens  int
	MaxContextItems   int
	MaxCommandHistory int

	QualityThreshold     float64
	QualityGateThreshold float64

	MaxWorkers        int
	WorkerTimeoutMS   int
	WorkerTimeout     time.Duration
	CoordinationMode  string

	MinConnectivityThreshold float64
	CapabilityWeight         float64
	DomainWeight             float64
	ConnectivityWeight       float64
	PerformanceWeight        float64

	HistoryRetentionDays int
}

func defaults(v *viper.Viper) {
	v.SetDefault("max_context_tokens", 8000)
	v.SetDefault("max_context_items", 50)
	v.SetDefault("max_command_history", 200)

	v.SetDefault("quality_threshold", 0.7)
	v.SetDefault("quality_gate_threshold", 0.7)

	v.SetDefault("max_workers", 6)
	v.SetDefault("worker_timeout_ms", 180_000)
	v.SetDefault("coordination_mode", "parallel_coordinated")

	v.SetDefault("min_connectivity_threshold", 0.6)
	v.SetDefault("capability_weight", 0.25)
	v.SetDefault("domain_weight", 0.25)
	v.SetDefault("connectivity_weight", 0.25)
	v.SetDefault("performance_weight", 0.25)

	v.SetDefault("history_retention_days", 30)
}

// Load resolves Settings from (in increasing priority): built-in
// defaults, a "config" file of any viper-supported format in DataDir(),
// and ROLEFORGE_-prefixed environment variables. A missing config file
// is not an error; a malformed one is.
func Load() (Settings, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(DataDir())
	v.SetEnvPrefix("ROLEFORGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Settings{}, fmt.Errorf("config: read %s: %w", filepath.Join(DataDir(), "config.*"), err)
		}
	}

	s := Settings{
		MaxContextTokens:  v.GetInt("max_context_tokens"),
		MaxContextItems:   v.GetInt("max_context_items"),
		MaxCommandHistory: v.GetInt("max_command_history"),

		QualityThreshold:     v.GetFloat64("quality_threshold"),
		QualityGateThreshold: v.GetFloat64("quality_gate_threshold"),

		MaxWorkers:       v.GetInt("max_workers"),
		WorkerTimeoutMS:  v.GetInt("worker_timeout_ms"),
		CoordinationMode: v.GetString("coordination_mode"),

		MinConnectivityThreshold: v.GetFloat64("min_connectivity_threshold"),
		CapabilityWeight:         v.GetFloat64("capability_weight"),
		DomainWeight:             v.GetFloat64("domain_weight"),
		ConnectivityWeight:       v.GetFloat64("connectivity_weight"),
		PerformanceWeight:        v.GetFloat64("performance_weight"),

		HistoryRetentionDays: v.GetInt("history_retention_days"),
	}
	s.WorkerTimeout = time.Duration(s.WorkerTimeoutMS) * time.Millisecond
	return s, nil
}
