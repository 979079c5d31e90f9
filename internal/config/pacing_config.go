// File: internal/config/pacing_config.go
// PacingConfig holds the tunable timing model used to make interaction look
// like a person driving the page: settle delays around scrolls and clicks,
// click hold durations and the shape of simulated pointer paths.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// PacingConfig is the timing profile applied around every gesture.
type PacingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Fixed part of every settle delay.
	SettleBaseMs int `mapstructure:"settle_base_ms" yaml:"settle_base_ms"`
	// Randomized part, drawn from a normal distribution.
	SettleMeanMs   float64 `mapstructure:"settle_mean_ms" yaml:"settle_mean_ms"`
	SettleStdDevMs float64 `mapstructure:"settle_stddev_ms" yaml:"settle_stddev_ms"`
	SettleMaxMs    int     `mapstructure:"settle_max_ms" yaml:"settle_max_ms"`

	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`

	// Fitts's law coefficients for pointer travel time.
	FittsA float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b" yaml:"fitts_b"`
	// Number of intermediate pointer events per move.
	PathSteps int `mapstructure:"path_steps" yaml:"path_steps"`
	// Maximum sideways deviation of the curved pointer path, in pixels.
	PathSwayPx float64 `mapstructure:"path_sway_px" yaml:"path_sway_px"`

	// Pause after a page finished loading before it is inspected.
	PageSettleMs int `mapstructure:"page_settle_ms" yaml:"page_settle_ms"`
}

func setPacingDefaults(v *viper.Viper) {
	v.SetDefault("pacing.enabled", true)
	v.SetDefault("pacing.settle_base_ms", 300)
	v.SetDefault("pacing.settle_mean_ms", 450.0)
	v.SetDefault("pacing.settle_stddev_ms", 150.0)
	v.SetDefault("pacing.settle_max_ms", 2500)
	v.SetDefault("pacing.click_hold_min_ms", 60)
	v.SetDefault("pacing.click_hold_max_ms", 140)
	v.SetDefault("pacing.fitts_a", 80.0)
	v.SetDefault("pacing.fitts_b", 120.0)
	v.SetDefault("pacing.path_steps", 12)
	v.SetDefault("pacing.path_sway_px", 40.0)
	v.SetDefault("pacing.page_settle_ms", 1500)
}

// Validate checks the pacing settings.
func (p *PacingConfig) Validate() error {
	if p.SettleBaseMs < 0 || p.SettleMeanMs < 0 || p.SettleStdDevMs < 0 {
		return fmt.Errorf("pacing settle values must not be negative")
	}
	if p.SettleMaxMs < p.SettleBaseMs {
		return fmt.Errorf("pacing.settle_max_ms must be at least pacing.settle_base_ms")
	}
	if p.ClickHoldMinMs < 0 || p.ClickHoldMaxMs < p.ClickHoldMinMs {
		return fmt.Errorf("pacing click hold range is invalid: min=%d max=%d", p.ClickHoldMinMs, p.ClickHoldMaxMs)
	}
	if p.PathSteps <= 0 {
		return fmt.Errorf("pacing.path_steps must be a positive integer")
	}
	return nil
}
