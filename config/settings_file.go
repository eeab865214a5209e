package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SettingsOverrides is a sparse set of engine settings. Nil fields leave the
// underlying value untouched. The same shape is used for the YAML settings
// file and for the persisted settings row.
type SettingsOverrides struct {
	BettingWindowMs    *int64   `yaml:"bettingWindowMs" json:"bettingWindowMs,omitempty"`
	FlightTickScale    *float64 `yaml:"flightTickScale" json:"flightTickScale,omitempty"`
	SettleDelayMs      *int64   `yaml:"settleDelayMs" json:"settleDelayMs,omitempty"`
	HistorySize        *int     `yaml:"historySize" json:"historySize,omitempty"`
	MinCrashMultiplier *float64 `yaml:"minCrashMultiplier" json:"minCrashMultiplier,omitempty"`
	MaxCrashMultiplier *float64 `yaml:"maxCrashMultiplier" json:"maxCrashMultiplier,omitempty"`
	RTPPercent         *float64 `yaml:"rtp" json:"rtp,omitempty"`
	NextCrashTarget    *float64 `yaml:"nextCrashTarget" json:"nextCrashTarget,omitempty"`
	Paused             *bool    `yaml:"paused" json:"paused,omitempty"`
}

// Merge returns o with every non-nil field of other applied on top.
func (o SettingsOverrides) Merge(other SettingsOverrides) SettingsOverrides {
	out := o
	if other.BettingWindowMs != nil {
		out.BettingWindowMs = other.BettingWindowMs
	}
	if other.FlightTickScale != nil {
		out.FlightTickScale = other.FlightTickScale
	}
	if other.SettleDelayMs != nil {
		out.SettleDelayMs = other.SettleDelayMs
	}
	if other.HistorySize != nil {
		out.HistorySize = other.HistorySize
	}
	if other.MinCrashMultiplier != nil {
		out.MinCrashMultiplier = other.MinCrashMultiplier
	}
	if other.MaxCrashMultiplier != nil {
		out.MaxCrashMultiplier = other.MaxCrashMultiplier
	}
	if other.RTPPercent != nil {
		out.RTPPercent = other.RTPPercent
	}
	if other.NextCrashTarget != nil {
		out.NextCrashTarget = other.NextCrashTarget
	}
	if other.Paused != nil {
		out.Paused = other.Paused
	}
	return out
}

// LoadSettingsFile reads engine settings overrides from a YAML file.
// A missing file yields empty overrides and no error.
func LoadSettingsFile(path string) (SettingsOverrides, error) {
	var out SettingsOverrides
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return out, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return out, nil
}
