package game

import (
	"math"
	"time"

	"aviatorServer/config"
)

// Settings is an immutable snapshot of operator-controlled engine settings.
// Mutations go through the With* methods, which return a new snapshot.
type Settings struct {
	BettingWindow      time.Duration
	FlightTickScale    float64 // multiplier growth per millisecond
	SettleDelay        time.Duration
	HistorySize        int
	MinCrashMultiplier float64
	MaxCrashMultiplier float64
	RTPPercent         float64

	// One-shot target for the next generated round.
	NextCrashTarget *float64
}

// DefaultSettings returns the built-in engine settings.
func DefaultSettings() Settings {
	return Settings{
		BettingWindow:      config.DefaultBettingWindowMs * time.Millisecond,
		FlightTickScale:    config.DefaultFlightTickScale,
		SettleDelay:        config.DefaultSettleDelayMs * time.Millisecond,
		HistorySize:        config.DefaultHistorySize,
		MinCrashMultiplier: config.DefaultMinCrashMultiplier,
		MaxCrashMultiplier: config.DefaultMaxCrashMultiplier,
		RTPPercent:         config.DefaultRTPPercent,
	}
}

// WithOverrides applies every non-nil override and normalizes the result.
func (s Settings) WithOverrides(o config.SettingsOverrides) Settings {
	if o.BettingWindowMs != nil {
		s.BettingWindow = time.Duration(*o.BettingWindowMs) * time.Millisecond
	}
	if o.FlightTickScale != nil {
		s.FlightTickScale = *o.FlightTickScale
	}
	if o.SettleDelayMs != nil {
		s.SettleDelay = time.Duration(*o.SettleDelayMs) * time.Millisecond
	}
	if o.HistorySize != nil {
		s.HistorySize = *o.HistorySize
	}
	if o.MinCrashMultiplier != nil {
		s.MinCrashMultiplier = *o.MinCrashMultiplier
	}
	if o.MaxCrashMultiplier != nil {
		s.MaxCrashMultiplier = *o.MaxCrashMultiplier
	}
	if o.RTPPercent != nil {
		s = s.WithRTP(*o.RTPPercent)
	}
	if o.NextCrashTarget != nil {
		s = s.WithNextCrashTarget(*o.NextCrashTarget)
	}
	return s.Normalized()
}

// Overrides returns every operator field of s as a sparse override set.
// The one-shot target is left out.
func (s Settings) Overrides() config.SettingsOverrides {
	window := s.BettingWindow.Milliseconds()
	settle := s.SettleDelay.Milliseconds()
	scale, size := s.FlightTickScale, s.HistorySize
	lo, hi, rtp := s.MinCrashMultiplier, s.MaxCrashMultiplier, s.RTPPercent
	return config.SettingsOverrides{
		BettingWindowMs:    &window,
		FlightTickScale:    &scale,
		SettleDelayMs:      &settle,
		HistorySize:        &size,
		MinCrashMultiplier: &lo,
		MaxCrashMultiplier: &hi,
		RTPPercent:         &rtp,
	}
}

// WithRTP clamps rtp to [0,100]. Non-finite values leave the snapshot unchanged.
func (s Settings) WithRTP(rtp float64) Settings {
	if math.IsNaN(rtp) || math.IsInf(rtp, 0) {
		return s
	}
	s.RTPPercent = math.Min(math.Max(rtp, 0), 100)
	return s
}

// WithNextCrashTarget arms the one-shot override. Non-finite values are ignored.
func (s Settings) WithNextCrashTarget(target float64) Settings {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return s
	}
	v := target
	s.NextCrashTarget = &v
	return s
}

// WithoutNextCrashTarget disarms the one-shot override.
func (s Settings) WithoutNextCrashTarget() Settings {
	s.NextCrashTarget = nil
	return s
}

// Normalized repairs values that would break round invariants.
func (s Settings) Normalized() Settings {
	def := DefaultSettings()
	if s.BettingWindow < 0 {
		s.BettingWindow = 0
	}
	if s.SettleDelay < 0 {
		s.SettleDelay = 0
	}
	if !finite(s.FlightTickScale) || s.FlightTickScale <= 0 {
		s.FlightTickScale = def.FlightTickScale
	}
	if s.HistorySize <= 0 {
		s.HistorySize = def.HistorySize
	}
	if !finite(s.MinCrashMultiplier) || s.MinCrashMultiplier < 1 {
		s.MinCrashMultiplier = 1
	}
	if !finite(s.MaxCrashMultiplier) {
		s.MaxCrashMultiplier = def.MaxCrashMultiplier
	}
	if s.MaxCrashMultiplier < s.MinCrashMultiplier {
		s.MaxCrashMultiplier = s.MinCrashMultiplier
	}
	if finite(s.RTPPercent) {
		s.RTPPercent = math.Min(math.Max(s.RTPPercent, 0), 100)
	}
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
