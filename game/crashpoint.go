package game

import (
	"fmt"
	"io"
	"strconv"

	"aviatorServer/crypto"

	"github.com/shopspring/decimal"
)

// hashPrefixLen hex characters of the seed (52 bits) drive the crash point.
const hashPrefixLen = 13

var two52 = decimal.NewFromInt(1 << 52)

// CrashPoint is the outcome of one generation step.
type CrashPoint struct {
	CrashTarget decimal.Decimal
	Seed        string
	PublicHash  string
	Forced      bool
}

// Generator derives provably-fair crash targets. It is stateless; Entropy
// defaults to crypto/rand.
type Generator struct {
	Entropy io.Reader
}

// Generate always returns a usable CrashPoint within the configured limits.
// A non-nil error reports that a fallback target (the minimum multiplier)
// was used and should be logged.
func (g Generator) Generate(s Settings) (CrashPoint, error) {
	s = s.Normalized()
	lo := decimal.NewFromFloat(s.MinCrashMultiplier)
	hi := decimal.NewFromFloat(s.MaxCrashMultiplier)

	seed, hash, err := crypto.GenerateServerSeed(g.Entropy)
	if err != nil {
		return CrashPoint{CrashTarget: lo}, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	point := CrashPoint{Seed: seed, PublicHash: hash}

	// A pending override still gets a fresh seed so the published hash stays
	// meaningful; the forced value always respects the configured limits.
	if s.NextCrashTarget != nil {
		point.CrashTarget = Clamp(decimal.NewFromFloat(*s.NextCrashTarget), lo, hi)
		point.Forced = true
		return point, nil
	}

	if !finite(s.RTPPercent) {
		point.CrashTarget = lo
		return point, fmt.Errorf("%w: rtp %v", ErrInvalidSettings, s.RTPPercent)
	}

	target, err := CrashTargetFromSeed(seed, s.RTPPercent, s.MinCrashMultiplier, s.MaxCrashMultiplier)
	if err != nil {
		point.CrashTarget = lo
		return point, err
	}
	point.CrashTarget = target
	return point, nil
}

// CrashTargetFromSeed computes the clamped crash target for a seed:
//
//	U      = h / 2^52            (h = first 13 hex chars of seed)
//	raw    = (rtp/100) / (1 - U) = rtp/100 * 2^52 / (2^52 - h)
//	target = floor(raw * 100) / 100, clamped to [min, max]
//
// The quotient is computed exactly in integer decimal arithmetic, so the
// truncation has no binary rounding error and 2^52 - h is never zero.
func CrashTargetFromSeed(seed string, rtpPercent, minCrash, maxCrash float64) (decimal.Decimal, error) {
	h, err := seedPrefix(seed)
	if err != nil {
		return decimal.Zero, err
	}
	return crashTargetFromPrefix(h, rtpPercent, minCrash, maxCrash), nil
}

func crashTargetFromPrefix(h uint64, rtpPercent, minCrash, maxCrash float64) decimal.Decimal {
	denominator := two52.Sub(decimal.NewFromInt(int64(h)))
	// raw*100 = rtp * 2^52 / (2^52 - h); QuoRem at precision 0 is the floor.
	cents, _ := decimal.NewFromFloat(rtpPercent).Mul(two52).QuoRem(denominator, 0)
	raw := cents.Shift(-2)
	return Clamp(raw, decimal.NewFromFloat(minCrash), decimal.NewFromFloat(maxCrash))
}

func seedPrefix(seed string) (uint64, error) {
	if len(seed) < hashPrefixLen {
		return 0, fmt.Errorf("%w: need %d hex chars, got %d", ErrMalformedSeed, hashPrefixLen, len(seed))
	}
	h, err := strconv.ParseUint(seed[:hashPrefixLen], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedSeed, err)
	}
	return h, nil
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
