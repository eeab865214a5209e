package game

import (
	"aviatorServer/crypto"

	"github.com/shopspring/decimal"
)

// Verification is the outcome of re-deriving a round from its revealed seed.
type Verification struct {
	HashValid   bool
	CrashTarget decimal.Decimal
}

// VerifyCrashPoint checks a revealed seed against its public hash and
// recomputes the crash target it implies under the given limits. Rounds that
// ran on an admin override will not match the recomputed value.
func VerifyCrashPoint(seed, publicHash string, rtpPercent, minCrash, maxCrash float64) (Verification, error) {
	v := Verification{HashValid: crypto.VerifySeed(seed, publicHash)}
	target, err := CrashTargetFromSeed(seed, rtpPercent, minCrash, maxCrash)
	if err != nil {
		return v, err
	}
	v.CrashTarget = target
	return v, nil
}
