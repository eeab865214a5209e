// Command simulate draws crash points with the production generator and
// reports the bucket distribution and the observed return of fixed cashout
// targets.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/shopspring/decimal"
)

func parseTargets(raw string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("invalid target %q", part)
		}
		out = append(out, decimal.NewFromFloat(v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no targets given")
	}
	return out, nil
}

func main() {
	var (
		rounds  = flag.Int("n", 100000, "rounds per batch")
		batches = flag.Int("batches", 5, "number of batches")
		rtp     = flag.Float64("rtp", config.DefaultRTPPercent, "return-to-player percent")
		lo      = flag.Float64("min", config.DefaultMinCrashMultiplier, "minimum crash multiplier")
		hi      = flag.Float64("max", config.DefaultMaxCrashMultiplier, "maximum crash multiplier")
		rawTgt  = flag.String("targets", "1.5,2,5,10", "comma-separated cashout targets")
	)
	flag.Parse()

	targets, err := parseTargets(*rawTgt)
	if err != nil || *rounds <= 0 || *batches <= 0 {
		fmt.Fprintln(os.Stderr, "usage: simulate -n N -batches B -targets 1.5,2 (n, batches > 0; targets >= 1)")
		os.Exit(2)
	}

	settings := game.DefaultSettings()
	settings.RTPPercent = *rtp
	settings.MinCrashMultiplier = *lo
	settings.MaxCrashMultiplier = *hi
	settings = settings.Normalized()

	gen := game.Generator{}
	fmt.Printf("Simulating %d batches of %d rounds (rtp=%.2f%%, limits=[%.2f, %.2f])\n\n",
		*batches, *rounds, settings.RTPPercent, settings.MinCrashMultiplier, settings.MaxCrashMultiplier)

	n := float64(*rounds)
	for batch := 1; batch <= *batches; batch++ {
		buckets := map[game.HistoryBucket]int{}
		wins := make([]int, len(targets))
		sum := decimal.Zero

		for i := 0; i < *rounds; i++ {
			point, err := gen.Generate(settings)
			if err != nil {
				fmt.Fprintf(os.Stderr, "❌ generate: %v\n", err)
				os.Exit(1)
			}
			sum = sum.Add(point.CrashTarget)
			buckets[game.BucketFor(point.CrashTarget.InexactFloat64())]++
			for j, target := range targets {
				if point.CrashTarget.GreaterThanOrEqual(target) {
					wins[j]++
				}
			}
		}

		mean := sum.Div(decimal.NewFromInt(int64(*rounds))).InexactFloat64()
		fmt.Printf("Batch %d: blue %.1f%% | purple %.1f%% | pink %.1f%% | mean %.3fx\n",
			batch,
			float64(buckets[game.BucketBlue])/n*100,
			float64(buckets[game.BucketPurple])/n*100,
			float64(buckets[game.BucketPink])/n*100,
			mean)
		for j, target := range targets {
			fmt.Printf("   cashout at %sx: return %.2f%%\n", target.StringFixed(2), float64(wins[j])*target.InexactFloat64()/n*100)
		}
	}
}
