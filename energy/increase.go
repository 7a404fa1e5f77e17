package energy

import (
	"math"
	"math/bits"
)

const (
	// Precision scales averages so the linear decay keeps six decimals
	Precision = int64(1_000_000)

	// TrxPrecision is the number of sun in one TRX
	TrxPrecision = int64(1_000_000)

	// WindowSize is the account usage window, one day of 3s slots
	WindowSize = int64(28800)

	// AverageWindowSize is the network moving average window, one minute of 3s slots
	AverageWindowSize = int64(20)
)

// mulDiv returns a*b/c rounded down and the remainder. Results that do not
// fit in 64 bits saturate.
func mulDiv(a, b, c uint64) (uint64, uint64) {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64, 0
	}

	return bits.Div64(hi, lo, c)
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}

func divideCeil(a, b uint64) uint64 {
	q, r := mulDiv(a, uint64(Precision), b)
	if r != 0 && q != math.MaxUint64 {
		q++
	}

	return q
}

// Increase folds usage into the decayed moving sum lastUsage, last updated
// at slot lastTime, and returns the sum as of slot now.
//
// Both amounts are scaled by Precision and averaged over the window. The
// previous average decays linearly, (window-elapsed)/window rounded half up,
// and vanishes once a whole window has elapsed.
func Increase(lastUsage, usage, lastTime, now, window int64) int64 {
	if window <= 0 {
		return lastUsage + usage
	}

	w := uint64(window)
	averageLastUsage := divideCeil(nonNegative(lastUsage), w)
	averageUsage := divideCeil(nonNegative(usage), w)

	// a clock that went backwards leaves the average untouched
	if now > lastTime {
		if lastTime+window > now {
			delta := uint64(now - lastTime)

			q, r := mulDiv(averageLastUsage, w-delta, w)
			if 2*r >= w && q != math.MaxUint64 {
				q++
			}

			averageLastUsage = q
		} else {
			averageLastUsage = 0
		}
	}

	sum, carry := bits.Add64(averageLastUsage, averageUsage, 0)
	if carry != 0 {
		sum = math.MaxUint64
	}

	usageNow, _ := mulDiv(sum, w, uint64(Precision))

	return clampInt64(usageNow)
}
