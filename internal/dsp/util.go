// Package dsp implements the restoration signal chain: analysis sidechain,
// spectral restoration, tonal shaping, and dynamics stages. Stages are
// per-sample or overlap-add processors with all state pre-allocated at
// construction; nothing on the processing path allocates or blocks.
package dsp

import "math"

// Shared numeric guards. Spectral magnitudes are floored before any division
// and level envelopes before any dB conversion.
const (
	magFloor        = 1e-9
	dbEps           = 1e-10
	bypassAmountEps = 1e-3
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// lerp interpolates a..b with t clamped to [0,1].
func lerp(a, b, t float64) float64 {
	return a + (b-a)*clamp01(t)
}

func smoothstep(edge0, edge1, x float64) float64 {
	denom := math.Max(edge1-edge0, 1e-12)
	t := clamp01((x - edge0) / denom)
	return t * t * (3 - 2*t)
}

func max3(a, b, c float64) float64 {
	return math.Max(math.Max(a, b), c)
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func gainToDB(g float64) float64 {
	return 20 * math.Log10(math.Max(g, dbEps))
}

// bell is a Gaussian bump centred on center with the given width, used for
// frequency-band weighting.
func bell(x, center, width float64) float64 {
	d := (x - center) / math.Max(width, 1e-6)
	return clamp01(math.Exp(-0.5 * d * d))
}

// timeConstantCoeff converts a time constant in milliseconds to a one-pole
// smoothing coefficient at the given sample rate.
func timeConstantCoeff(ms, sampleRate float64) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(ms*0.001*sampleRate))
}

// updateEnvSq advances a squared-signal envelope with asymmetric ballistics.
func updateEnvSq(env, sq, attack, release float64) float64 {
	if sq > env {
		return env + attack*(sq-env)
	}
	return env + release*(sq-env)
}

func frameRMS(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	n := len(x)
	if n == 0 {
		n = 1
	}
	return math.Sqrt(s / float64(n))
}

// aggressiveTail maps a control amount so the first ~70% of travel stays
// gentle and the remainder ramps steeply. Keeps low settings usable while
// still reaching full strength at the top of the range.
func aggressiveTail(x float64) float64 {
	x = clamp01(x)
	const knee = 0.7
	if x <= knee {
		return 0.5 * (x / knee)
	}
	t := (x - knee) / (1 - knee)
	return 0.5 + 0.5*t*t
}

// speechWeighted scales a maximum cut by speech confidence so voiced speech
// is never carved as deeply as silence.
func speechWeighted(maxDB, confidence float64) float64 {
	return maxDB * (1 - 0.6*clamp01(confidence))
}

// estimateF0Autocorr runs a normalized-autocorrelation pitch search over the
// speech F0 range (70-320 Hz). scratch must hold at least len(frame) values;
// it is reused between calls so the search never allocates. Returns
// periodicity in [0,1] and the detected fundamental in Hz (0 when unvoiced).
func estimateF0Autocorr(frame []float64, sampleRate float64, scratch []float64) (periodicity, f0 float64) {
	n := len(frame)
	if n < 128 || len(scratch) < n {
		return 0, 0
	}
	x := scratch[:n]

	var mean float64
	for _, v := range frame {
		mean += v
	}
	mean /= float64(n)

	// DC removal plus light pre-emphasis sharpens the correlation peaks.
	var prev float64
	for i, v := range frame {
		d := v - mean
		x[i] = d - 0.97*prev
		prev = d
	}

	var e0 float64
	for _, v := range x {
		e0 += v * v
	}
	if e0 < 1e-6 {
		return 0, 0
	}

	const f0Min, f0Max = 70.0, 320.0
	lagMin := int(math.Floor(sampleRate / f0Max))
	lagMax := int(math.Ceil(sampleRate / f0Min))
	if lagMin < 16 {
		lagMin = 16
	}
	if lagMin > n/2 {
		lagMin = n / 2
	}
	if lagMax > n/2 {
		lagMax = n / 2
	}
	if lagMax <= lagMin {
		lagMax = lagMin + 1
		if lagMax > n/2 {
			return 0, 0
		}
	}

	bestLag := 0
	best := 0.0
	for lag := lagMin; lag <= lagMax; lag++ {
		var s, e1, e2 float64
		for i := 0; i < n-lag; i++ {
			a := x[i]
			b := x[i+lag]
			s += a * b
			e1 += a * a
			e2 += b * b
		}
		denom := math.Max(math.Sqrt(e1*e2), 1e-12)
		r := clamp(s/denom, -1, 1)
		if r > best {
			best = r
			bestLag = lag
		}
	}

	periodicity = clamp01(best)
	if bestLag > 0 {
		f0 = sampleRate / float64(bestLag)
	}
	return periodicity, f0
}
