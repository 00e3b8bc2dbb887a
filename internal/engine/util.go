package engine

import "math"

const dbEps = 1e-10

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

// smoothstep01 is the cubic ease over [0,1].
func smoothstep01(x float64) float64 {
	t := clamp01(x)
	return t * t * (3 - 2*t)
}

// invSmoothstep01 inverts smoothstep01 on [0,1] via the trisection identity
// for the cubic.
func invSmoothstep01(y float64) float64 {
	y = clamp01(y)
	return 0.5 - math.Sin(math.Asin(1-2*y)/3)
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func gainToDB(g float64) float64 {
	return 20 * math.Log10(math.Max(g, dbEps))
}
