package dsp

import "math"

// makeSqrtHannWindow builds a periodic sqrt-Hann window. Applied on both the
// analysis and synthesis side of an overlap-add stage it gives unity
// reconstruction at 75% overlap once normalized by the accumulated window
// energy.
func makeSqrtHannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		h := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
		w[i] = math.Sqrt(h)
	}
	return w
}

// makeHannWindow builds a periodic Hann window for analysis-only FFTs.
func makeHannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}
