package dsp

import "math"

// biquad is a second-order IIR section in transposed direct form II. Each
// instance filters exactly one channel; stereo stages own one per side.
//
// Coefficient updates deliberately do not clear the delay state, so shelving
// stages can retune mid-stream without clicks. Call resetState when
// deterministic startup matters (analyzers, capture restarts).
type biquad struct {
	a0, a1, a2 float64
	b1, b2     float64
	z1, z2     float64
}

func newBiquad() biquad {
	return biquad{a0: 1}
}

func (f *biquad) process(in float64) float64 {
	out := in*f.a0 + f.z1
	// Small DC injection keeps the recursion out of denormal range.
	f.z1 = in*f.a1 + f.z2 - f.b1*out + 1e-25
	f.z2 = in*f.a2 - f.b2*out + 1e-25
	return out
}

func (f *biquad) resetState() {
	f.z1 = 0
	f.z2 = 0
}

func (f *biquad) setIdentity() {
	f.a0 = 1
	f.a1 = 0
	f.a2 = 0
	f.b1 = 0
	f.b2 = 0
}

func (f *biquad) updateHPF(cutoff, q, sr float64) {
	w0 := 2 * math.Pi * cutoff / sr
	alpha := math.Sin(w0) / (2 * math.Max(q, 1e-6))
	cw0 := math.Cos(w0)

	invA0 := 1 / (1 + alpha)
	f.a0 = (1 + cw0) * 0.5 * invA0
	f.a1 = -(1 + cw0) * invA0
	f.a2 = (1 + cw0) * 0.5 * invA0
	f.b1 = -2 * cw0 * invA0
	f.b2 = (1 - alpha) * invA0
}

func (f *biquad) updateLPF(cutoff, q, sr float64) {
	w0 := 2 * math.Pi * cutoff / sr
	alpha := math.Sin(w0) / (2 * math.Max(q, 1e-6))
	cw0 := math.Cos(w0)

	invA0 := 1 / (1 + alpha)
	f.a0 = (1 - cw0) * 0.5 * invA0
	f.a1 = (1 - cw0) * invA0
	f.a2 = (1 - cw0) * 0.5 * invA0
	f.b1 = -2 * cw0 * invA0
	f.b2 = (1 - alpha) * invA0
}

func (f *biquad) updateLowShelf(cutoff, q, gainDB, sr float64) {
	if math.Abs(gainDB) < 0.01 {
		f.setIdentity()
		return
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * cutoff / sr
	alpha := math.Sin(w0) / (2 * math.Max(q, 1e-6))
	cw0 := math.Cos(w0)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*cw0 + 2*sqrtA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cw0)
	b2 := a * ((a + 1) - (a-1)*cw0 - 2*sqrtA*alpha)
	a0 := (a + 1) + (a-1)*cw0 + 2*sqrtA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cw0)
	a2 := (a + 1) + (a-1)*cw0 - 2*sqrtA*alpha

	invA0 := 1 / a0
	f.a0 = b0 * invA0
	f.a1 = b1 * invA0
	f.a2 = b2 * invA0
	f.b1 = a1 * invA0
	f.b2 = a2 * invA0
}

// updateHighShelf uses the RBJ slope form: q is interpreted as shelf slope S.
func (f *biquad) updateHighShelf(cutoff, q, gainDB, sr float64) {
	if math.Abs(gainDB) < 0.01 {
		f.setIdentity()
		return
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * cutoff / sr
	cw0 := math.Cos(w0)
	sw0 := math.Sin(w0)

	s := math.Max(q, 1e-6)
	alpha := sw0 * 0.5 * math.Sqrt((a+1/a)*(1/s-1)+2)

	b0 := a * ((a + 1) + (a-1)*cw0 + 2*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cw0)
	b2 := a * ((a + 1) + (a-1)*cw0 - 2*alpha)
	a0 := (a + 1) - (a-1)*cw0 + 2*alpha
	a1 := 2 * ((a - 1) - (a+1)*cw0)
	a2 := (a + 1) - (a-1)*cw0 - 2*alpha

	invA0 := 1 / a0
	f.a0 = b0 * invA0
	f.a1 = b1 * invA0
	f.a2 = b2 * invA0
	f.b1 = a1 * invA0
	f.b2 = a2 * invA0
}

// updateHighShelfQ is the Q form of the high shelf, alpha = sin(w0)/(2Q).
// The loudness meter needs this form so the published K-weighting
// parameters land on the tabulated coefficients exactly.
func (f *biquad) updateHighShelfQ(cutoff, q, gainDB, sr float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * cutoff / sr
	cw0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * math.Max(q, 1e-6))

	b0 := a * ((a + 1) + (a-1)*cw0 + 2*math.Sqrt(a)*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cw0)
	b2 := a * ((a + 1) + (a-1)*cw0 - 2*math.Sqrt(a)*alpha)
	a0 := (a + 1) - (a-1)*cw0 + 2*math.Sqrt(a)*alpha
	a1 := 2 * ((a - 1) - (a+1)*cw0)
	a2 := (a + 1) - (a-1)*cw0 - 2*math.Sqrt(a)*alpha

	invA0 := 1 / a0
	f.a0 = b0 * invA0
	f.a1 = b1 * invA0
	f.a2 = b2 * invA0
	f.b1 = a1 * invA0
	f.b2 = a2 * invA0
}

// bandFilterPair isolates one frequency band of a stereo pair with an HPF
// and LPF cascade per channel. Used by the analyzers that integrate band
// energy; Q is fixed at 0.707 throughout.
type bandFilterPair struct {
	hpL, hpR biquad
	lpL, lpR biquad
}

func (b *bandFilterPair) init(lowHz, highHz, sr float64) {
	b.hpL.updateHPF(lowHz, 0.707, sr)
	b.hpR.updateHPF(lowHz, 0.707, sr)
	b.lpL.updateLPF(highHz, 0.707, sr)
	b.lpR.updateLPF(highHz, 0.707, sr)
}

// energy filters the pair and returns the channel-averaged sample energy.
func (b *bandFilterPair) energy(l, r float64) float64 {
	fl := b.lpL.process(b.hpL.process(l))
	fr := b.lpR.process(b.hpR.process(r))
	return 0.5 * (fl*fl + fr*fr)
}

func (b *bandFilterPair) resetState() {
	b.hpL.resetState()
	b.hpR.resetState()
	b.lpL.resetState()
	b.lpR.resetState()
}

func (f *biquad) updatePeaking(cutoff, q, gainDB, sr float64) {
	if math.Abs(gainDB) < 0.01 {
		f.setIdentity()
		return
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * cutoff / sr
	alpha := math.Sin(w0) / (2 * math.Max(q, 1e-6))
	cw0 := math.Cos(w0)

	b0 := 1 + alpha*a
	b1 := -2 * cw0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cw0
	a2 := 1 - alpha/a

	invA0 := 1 / a0
	f.a0 = b0 * invA0
	f.a1 = b1 * invA0
	f.a2 = b2 * invA0
	f.b1 = a1 * invA0
	f.b2 = a2 * invA0
}
