package dsp

import "math"

// K-weighting per ITU-R BS.1770-4: a presence shelf followed by the RLB
// high-pass. These are the re-derivation parameters that reproduce the
// tabulated 48 kHz coefficients and stay valid at any sample rate.
const (
	kwShelfHz     = 1681.9744509555319
	kwShelfGainDB = 3.999843853973347
	kwShelfQ      = 0.7071752369554196

	kwHighpassHz = 38.13547087602444
	kwHighpassQ  = 0.5003270373238773
)

// Gating: 400 ms blocks on a 100 ms step, absolute gate at -70 LUFS,
// relative gate 10 LU under the absolute-gated mean. Blocks above the
// absolute gate accumulate into a fixed loudness histogram instead of a
// per-block list, so the meter's footprint stays constant over arbitrarily
// long streams.
const (
	gatingStepMS       = 100.0
	gatingSubBlocks    = 4
	gatingAbsoluteLUFS = -70.0
	gatingRelativeLU   = -10.0

	loudnessOffsetDB = -0.691

	// 0.05 LU bins spanning -70..+10 LUFS. The relative gate lands on a
	// bin edge, bounding its quantization error by one bin width.
	gateBinWidthLU = 0.05
	gateBins       = 1600
)

// True peak oversamples with a polyphase windowed-sinc interpolator:
// 4x below 96 kHz, 2x below 192 kHz, raw peak above that.
const tpFIRTaps = 48

const tpSilenceFloorDB = -120.0

// LoudnessMeter measures gated integrated loudness and true peak for a
// stereo stream. Feed it every output frame; the integrated reading
// covers everything seen since the last Reset. After Prepare the meter
// never allocates: gating state lives in fixed histogram arrays.
type LoudnessMeter struct {
	sampleRate float64

	shelfL biquad
	shelfR biquad
	hpL    biquad
	hpR    biquad

	stepSamples int
	stepPos     int
	stepSumL    float64
	stepSumR    float64

	subL     [gatingSubBlocks]float64
	subR     [gatingSubBlocks]float64
	subIdx   int
	subCount int

	gateCounts [gateBins]int64
	gatePowers [gateBins]float64
	gateBlocks int64

	oversample int
	firPhases  [][]float64
	histL      []float64
	histR      []float64
	histPos    int

	truePeak float64
}

func NewLoudnessMeter(sampleRate float64) *LoudnessMeter {
	m := &LoudnessMeter{}
	m.Prepare(sampleRate)
	return m
}

func (m *LoudnessMeter) Prepare(sampleRate float64) {
	m.sampleRate = math.Max(sampleRate, 1)
	m.shelfL.updateHighShelfQ(kwShelfHz, kwShelfQ, kwShelfGainDB, m.sampleRate)
	m.shelfR.updateHighShelfQ(kwShelfHz, kwShelfQ, kwShelfGainDB, m.sampleRate)
	m.hpL.updateHPF(kwHighpassHz, kwHighpassQ, m.sampleRate)
	m.hpR.updateHPF(kwHighpassHz, kwHighpassQ, m.sampleRate)

	m.stepSamples = max(int(math.Round(gatingStepMS*0.001*m.sampleRate)), 1)

	switch {
	case m.sampleRate < 96000:
		m.oversample = 4
	case m.sampleRate < 192000:
		m.oversample = 2
	default:
		m.oversample = 1
	}
	if m.oversample > 1 {
		m.firPhases = designTruePeakFIR(m.oversample)
		m.histL = make([]float64, len(m.firPhases[0]))
		m.histR = make([]float64, len(m.firPhases[0]))
	} else {
		m.firPhases = nil
		m.histL = nil
		m.histR = nil
	}

	m.Reset()
}

func (m *LoudnessMeter) Reset() {
	m.shelfL.resetState()
	m.shelfR.resetState()
	m.hpL.resetState()
	m.hpR.resetState()
	m.stepPos = 0
	m.stepSumL = 0
	m.stepSumR = 0
	m.subL = [gatingSubBlocks]float64{}
	m.subR = [gatingSubBlocks]float64{}
	m.subIdx = 0
	m.subCount = 0
	m.gateCounts = [gateBins]int64{}
	m.gatePowers = [gateBins]float64{}
	m.gateBlocks = 0
	for i := range m.histL {
		m.histL[i] = 0
		m.histR[i] = 0
	}
	m.histPos = 0
	m.truePeak = 0
}

// AddFrames feeds one block of output samples into the meter.
func (m *LoudnessMeter) AddFrames(left, right []float64) {
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		l, r := left[i], right[i]
		m.trackTruePeak(l, r)

		kl := m.hpL.process(m.shelfL.process(l))
		kr := m.hpR.process(m.shelfR.process(r))
		m.stepSumL += kl * kl
		m.stepSumR += kr * kr
		m.stepPos++
		if m.stepPos >= m.stepSamples {
			m.finishStep()
		}
	}
}

func (m *LoudnessMeter) finishStep() {
	m.subL[m.subIdx] = m.stepSumL
	m.subR[m.subIdx] = m.stepSumR
	m.subIdx = (m.subIdx + 1) % gatingSubBlocks
	if m.subCount < gatingSubBlocks {
		m.subCount++
	}
	m.stepSumL = 0
	m.stepSumR = 0
	m.stepPos = 0

	if m.subCount < gatingSubBlocks {
		return
	}

	var sumL, sumR float64
	for i := 0; i < gatingSubBlocks; i++ {
		sumL += m.subL[i]
		sumR += m.subR[i]
	}
	blockSamples := float64(gatingSubBlocks * m.stepSamples)
	power := sumL/blockSamples + sumR/blockSamples

	// Blocks under the absolute gate can never contribute; drop them at
	// insert so the histogram only holds candidates.
	loudness := blockLoudness(power)
	if loudness <= gatingAbsoluteLUFS {
		return
	}
	bin := int((loudness - gatingAbsoluteLUFS) / gateBinWidthLU)
	if bin >= gateBins {
		bin = gateBins - 1
	}
	m.gateCounts[bin]++
	m.gatePowers[bin] += power
	m.gateBlocks++
}

func blockLoudness(power float64) float64 {
	return loudnessOffsetDB + 10*math.Log10(math.Max(power, 1e-15))
}

// LoudnessGlobal returns the gated integrated loudness in LUFS. ok is
// false until at least one block has passed the absolute gate.
func (m *LoudnessMeter) LoudnessGlobal() (lufs float64, ok bool) {
	if m.gateBlocks == 0 {
		return 0, false
	}

	var sum float64
	for _, p := range m.gatePowers {
		sum += p
	}
	relGate := blockLoudness(sum/float64(m.gateBlocks)) + gatingRelativeLU

	// A bin passes the relative gate on its lower edge; the exact power
	// sums per bin keep the mean itself unquantized.
	firstBin := int(math.Ceil((relGate - gatingAbsoluteLUFS) / gateBinWidthLU))
	if firstBin < 0 {
		firstBin = 0
	}
	var gatedSum float64
	var gatedN int64
	for i := firstBin; i < gateBins; i++ {
		gatedSum += m.gatePowers[i]
		gatedN += m.gateCounts[i]
	}
	if gatedN == 0 {
		return 0, false
	}
	return blockLoudness(gatedSum / float64(gatedN)), true
}

// TruePeakDB returns the highest oversampled peak seen since Reset, in
// dBTP across both channels.
func (m *LoudnessMeter) TruePeakDB() float64 {
	if m.truePeak < 1e-6 {
		return tpSilenceFloorDB
	}
	return 20 * math.Log10(m.truePeak)
}

func (m *LoudnessMeter) trackTruePeak(l, r float64) {
	if m.oversample == 1 {
		if a := math.Abs(l); a > m.truePeak {
			m.truePeak = a
		}
		if a := math.Abs(r); a > m.truePeak {
			m.truePeak = a
		}
		return
	}

	tapsPerPhase := len(m.firPhases[0])
	m.histL[m.histPos] = l
	m.histR[m.histPos] = r
	m.histPos = (m.histPos + 1) % tapsPerPhase

	for _, phase := range m.firPhases {
		var accL, accR float64
		idx := m.histPos
		for t := 0; t < tapsPerPhase; t++ {
			// idx walks from the oldest sample forward; taps are stored
			// oldest first within each phase.
			accL += phase[t] * m.histL[idx]
			accR += phase[t] * m.histR[idx]
			idx++
			if idx == tapsPerPhase {
				idx = 0
			}
		}
		if a := math.Abs(accL); a > m.truePeak {
			m.truePeak = a
		}
		if a := math.Abs(accR); a > m.truePeak {
			m.truePeak = a
		}
	}
}

// designTruePeakFIR builds the polyphase interpolation filter: a
// windowed-sinc prototype split into oversample phases, each normalized
// to unity DC gain so a full-scale DC input reads 0 dBTP.
func designTruePeakFIR(oversample int) [][]float64 {
	center := float64(tpFIRTaps-1) / 2
	proto := make([]float64, tpFIRTaps)
	for n := range proto {
		t := (float64(n) - center) / float64(oversample)
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(n)/float64(tpFIRTaps-1)))
		proto[n] = sinc(t) * w
	}

	phases := make([][]float64, oversample)
	for p := 0; p < oversample; p++ {
		phase := make([]float64, 0, tpFIRTaps/oversample)
		for n := p; n < tpFIRTaps; n += oversample {
			phase = append(phase, proto[n])
		}
		var s float64
		for _, v := range phase {
			s += v
		}
		if s != 0 {
			for i := range phase {
				phase[i] /= s
			}
		}
		phases[p] = phase
	}
	return phases
}

func sinc(t float64) float64 {
	if math.Abs(t) < 1e-12 {
		return 1
	}
	return math.Sin(math.Pi*t) / (math.Pi * t)
}
