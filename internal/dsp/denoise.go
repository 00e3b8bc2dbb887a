package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Denoiser tuning. The gain curve is a decision-directed Wiener estimate
// shaped by speech-presence probability; the floors and guardrails below keep
// it from thinning voice or pumping hiss.
const (
	denoiseNoiseFloorInit = 1e-5
	denoiseSampleRateMin  = 8000.0
	denoiseSNREps         = 1e-10
	denoiseDDAlpha        = 0.98

	// Startup ballistics run until the Nyquist-bin floor has risen above the
	// threshold; that bin sees essentially no speech, so it converges on the
	// ambience level fast.
	noiseStartupThresh = 1e-4
	noiseStartupAtt    = 0.6
	noiseStartupRel    = 0.90
	noiseAttBase       = 0.90
	noiseAttMax        = 0.98
	noiseRelBase       = 0.9995
	noiseRelMax        = 0.99995
	noiseProtectBase   = 0.35
	noiseProtectRange  = 0.55

	noiseCoarseAtt = 0.92
	noiseCoarseRel = 0.999
	coarseWinDiv   = 2
	coarseWinMin   = 256

	humAmountThresh = 0.05
	humMainScale    = 0.1
	humSideScale    = 0.5
	humLowCutHz     = 25.0

	toneBiasDB = 6.0
	toneSplit  = 0.5
	toneScale  = 2.0

	voicedSpeechBase    = 0.35
	voicedSpeechRange   = 0.65
	voicedMidCenter     = 0.22
	voicedMidWidth      = 0.20
	unvoicedSpeechBase  = 0.25
	unvoicedSpeechRange = 0.75
	unvoicedHFMin       = 0.18
	unvoicedHFMax       = 0.55
	voicedProbMin       = 0.55

	threshSensScale   = 5.0
	speechThreshScale = 1.25
	rawGainPower      = 2.0
	strengthMin       = 1.0
	strengthMax       = 3.0

	psychoFloorBase     = 0.25
	psychoFloorRange    = 0.65
	psychoFloorMin      = 0.10
	psychoFloorMax      = 0.95
	speechFloorBase     = 0.30
	speechFloorRange    = 0.60
	speechFloorMin      = 0.15
	speechFloorMax      = 0.98
	floorScaleMin       = 0.35
	speechFloorScaleMin = 0.60

	smoothStrengthVoiced   = 0.55
	smoothStrengthUnvoiced = 0.75
	releaseLimitMin        = 0.85
	releaseLimitMax        = 0.92

	harmonicF0MinHz    = 50.0
	harmonicF0MaxHz    = 450.0
	harmonicMaxHz      = 8000.0
	harmonicMaxCount   = 80
	harmonicWidthMin   = 3.0
	harmonicWidthMax   = 1.5
	harmonicAllowMin   = 0.25
	harmonicAllowMax   = 1.0
	harmonicMinGainMin = 0.25
	harmonicMinGainMax = 0.98

	speechWeightVoiced   = 0.55
	speechWeightTonal    = 0.30
	speechWeightUnvoiced = 0.35
	periodicityMin       = 0.35
	periodicityMax       = 0.80
	flatnessMin          = 0.25
	flatnessMax          = 0.85
	hfRatioMin           = 0.18
	hfRatioMax           = 0.45
	energyGateMin        = 0.003
	energyGateMax        = 0.02
	hfSplitFrac          = 0.25

	maskerMaxPeaks  = 64
	maskerRadiusMin = 32.0
	maskerRadiusMax = 10.0
	maskerAlphaMin  = 10.0
	maskerAlphaMax  = 4.0
)

// Mains hum harmonic sets fed to the analysis-side attenuator. The default
// covers both 50 and 60 Hz families until the host narrows it.
var (
	humFreqsDefault = []float64{50, 60, 100, 120, 150, 180}
	humFreqs50      = []float64{50, 100, 150}
	humFreqs60      = []float64{60, 120, 180}
)

// DenoiseConfig carries per-block denoiser controls.
type DenoiseConfig struct {
	// Amount is the reduction depth in [0,1].
	Amount float64
	// Sensitivity raises the noise threshold, trading residual hiss against
	// aggressiveness on low-level detail.
	Sensitivity float64
	// Tone tilts the reduction toward rumble (<0.5) or hiss (>0.5).
	Tone float64
	// UseML routes the spectral mask advisor into the detector when one is
	// attached.
	UseML bool
}

// maskAdvisor supplies an external per-bin speech-probability mask over the
// detector's half spectrum. Implementations must be deterministic per frame;
// any error permanently disengages the advisor.
type maskAdvisor interface {
	EstimateMask(frame []float64, sampleRate float64, mask []float64) error
}

// denoiseDetector computes one shared per-bin gain curve from a mono proxy
// frame. Both channels apply the same curve, keeping the stereo image intact.
type denoiseDetector struct {
	winSize    int
	sampleRate float64

	window   []float64
	fft      *fourier.FFT
	windowed []float64
	coeffs   []complex128

	coarseWin    int
	coarseWindow []float64
	coarseFFT    *fourier.FFT
	coarseFrame  []float64
	coarseCoeffs []complex128
	coarseFloor  []float64

	mag        []float64
	prevMag    []float64
	noiseFloor []float64
	prevGains  []float64
	gains      []float64
	masker     []float64
	mlMask     []float64
	frameTime  []float64
	f0Scratch  []float64
	peakBins   []int
	peakMags   []float64

	humFreqs []float64

	advisor     maskAdvisor
	advisorDead bool

	noiseConfidence float64
}

func newDenoiseDetector(winSize int, sampleRate float64) *denoiseDetector {
	nyq := winSize / 2
	coarseWin := winSize / coarseWinDiv
	if coarseWin < coarseWinMin {
		coarseWin = coarseWinMin
	}
	if coarseWin > winSize {
		coarseWin = winSize
	}
	nyqC := coarseWin / 2

	d := &denoiseDetector{
		winSize:    winSize,
		sampleRate: math.Max(sampleRate, denoiseSampleRateMin),

		window:   makeSqrtHannWindow(winSize),
		fft:      fourier.NewFFT(winSize),
		windowed: make([]float64, winSize),
		coeffs:   make([]complex128, nyq+1),

		coarseWin:    coarseWin,
		coarseWindow: makeSqrtHannWindow(coarseWin),
		coarseFFT:    fourier.NewFFT(coarseWin),
		coarseFrame:  make([]float64, coarseWin),
		coarseCoeffs: make([]complex128, nyqC+1),
		coarseFloor:  make([]float64, nyqC+1),

		mag:        make([]float64, nyq+1),
		prevMag:    make([]float64, nyq+1),
		noiseFloor: make([]float64, nyq+1),
		prevGains:  make([]float64, nyq+1),
		gains:      make([]float64, nyq+1),
		masker:     make([]float64, nyq+1),
		mlMask:     make([]float64, nyq+1),
		frameTime:  make([]float64, winSize),
		f0Scratch:  make([]float64, winSize),
		peakBins:   make([]int, 0, maskerMaxPeaks),
		peakMags:   make([]float64, 0, maskerMaxPeaks),

		humFreqs: humFreqsDefault,

		noiseConfidence: 1.0,
	}
	for i := range d.noiseFloor {
		d.noiseFloor[i] = denoiseNoiseFloorInit
		d.prevGains[i] = 1.0
		d.gains[i] = 1.0
	}
	for i := range d.coarseFloor {
		d.coarseFloor[i] = denoiseNoiseFloorInit
	}
	return d
}

// analyzeFrame builds the shared gain curve for the pending frame.
func (d *denoiseDetector) analyzeFrame(mono []float64, cfg DenoiseConfig) []float64 {
	n := d.winSize
	nyq := n / 2
	sr := d.sampleRate

	amt := clamp01(cfg.Amount)
	sensitivity := clamp01(cfg.Sensitivity)
	tone := clamp01(cfg.Tone)

	// Bypass resets the decision-directed history so re-engaging starts from
	// the current spectrum instead of a stale one.
	if amt <= bypassAmountEps {
		for i := 0; i <= nyq; i++ {
			d.prevGains[i] = 1.0
			d.prevMag[i] = d.mag[i]
		}
	}

	copy(d.frameTime, mono)
	for i := 0; i < n; i++ {
		d.windowed[i] = mono[i] * d.window[i]
	}
	d.fft.Coefficients(d.coeffs, d.windowed)
	for i := 0; i <= nyq; i++ {
		d.mag[i] = math.Max(cmplxAbs(d.coeffs[i]), magFloor)
	}

	// Analysis-side hum attenuation. Only the detector's view changes; the
	// signal path is untouched, so the floor settles under the hum and the
	// gain curve carves it.
	if amt > humAmountThresh {
		d.attenuateHum(sr)
		for i := 0; i <= nyq; i++ {
			d.mag[i] = math.Max(cmplxAbs(d.coeffs[i]), magFloor)
		}
	}

	d.updateCoarseFloor(mono)

	dspSpeechProb, voicedProb, f0 := d.estimateSpeechAndF0(sr)

	mlGlobalSPP := d.runAdvisor(cfg)
	globalSPP := clamp01(math.Max(dspSpeechProb, mlGlobalSPP*0.85))

	// Per-bin noise floor with speech-protected ballistics.
	startup := d.noiseFloor[nyq] < noiseStartupThresh
	var alphaAtt, alphaRel float64
	if startup {
		alphaAtt = noiseStartupAtt
		alphaRel = noiseStartupRel
	} else {
		protect := noiseProtectBase + noiseProtectRange*globalSPP
		alphaAtt = lerp(noiseAttBase, noiseAttMax, protect)
		alphaRel = lerp(noiseRelBase, noiseRelMax, protect)
	}

	stabilitySum := 0.0
	for i := 0; i <= nyq; i++ {
		mag := d.mag[i]
		nf := d.noiseFloor[i]
		prevNF := nf

		if mag < nf {
			nf = nf*alphaAtt + mag*(1-alphaAtt)
		} else {
			nf = nf*alphaRel + mag*(1-alphaRel)
		}
		nf = math.Max(nf, magFloor)
		d.noiseFloor[i] = nf

		if prevNF > magFloor {
			stabilitySum += math.Abs(nf-prevNF) / prevNF
		}
	}
	avgChange := stabilitySum / float64(nyq+1)
	instConf := clamp01(1 - avgChange*50)
	d.noiseConfidence = lerp(d.noiseConfidence, instConf, 0.05)

	// Unstable floor means the estimate may include speech; scale back.
	effectiveAmt := amt * (0.2 + 0.8*d.noiseConfidence)

	d.computeMaskerCurve(sr)

	voiced := voicedProb > voicedProbMin

	for i := 0; i <= nyq; i++ {
		mag := d.mag[i]
		nf := d.noiseFloor[i]
		freqFraction := float64(i) / float64(nyq)

		gamma := (mag * mag) / (nf*nf + denoiseSNREps)

		// Decision-directed a-priori SNR (Ephraim & Malah).
		pg := d.prevGains[i]
		pm := d.prevMag[i]
		xiHist := (pg * pg * pm * pm) / (nf*nf + denoiseSNREps)
		xiCurr := math.Max(gamma-1, 0)
		xi := denoiseDDAlpha*xiHist + (1-denoiseDDAlpha)*xiCurr

		wienerGain := xi / (1 + xi)

		var bias float64
		if tone < toneSplit {
			t := clamp01(tone * toneScale)
			bias = dbToGain(toneBiasDB * (1 - t) * (1 - freqFraction))
		} else {
			t := clamp01((tone - toneSplit) * toneScale)
			bias = dbToGain(toneBiasDB * t * freqFraction)
		}

		var bandWeight float64
		if voiced {
			mid := bell(freqFraction, voicedMidCenter, voicedMidWidth)
			bandWeight = voicedSpeechBase + voicedSpeechRange*mid
		} else {
			hi := smoothstep(unvoicedHFMin, unvoicedHFMax, freqFraction)
			bandWeight = unvoicedSpeechBase + unvoicedSpeechRange*hi
		}

		sppBin := clamp01(math.Max(dspSpeechProb, d.mlMask[i]*0.85)) * bandWeight

		threshScale := (1 + sensitivity*threshSensScale) * bias * (1 + speechThreshScale*sppBin)

		gainDepth := 1.0
		if mag <= nf*threshScale {
			depth := math.Pow(mag/(nf*threshScale+magFloor), rawGainPower)
			gainDepth = 1 - effectiveAmt*(1-depth)
		}

		wienerGain = math.Pow(wienerGain, lerp(strengthMin, strengthMax, effectiveAmt)) * gainDepth

		masker := math.Max(d.masker[i], magFloor)
		maskRatio := clamp01(masker / (masker + nf))
		floorScale := lerp(1, floorScaleMin, effectiveAmt)
		speechScale := lerp(1, speechFloorScaleMin, effectiveAmt)

		psychoFloor := clamp(psychoFloorBase+psychoFloorRange*(1-maskRatio), psychoFloorMin, psychoFloorMax) * floorScale
		speechFloor := clamp(speechFloorBase+speechFloorRange*sppBin, speechFloorMin, speechFloorMax) * speechScale

		minFloor := 0.0
		if effectiveAmt > bypassAmountEps {
			minFloor = lerp(psychoFloor, speechFloor, sppBin)
		}

		d.gains[i] = math.Max(wienerGain, minFloor)
		d.prevMag[i] = mag
	}

	// Spectral smoothing knocks down isolated deep bins before they turn
	// into musical noise.
	if effectiveAmt > 0 {
		smoothStrength := smoothStrengthUnvoiced
		if voiced {
			smoothStrength = smoothStrengthVoiced
		}
		prev := d.gains[0]
		for i := 1; i < nyq-1; i++ {
			curr := d.gains[i]
			next := d.gains[i+1]
			sm := (prev + curr + next) / 3
			prev = curr
			d.gains[i] = lerp(curr, sm, smoothStrength)
		}
	}

	// Temporal release limit. Relaxes as speech probability falls so hiss
	// can decay fully during silence.
	if effectiveAmt > 0 {
		releaseLimit := lerp(releaseLimitMin, releaseLimitMax, globalSPP)
		for i := 0; i <= nyq; i++ {
			if d.gains[i] < d.prevGains[i] {
				d.gains[i] = math.Max(d.gains[i], d.prevGains[i]*releaseLimit)
			}
			d.prevGains[i] = d.gains[i]
		}
	}

	if effectiveAmt > 0 && voiced && f0 > harmonicF0MinHz && f0 < harmonicF0MaxHz {
		d.applyHarmonicProtection(sr, f0, globalSPP, effectiveAmt)
	}

	return d.gains
}

// runAdvisor fills mlMask from the attached advisor and returns its global
// speech probability. Any failure zeroes the mask and disengages the advisor
// for the rest of the session.
func (d *denoiseDetector) runAdvisor(cfg DenoiseConfig) float64 {
	if !cfg.UseML || d.advisor == nil || d.advisorDead {
		for i := range d.mlMask {
			d.mlMask[i] = 0
		}
		return 0
	}
	if err := d.advisor.EstimateMask(d.frameTime, d.sampleRate, d.mlMask); err != nil {
		d.advisorDead = true
		for i := range d.mlMask {
			d.mlMask[i] = 0
		}
		return 0
	}
	maxMask := 0.0
	for _, v := range d.mlMask {
		if v > maxMask {
			maxMask = v
		}
	}
	return maxMask
}

func (d *denoiseDetector) updateCoarseFloor(mono []float64) {
	n2 := d.coarseWin
	nyq2 := n2 / 2
	for i := 0; i < n2; i++ {
		d.coarseFrame[i] = mono[i] * d.coarseWindow[i]
	}
	d.coarseFFT.Coefficients(d.coarseCoeffs, d.coarseFrame)
	for i := 0; i <= nyq2; i++ {
		mag := math.Max(cmplxAbs(d.coarseCoeffs[i]), magFloor)
		nf := d.coarseFloor[i]
		if mag < nf {
			nf = nf*noiseCoarseAtt + mag*(1-noiseCoarseAtt)
		} else {
			nf = nf*noiseCoarseRel + mag*(1-noiseCoarseRel)
		}
		d.coarseFloor[i] = math.Max(nf, magFloor)
	}
}

// broadbandFloorDB reports the coarse tracker's mean floor, used for the
// noise-floor meter.
func (d *denoiseDetector) broadbandFloorDB() float64 {
	var sum float64
	for _, v := range d.coarseFloor {
		sum += v * v
	}
	mean := sum / float64(len(d.coarseFloor))
	// Normalize out the window-length magnitude scale before converting.
	amp := math.Sqrt(mean) / float64(d.coarseWin)
	return 20 * math.Log10(math.Max(amp, dbEps))
}

func (d *denoiseDetector) estimateSpeechAndF0(sr float64) (speechProb, voicedProb, f0 float64) {
	nyq := d.winSize / 2

	periodicity, estF0 := estimateF0Autocorr(d.frameTime, sr, d.f0Scratch)
	f0 = estF0
	voicedProb = smoothstep(periodicityMin, periodicityMax, periodicity)

	var sumLog, sumLinear float64
	for i := 1; i < nyq; i++ {
		mag := d.mag[i]
		if mag > magFloor {
			sumLog += math.Log(mag)
			sumLinear += mag
		}
	}
	geomMean := 0.0
	if sumLinear > magFloor {
		geomMean = math.Exp(sumLog / float64(nyq-1))
	}
	arithMean := sumLinear / float64(nyq-1)
	flatness := 0.0
	if arithMean > magFloor {
		flatness = geomMean / arithMean
	}
	tonalProb := smoothstep(flatnessMin, flatnessMax, flatness)

	splitBin := int(float64(nyq) * hfSplitFrac)
	var lfSum, hfSum float64
	for i := 1; i < splitBin; i++ {
		lfSum += d.mag[i]
	}
	for i := splitBin; i < nyq; i++ {
		hfSum += d.mag[i]
	}
	hfRatio := 0.0
	if lfSum > magFloor {
		hfRatio = hfSum / lfSum
	}
	unvoicedProb := smoothstep(hfRatioMin, hfRatioMax, hfRatio)

	energyProb := smoothstep(energyGateMin, energyGateMax, frameRMS(d.frameTime))

	speechProb = (speechWeightVoiced*voicedProb +
		speechWeightTonal*tonalProb +
		speechWeightUnvoiced*unvoicedProb) * energyProb

	return clamp01(speechProb), voicedProb, f0
}

func (d *denoiseDetector) attenuateHum(sr float64) {
	nyq := d.winSize / 2
	binWidth := sr / float64(d.winSize)
	for _, freq := range d.humFreqs {
		bin := int(freq / binWidth)
		if bin <= 0 || bin >= nyq {
			continue
		}
		d.coeffs[bin] *= complex(humMainScale, 0)
		if bin > 1 {
			d.coeffs[bin-1] *= complex(humSideScale, 0)
		}
		if bin+1 <= nyq {
			d.coeffs[bin+1] *= complex(humSideScale, 0)
		}
	}
	lowCut := int(humLowCutHz / binWidth)
	if lowCut > nyq {
		lowCut = nyq
	}
	for i := 1; i < lowCut; i++ {
		d.coeffs[i] = 0
	}
}

func (d *denoiseDetector) computeMaskerCurve(sr float64) {
	nyq := d.winSize / 2
	for i := range d.masker {
		d.masker[i] = 0
	}

	d.peakBins = d.peakBins[:0]
	d.peakMags = d.peakMags[:0]
	for i := 2; i < nyq-2; i++ {
		m := d.mag[i]
		if m > d.mag[i-1] && m > d.mag[i+1] && m > d.mag[i-2] && m > d.mag[i+2] && m > 1e-6 {
			d.peakBins = append(d.peakBins, i)
			d.peakMags = append(d.peakMags, m)
			if len(d.peakBins) >= maskerMaxPeaks {
				break
			}
		}
	}

	binWidth := sr / float64(d.winSize)
	for p, peakBin := range d.peakBins {
		peakMag := d.peakMags[p]
		if peakMag <= magFloor {
			continue
		}
		freqHz := float64(peakBin) * binWidth
		radius := math.Max(lerp(maskerRadiusMin, maskerRadiusMax, freqHz/10000), 1)
		alpha := math.Max(lerp(maskerAlphaMin, maskerAlphaMax, freqHz/10000), 1)

		ri := int(radius)
		for di := -ri; di <= ri; di++ {
			j := peakBin + di
			if j < 0 || j >= nyq {
				continue
			}
			dist := math.Abs(float64(di)) / radius
			if dist > 1 {
				continue
			}
			w := math.Exp(-alpha * dist)
			if v := peakMag * w; v > d.masker[j] {
				d.masker[j] = v
			}
		}
	}
}

func (d *denoiseDetector) applyHarmonicProtection(sr, f0, globalSPP, strength float64) {
	binWidth := sr / float64(d.winSize)
	nyq := d.winSize / 2

	allowReduction := lerp(harmonicAllowMin, harmonicAllowMax, globalSPP)
	protectedMin := lerp(lerp(harmonicMinGainMin, harmonicMinGainMax, strength), 1, allowReduction)

	for harm := 1; harm <= harmonicMaxCount; harm++ {
		harmonicFreq := f0 * float64(harm)
		if harmonicFreq > harmonicMaxHz {
			break
		}
		harmonicBin := int(harmonicFreq / binWidth)
		if harmonicBin >= nyq {
			break
		}

		bwFactor := 1 - math.Min(harmonicFreq/harmonicMaxHz, 1)
		bwBins := int(math.Max(lerp(harmonicWidthMin, harmonicWidthMax, bwFactor), 1))

		start := harmonicBin - bwBins
		if start < 0 {
			start = 0
		}
		end := harmonicBin + bwBins
		if end > nyq {
			end = nyq
		}
		for bin := start; bin <= end; bin++ {
			if d.gains[bin] < protectedMin {
				d.gains[bin] = protectedMin
			}
		}
	}
}

func (d *denoiseDetector) reset() {
	for i := range d.noiseFloor {
		d.noiseFloor[i] = denoiseNoiseFloorInit
		d.prevGains[i] = 1.0
		d.gains[i] = 1.0
		d.prevMag[i] = 0
		d.masker[i] = 0
		d.mlMask[i] = 0
	}
	for i := range d.coarseFloor {
		d.coarseFloor[i] = denoiseNoiseFloorInit
	}
	d.noiseConfidence = 1.0
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// SpectralDenoiser is the deterministic denoiser: stereo-linked WOLA
// resynthesis driven by one shared detector. The mono proxy takes whichever
// channel is louder per sample, so a one-sided recording still steers the
// shared curve.
type SpectralDenoiser struct {
	detector *denoiseDetector
	chanL    *wolaChannel
	chanR    *wolaChannel
	dryL     *sampleDelay
	dryR     *sampleDelay

	winSize int
	hopSize int

	frameL    []float64
	frameR    []float64
	frameMono []float64
}

// NewSpectralDenoiser builds the denoiser at the standard WOLA geometry.
func NewSpectralDenoiser(sampleRate float64) *SpectralDenoiser {
	return &SpectralDenoiser{
		detector:  newDenoiseDetector(wolaWinSize, sampleRate),
		chanL:     newWOLAChannel(wolaWinSize, wolaHopSize),
		chanR:     newWOLAChannel(wolaWinSize, wolaHopSize),
		dryL:      newSampleDelay(wolaWinSize),
		dryR:      newSampleDelay(wolaWinSize),
		winSize:   wolaWinSize,
		hopSize:   wolaHopSize,
		frameL:    make([]float64, wolaWinSize),
		frameR:    make([]float64, wolaWinSize),
		frameMono: make([]float64, wolaWinSize),
	}
}

// SetMaskAdvisor attaches the optional spectral mask advisor.
func (d *SpectralDenoiser) SetMaskAdvisor(a maskAdvisor) {
	d.detector.advisor = a
	d.detector.advisorDead = false
}

// SetMainsFrequency narrows analysis-side hum attenuation to harmonics of
// the regional mains base (50 or 60). Other values restore the default set
// covering both families.
func (d *SpectralDenoiser) SetMainsFrequency(baseHz int) {
	switch baseHz {
	case 50:
		d.detector.humFreqs = humFreqs50
	case 60:
		d.detector.humFreqs = humFreqs60
	default:
		d.detector.humFreqs = humFreqsDefault
	}
}

// ProcessSample advances the denoiser by one stereo sample. The outputs lag
// the inputs by one window; removed is aligned with the outputs.
func (d *SpectralDenoiser) ProcessSample(l, r float64, cfg DenoiseConfig) (outL, outR, removedL, removedR float64) {
	d.chanL.pushInput(l)
	d.chanR.pushInput(r)

	if d.chanL.frameReady() && d.chanR.frameReady() {
		d.chanL.peekFrame(d.frameL)
		d.chanR.peekFrame(d.frameR)
		for i := 0; i < d.winSize; i++ {
			fl, fr := d.frameL[i], d.frameR[i]
			if math.Abs(fl) >= math.Abs(fr) {
				d.frameMono[i] = fl
			} else {
				d.frameMono[i] = fr
			}
		}

		gains := d.detector.analyzeFrame(d.frameMono, cfg)
		d.chanL.processFrame(gains)
		d.chanR.processFrame(gains)
		d.chanL.discardInput(d.hopSize)
		d.chanR.discardInput(d.hopSize)
	}

	outL = d.chanL.popOutput()
	outR = d.chanR.popOutput()
	removedL = d.dryL.process(l) - outL
	removedR = d.dryR.process(r) - outR
	return outL, outR, removedL, removedR
}

// NoiseConfidence reports the detector's floor-stability estimate in [0,1].
func (d *SpectralDenoiser) NoiseConfidence() float64 {
	return d.detector.noiseConfidence
}

// NoiseFloorDB reports the broadband noise-floor estimate for metering.
func (d *SpectralDenoiser) NoiseFloorDB() float64 {
	return d.detector.broadbandFloorDB()
}

// Latency reports the fixed delay through the stage in samples.
func (d *SpectralDenoiser) Latency() int {
	return d.winSize
}

// Prepare re-tunes the detector for a new sample rate and clears state.
func (d *SpectralDenoiser) Prepare(sampleRate float64) {
	d.detector.sampleRate = math.Max(sampleRate, denoiseSampleRateMin)
	d.Reset()
}

// Reset clears stream and detector state. Latency is unchanged.
func (d *SpectralDenoiser) Reset() {
	d.chanL.reset()
	d.chanR.reset()
	d.dryL.reset()
	d.dryR.reset()
	d.detector.reset()
}
