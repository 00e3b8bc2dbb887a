package dsp

// StereoDenoiser is the interface the engine drives. Implementations are
// sample-streaming and report their fixed latency so the host can align
// delta taps.
type StereoDenoiser interface {
	ProcessSample(l, r float64, cfg DenoiseConfig) (outL, outR, removedL, removedR float64)
	Reset()
	Latency() int
	NoiseConfidence() float64
}

// StreamingDenoiser routes audio through the deterministic spectral denoiser
// and, when configured, fuses the ONNX mask advisor into its detector. The
// DSP path is always constructed; the advisor only ever narrows what it
// removes. Keeping one signal path means toggling the advisor cannot change
// latency.
type StreamingDenoiser struct {
	spectral *SpectralDenoiser
	advisor  *ONNXMaskAdvisor

	currentUseML bool
}

// NewStreamingDenoiser builds the denoiser with no advisor attached.
func NewStreamingDenoiser(sampleRate float64) *StreamingDenoiser {
	return &StreamingDenoiser{
		spectral: NewSpectralDenoiser(sampleRate),
	}
}

// Prepare re-tunes for a sample rate and attaches the mask advisor when a
// model path is configured. The model file itself is not touched until the
// first frame that asks for it.
func (d *StreamingDenoiser) Prepare(sampleRate float64, modelPath string) {
	d.spectral.Prepare(sampleRate)
	if modelPath == "" {
		return
	}
	if d.advisor != nil {
		d.advisor.Close()
	}
	d.advisor = NewONNXMaskAdvisor(modelPath)
	d.spectral.SetMaskAdvisor(d.advisor)
}

// ProcessSample advances one stereo sample. Flipping cfg.UseML resets the
// spectral state so the engaged path starts clean.
func (d *StreamingDenoiser) ProcessSample(l, r float64, cfg DenoiseConfig) (outL, outR, removedL, removedR float64) {
	useML := cfg.UseML && d.advisor != nil
	if useML != d.currentUseML {
		d.currentUseML = useML
		d.spectral.Reset()
	}
	cfg.UseML = useML
	return d.spectral.ProcessSample(l, r, cfg)
}

// SetMainsFrequency forwards the regional mains base to the detector.
func (d *StreamingDenoiser) SetMainsFrequency(baseHz int) {
	d.spectral.SetMainsFrequency(baseHz)
}

// Reset clears all stream state. The advisor session survives.
func (d *StreamingDenoiser) Reset() {
	d.spectral.Reset()
}

// Latency reports the fixed delay through the stage in samples.
func (d *StreamingDenoiser) Latency() int {
	return d.spectral.Latency()
}

// NoiseConfidence reports floor stability in [0,1].
func (d *StreamingDenoiser) NoiseConfidence() float64 {
	return d.spectral.NoiseConfidence()
}

// NoiseFloorDB reports the broadband floor estimate for metering.
func (d *StreamingDenoiser) NoiseFloorDB() float64 {
	return d.spectral.NoiseFloorDB()
}

// MLEngaged reports whether the advisor is attached and selected.
func (d *StreamingDenoiser) MLEngaged() bool {
	return d.currentUseML && !d.spectral.detector.advisorDead
}

// Close releases advisor resources.
func (d *StreamingDenoiser) Close() error {
	if d.advisor != nil {
		err := d.advisor.Close()
		d.advisor = nil
		return err
	}
	return nil
}
