package processor

import (
	"fmt"
	"io"
	"math"

	"github.com/voicemend/voicemend/internal/audio"
	"github.com/voicemend/voicemend/internal/dsp"
	"github.com/voicemend/voicemend/internal/engine"
)

// AudioAnalysis contains the results from the Pass 1 analysis of the input
// file. Loudness follows BS.1770 (K-weighted, gated); the room and balance
// metrics come from the profile analyzer that also runs inside the engine,
// so the analysis pass and the restoration pass agree on what they measured.
type AudioAnalysis struct {
	// Loudness
	InputLUFS     float64 `json:"input_lufs"` // Integrated loudness (LUFS)
	InputTruePeak float64 `json:"input_tp"`   // True peak (dBTP)

	// Level statistics
	RMSLevel    float64 `json:"rms_level"`    // Overall RMS level (dBFS)
	PeakLevel   float64 `json:"peak_level"`   // Sample peak (dBFS)
	CrestFactor float64 `json:"crest_factor"` // Peak-to-RMS ratio (dB)
	RMSVariance float64 `json:"rms_variance"` // Short-term RMS variance (linear)

	// Noise
	NoiseFloor float64 `json:"noise_floor"` // Estimated noise floor (dBFS)
	SNR        float64 `json:"snr"`         // Speech-to-noise ratio (dB)

	// Room character
	EarlyLateRatio float64 `json:"early_late_ratio"` // Direct vs late energy after onsets
	DecaySlope     float64 `json:"decay_slope"`      // Speech-gated RMS slope per frame

	// Spectral balance
	PresenceRatio float64 `json:"presence_ratio"` // 2-5 kHz share of total energy
	AirRatio      float64 `json:"air_ratio"`      // 10 kHz+ share of total energy
	HFVariance    float64 `json:"hf_variance"`    // 6-12 kHz energy variance

	// File facts
	DurationSecs float64 `json:"duration_secs"`
	SampleRate   int     `json:"sample_rate"`
	Channels     int     `json:"channels"`
	BitDepth     int     `json:"bit_depth"`

	// Raw profile snapshot and the hard-rule classifications derived from it.
	Profile    dsp.AudioProfile          `json:"-"`
	Conditions engine.DetectedConditions `json:"-"`

	// Capture-analyzer recommendation. SuggestValid is false when the file
	// held too little voiced material to recommend anything.
	Suggested    dsp.SuggestedSettings `json:"-"`
	SuggestValid bool                  `json:"-"`
}

// analysisProgressInterval is how many blocks pass between progress
// callbacks. At 512-frame blocks this throttles UI traffic to a few dozen
// updates per second of audio.
const analysisProgressInterval = 20

// AnalyzeAudio performs the Pass 1 analysis: a single streaming read of the
// input feeding the loudness meter, the profile analyzer, and the capture
// analyzer. The progress callback receives pass 1 updates with a nil
// analysis pointer until the final call at progress 1.0.
func AnalyzeAudio(inputPath string, progressCallback ProgressCallback) (*AudioAnalysis, error) {
	reader, metadata, err := audio.OpenAudioFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("analysis pass failed to open input: %w", err)
	}
	defer reader.Close()

	sampleRate := float64(metadata.SampleRate)
	loudness := dsp.NewLoudnessMeter(sampleRate)
	profile := dsp.NewProfileAnalyzer(sampleRate)
	capture := dsp.NewAutoAnalyzer(sampleRate)

	left := make([]float64, blockFrames)
	right := make([]float64, blockFrames)

	totalFrames := int64(metadata.Duration * sampleRate)
	var framesRead int64
	var sumSquares float64
	var peak float64
	blocks := 0

	if progressCallback != nil {
		progressCallback(1, passNameAnalysing, 0.0, silenceFloorDB, nil)
	}

	for {
		n, err := reader.ReadStereo(left, right)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("analysis pass failed to read audio: %w", err)
		}

		loudness.AddFrames(left[:n], right[:n])
		for i := 0; i < n; i++ {
			l, r := left[i], right[i]
			profile.Process(l, r)
			if !capture.Done() {
				capture.ProcessSample(0.5 * (l + r))
			}

			mono := 0.5 * (l + r)
			sumSquares += mono * mono
			if a := math.Abs(l); a > peak {
				peak = a
			}
			if a := math.Abs(r); a > peak {
				peak = a
			}
		}
		framesRead += int64(n)
		blocks++

		if progressCallback != nil && blocks%analysisProgressInterval == 0 {
			progressCallback(1, passNameAnalysing, progressFraction(framesRead, totalFrames), calculateFrameLevel(left[:n], right[:n]), nil)
		}
	}

	if framesRead == 0 {
		return nil, fmt.Errorf("no audio frames in %s", inputPath)
	}

	profile.FinalizeFrame()
	p := profile.Profile()

	analysis := &AudioAnalysis{
		RMSLevel:       LinearToDB(math.Sqrt(sumSquares / float64(framesRead))),
		PeakLevel:      LinearToDB(peak),
		RMSVariance:    p.RMSVariance,
		SNR:            p.SNRDB,
		EarlyLateRatio: p.EarlyLateRatio,
		DecaySlope:     p.DecaySlope,
		PresenceRatio:  p.PresenceRatio,
		AirRatio:       p.AirRatio,
		HFVariance:     p.HFVariance,
		DurationSecs:   metadata.Duration,
		SampleRate:     metadata.SampleRate,
		Channels:       metadata.Channels,
		BitDepth:       metadata.BitDepth,
		Profile:        p,
		Conditions:     engine.DetectConditions(p),
	}
	analysis.CrestFactor = analysis.PeakLevel - analysis.RMSLevel

	if lufs, ok := loudness.LoudnessGlobal(); ok {
		analysis.InputLUFS = lufs
	} else {
		// Too little gated material to integrate; fall back to RMS so the
		// downstream tiers still have a working level to reason about.
		analysis.InputLUFS = analysis.RMSLevel
	}
	analysis.InputTruePeak = loudness.TruePeakDB()

	analysis.NoiseFloor = deriveNoiseFloor(p, analysis.RMSLevel)

	if capture.HasData() {
		analysis.Suggested = capture.Finish()
		analysis.SuggestValid = true
	}

	if progressCallback != nil {
		progressCallback(1, passNameAnalysing, 1.0, silenceFloorDB, analysis)
	}

	return analysis, nil
}

// deriveNoiseFloor estimates the input noise floor in dBFS, best source
// first:
//
//  1. The profile analyzer's sustained low-energy floor, when it measured one
//  2. Overall RMS minus a nominal 15 dB speech-to-floor gap
//  3. A conservative default when nothing was measurable
//
// The result is clamped to [-90, -30] dBFS: below -90 the estimate says more
// about dither than the room, above -30 the "floor" is mostly program
// material.
func deriveNoiseFloor(p dsp.AudioProfile, rmsLevelDB float64) float64 {
	floor := -60.0
	switch {
	case p.NoiseFloor > 0:
		floor = LinearToDB(p.NoiseFloor)
	case rmsLevelDB > silenceFloorDB:
		floor = rmsLevelDB - 15.0
	}

	if floor < -90.0 {
		floor = -90.0
	}
	if floor > -30.0 {
		floor = -30.0
	}
	return floor
}

// progressFraction converts a frame count into a 0..1 fraction, saturating
// at 1 in case the header duration undershot the actual stream length.
func progressFraction(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

// LinearToDB converts a linear amplitude to decibels with a -120 dB floor
// for silence.
func LinearToDB(v float64) float64 {
	if v <= 1e-6 {
		return -120.0
	}
	return 20.0 * math.Log10(v)
}
