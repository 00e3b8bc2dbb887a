package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voicemend/voicemend/internal/processor"
)

// RecordingTip represents a single piece of actionable recording advice
// derived from capture analysis measurements.
type RecordingTip struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable advice (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "level_too_quiet")
}

// MaxRecordingTips is the maximum number of tips to return.
const MaxRecordingTips = 5

// GenerateRecordingTips analyses the capture measurements and returns
// prioritised recording improvement suggestions.
func GenerateRecordingTips(result *processor.ProcessingResult) []RecordingTip {
	if result == nil || result.Analysis == nil {
		return nil
	}

	var tips []RecordingTip
	firedRules := make(map[string]bool)

	rules := []func(*processor.ProcessingResult) *RecordingTip{
		tipLevelTooHot,
		tipLevelTooQuiet,
		tipLevelQuiet,
		tipBackgroundNoise,
		tipMainsHum,
		tipTooFarFromMic,
		tipReverberantRoom,
		tipProximityEffect,
		tipSibilance,
		tipDynamicRange,
		tipOverCompressed,
		tipPoorSNR,
		tipWhisperedDelivery,
	}

	for _, rule := range rules {
		if tip := rule(result); tip != nil {
			tips = append(tips, *tip)
			firedRules[tip.RuleID] = true
		}
	}

	// Apply mutual exclusion
	tips = applyExclusions(tips, firedRules)

	// Sort by priority (descending)
	sort.Slice(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})

	// Cap at maximum
	if len(tips) > MaxRecordingTips {
		tips = tips[:MaxRecordingTips]
	}

	return tips
}

// applyExclusions removes tips that are redundant when a more specific tip
// has already fired. For example, "level_quiet" is suppressed when
// "too_far_from_mic" fires because the latter already implies the former.
func applyExclusions(tips []RecordingTip, fired map[string]bool) []RecordingTip {
	var result []RecordingTip
	for _, tip := range tips {
		switch tip.RuleID {
		case "level_too_quiet", "level_quiet":
			if fired["level_clipping"] || fired["level_near_clipping"] || fired["too_far_from_mic"] {
				continue
			}
		case "poor_snr", "reverberant_room":
			if fired["too_far_from_mic"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// tipLevelTooQuiet fires when the recording level is very quiet.
// Speech RMS below -42 dBFS leaves the restoration fighting quantisation and
// preamp noise. Gain target is -24 dBFS speech RMS.
func tipLevelTooQuiet(r *processor.ProcessingResult) *RecordingTip {
	rms := r.Analysis.RMSLevel
	if rms >= -42.0 {
		return nil
	}
	gainNeeded := -24.0 - rms
	return &RecordingTip{
		Priority: 10,
		RuleID:   "level_too_quiet",
		Message:  fmt.Sprintf("Your microphone gain is too low - try increasing it by about %.0f dB.", gainNeeded),
	}
}

// tipLevelQuiet fires when the recording level is moderately quiet
// (speech RMS between -42 and -36 dBFS).
func tipLevelQuiet(r *processor.ProcessingResult) *RecordingTip {
	rms := r.Analysis.RMSLevel
	if rms < -42.0 || rms >= -36.0 {
		return nil
	}
	gainNeeded := -24.0 - rms
	return &RecordingTip{
		Priority: 8,
		RuleID:   "level_quiet",
		Message:  fmt.Sprintf("Your recording is a bit quiet - increasing your microphone gain by about %.0f dB would improve quality.", gainNeeded),
	}
}

// tipLevelTooHot fires when true peak approaches or exceeds 0 dBTP.
// InputTruePeak > 0.0 means actual clipping; > -1.0 means dangerously close.
func tipLevelTooHot(r *processor.ProcessingResult) *RecordingTip {
	tp := r.Analysis.InputTruePeak
	if tp <= -1.0 {
		return nil
	}
	if tp > 0.0 {
		return &RecordingTip{
			Priority: 10,
			RuleID:   "level_clipping",
			Message:  "Your recording is clipping - turn your microphone gain down by 6-10 dB to prevent distortion.",
		}
	}
	return &RecordingTip{
		Priority: 9,
		RuleID:   "level_near_clipping",
		Message:  "Your recording is very close to clipping - turn your microphone gain down by 3-6 dB to give yourself some headroom.",
	}
}

// tipBackgroundNoise fires when the noise floor is elevated.
// Thresholds align with the adaptive tuner: -45 dBFS forces aggressive
// denoising, -55 dBFS is where hiss becomes audible in pauses.
func tipBackgroundNoise(r *processor.ProcessingResult) *RecordingTip {
	noiseFloor := r.Analysis.NoiseFloor

	if noiseFloor > -45.0 {
		return &RecordingTip{
			Priority: 9,
			RuleID:   "background_noise_high",
			Message:  fmt.Sprintf("Background noise is high (%.0f dBFS) - try turning off fans, air conditioning, or other appliances before recording.", noiseFloor),
		}
	}
	if noiseFloor > -55.0 {
		return &RecordingTip{
			Priority: 6,
			RuleID:   "background_noise_moderate",
			Message:  fmt.Sprintf("Background noise is slightly elevated (%.0f dBFS) - if possible, turn off any fans or appliances nearby.", noiseFloor),
		}
	}
	return nil
}

// tipMainsHum fires when the rumble tracker was driven into mains territory.
// The adaptive highpass rests at 20 Hz and only climbs when sustained
// low-frequency energy is detected; a cutoff at 55 Hz or above with an
// audible floor indicates hum from power supplies or ground loops.
func tipMainsHum(r *processor.ProcessingResult) *RecordingTip {
	if r.Meters.RumbleHz < 55.0 || r.Analysis.NoiseFloor < -65.0 {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "mains_hum",
		Message:  "There's a constant low-frequency hum in your recording - check for nearby power supplies, monitors, or chargers and move them further from your microphone.",
	}
}

// tipTooFarFromMic fires when the capture reads as a distant, diffuse pickup
// with a low speech level.
func tipTooFarFromMic(r *processor.ProcessingResult) *RecordingTip {
	distant := r.Conditions.DistantMic ||
		(r.Analysis.EarlyLateRatio < 0.1 && r.Analysis.RMSLevel < -30.0)
	if !distant {
		return nil
	}
	return &RecordingTip{
		Priority: 8,
		RuleID:   "too_far_from_mic",
		Message:  "You sound quite far from your microphone. Try moving closer - about a hand's width (15-20cm) from the mic is ideal for most setups.",
	}
}

// tipReverberantRoom fires when the room dominates the direct sound without
// the capture being outright distant.
func tipReverberantRoom(r *processor.ProcessingResult) *RecordingTip {
	if r.Analysis.EarlyLateRatio >= 0.15 || r.Conditions.DistantMic {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		RuleID:   "reverberant_room",
		Message:  "Your room sounds quite reverberant. Soft furnishings, curtains, or recording in a smaller space would reduce the echo considerably.",
	}
}

// tipProximityEffect fires when a very close capture reads muffled,
// the signature of proximity bass buildup on a directional microphone.
func tipProximityEffect(r *processor.ProcessingResult) *RecordingTip {
	if r.Analysis.EarlyLateRatio < 0.5 || r.Analysis.PresenceRatio >= 0.0015 {
		return nil
	}
	return &RecordingTip{
		Priority: 5,
		RuleID:   "proximity_effect",
		Message:  "Your voice sounds quite boomy - you may be too close to the microphone. Try moving back slightly or angling the mic to one side.",
	}
}

// tipSibilance fires when the de-esser ran at meaningful intensity against
// a harsh top end.
func tipSibilance(r *processor.ProcessingResult) *RecordingTip {
	if r.Meters.ResolvedDeEsser <= 0.3 || r.Analysis.AirRatio <= 0.005 {
		return nil
	}
	return &RecordingTip{
		Priority: 4,
		RuleID:   "sibilance",
		Message:  "Your recording has noticeable sibilance (harsh 's' and 'sh' sounds). Try angling your microphone slightly off-axis - point it at your chin rather than directly at your mouth.",
	}
}

// tipDynamicRange fires when the level varies widely, indicating
// inconsistent speaking volume or microphone distance.
func tipDynamicRange(r *processor.ProcessingResult) *RecordingTip {
	if r.Analysis.RMSVariance <= 0.015 && r.Analysis.CrestFactor <= 30.0 {
		return nil
	}
	return &RecordingTip{
		Priority: 5,
		RuleID:   "dynamic_range",
		Message:  "Your speaking volume varies quite a lot. Try to maintain a consistent distance from your microphone and a steady speaking level.",
	}
}

// tipOverCompressed fires when the crest factor is extremely low,
// indicating aggressive AGC or prior processing has damaged the audio.
// CrestFactor == 0 is treated as unmeasured and skipped.
func tipOverCompressed(r *processor.ProcessingResult) *RecordingTip {
	crest := r.Analysis.CrestFactor
	if crest >= 6.0 || crest == 0 {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		RuleID:   "over_compressed",
		Message:  "Your recording sounds heavily compressed, possibly by automatic gain control. If your microphone software has an 'AGC' or 'auto-level' setting, try turning it off and setting the gain manually.",
	}
}

// tipPoorSNR fires when the speech-to-noise gap is critically small.
// SNR == 0 is treated as unmeasured and skipped.
func tipPoorSNR(r *processor.ProcessingResult) *RecordingTip {
	snr := r.Analysis.SNR
	if snr >= 10.0 || snr == 0 {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "poor_snr",
		Message:  "The gap between your voice and the background noise is very small. Move closer to your microphone and reduce background noise if possible.",
	}
}

// tipWhisperedDelivery fires on breathy, unsupported voicing. Whispered
// material restores poorly because there is no harmonic structure to
// anchor the denoiser.
func tipWhisperedDelivery(r *processor.ProcessingResult) *RecordingTip {
	if !r.Conditions.Whisper {
		return nil
	}
	return &RecordingTip{
		Priority: 3,
		RuleID:   "whispered_delivery",
		Message:  "Your delivery is very breathy or whispered. If that's not intentional, speaking with a fuller voice a little further from the mic will restore much more cleanly.",
	}
}
