package audio

import (
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer streams stereo float64 frames into a WAV file. Mono output mixes
// the two channels down. The header is finalised on Close.
type Writer struct {
	file     *os.File
	enc      *wav.Encoder
	buf      *gaudio.IntBuffer
	channels int
	scale    float64
	frames   int64
	closed   bool
}

// CreateAudioFile creates a WAV file for writing integer PCM.
// Supported bit depths are 16, 24 and 32; 8-bit output is not produced.
func CreateAudioFile(filename string, sampleRate, bitDepth, channels int) (*Writer, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported output bit depth %d", bitDepth)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported output channel count %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w := &Writer{
		file:     file,
		enc:      wav.NewEncoder(file, sampleRate, bitDepth, channels, wavFormatPCM),
		channels: channels,
		scale:    float64(int(1)<<(bitDepth-1)) - 1,
		buf: &gaudio.IntBuffer{
			Format: &gaudio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
	}
	return w, nil
}

// WriteStereo appends min(len(left), len(right)) frames to the file.
func (w *Writer) WriteStereo(left, right []float64) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	frames := len(left)
	if len(right) < frames {
		frames = len(right)
	}
	if frames == 0 {
		return nil
	}

	need := frames * w.channels
	if cap(w.buf.Data) < need {
		w.buf.Data = make([]int, need)
	}
	w.buf.Data = w.buf.Data[:need]

	if w.channels == 1 {
		for i := 0; i < frames; i++ {
			w.buf.Data[i] = w.quantise(0.5 * (left[i] + right[i]))
		}
	} else {
		for i := 0; i < frames; i++ {
			w.buf.Data[2*i] = w.quantise(left[i])
			w.buf.Data[2*i+1] = w.quantise(right[i])
		}
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write PCM: %w", err)
	}
	w.frames += int64(frames)
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int64 { return w.frames }

// Close finalises the WAV header and closes the file.
// Safe to call multiple times.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalise WAV header: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close output file: %w", fileErr)
	}
	return nil
}

// quantise clamps a sample to [-1, 1] and rounds to the target bit depth.
func (w *Writer) quantise(v float64) int {
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int(math.Round(v * w.scale))
}
