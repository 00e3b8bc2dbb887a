// Package audio provides streaming WAV file reading and writing.
// Samples are exchanged with callers as float64 frames in [-1, 1];
// integer PCM conversion happens at this boundary and nowhere else.
package audio

import (
	"fmt"
	"io"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// readChunkFrames is the number of frames decoded per refill. Large enough
// to amortise chunk-reader overhead, small enough to keep memory flat.
const readChunkFrames = 4096

// WAV format codes from the fmt chunk. Extensible containers carry the real
// format in a sub-chunk but go-audio decodes their integer PCM fine.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// Metadata contains audio file metadata read from the WAV header.
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	SampleFmt  string // sample format name, e.g. "s16", "s24"
	ChLayout   string // channel layout name, e.g. "mono", "stereo"
	BitDepth   int
}

// Reader streams a WAV file as stereo float64 frames. Mono files are
// duplicated into both channels so callers always see two channels.
type Reader struct {
	file     *os.File
	dec      *wav.Decoder
	buf      *gaudio.IntBuffer
	channels int
	bitDepth int
	scale    float64

	pos    int // next unread sample in buf.Data
	filled int // valid samples in buf.Data
	eof    bool
	closed bool
}

// OpenAudioFile opens a WAV file for reading and returns its metadata.
// The caller must Close the returned Reader.
func OpenAudioFile(filename string) (*Reader, *Metadata, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		file.Close()
		if derr := dec.Err(); derr != nil {
			return nil, nil, fmt.Errorf("not a valid WAV file: %w", derr)
		}
		return nil, nil, fmt.Errorf("not a valid WAV file: %s", filename)
	}

	if dec.WavAudioFormat == wavFormatIEEEFloat {
		file.Close()
		return nil, nil, fmt.Errorf("float WAV is not supported, convert %s to integer PCM first", filename)
	}

	channels := int(dec.NumChans)
	if channels < 1 || channels > 2 {
		file.Close()
		return nil, nil, fmt.Errorf("unsupported channel count %d (mono or stereo only)", channels)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		file.Close()
		return nil, nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	duration, err := dec.Duration()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to read duration: %w", err)
	}

	metadata := &Metadata{
		Duration:   duration.Seconds(),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		SampleFmt:  sampleFormatName(bitDepth),
		ChLayout:   channelLayoutName(channels),
		BitDepth:   bitDepth,
	}

	reader := &Reader{
		file:     file,
		dec:      dec,
		channels: channels,
		bitDepth: bitDepth,
		scale:    1.0 / float64(int(1)<<(bitDepth-1)),
		buf: &gaudio.IntBuffer{
			Format: &gaudio.Format{
				NumChannels: channels,
				SampleRate:  int(dec.SampleRate),
			},
			Data: make([]int, readChunkFrames*channels),
		},
	}

	return reader, metadata, nil
}

// ReadStereo fills left and right with up to len(left) frames and returns
// the number of frames read. Returns io.EOF once the file is exhausted.
func (r *Reader) ReadStereo(left, right []float64) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("reader is closed")
	}

	want := len(left)
	if len(right) < want {
		want = len(right)
	}

	frames := 0
	for frames < want {
		if r.pos+r.channels > r.filled {
			if r.eof {
				break
			}
			if err := r.refill(); err != nil {
				return frames, err
			}
			if r.pos+r.channels > r.filled {
				break
			}
		}

		if r.channels == 1 {
			s := r.toFloat(r.buf.Data[r.pos])
			left[frames] = s
			right[frames] = s
			r.pos++
		} else {
			left[frames] = r.toFloat(r.buf.Data[r.pos])
			right[frames] = r.toFloat(r.buf.Data[r.pos+1])
			r.pos += 2
		}
		frames++
	}

	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

// refill decodes the next chunk of interleaved samples into the buffer.
func (r *Reader) refill() error {
	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		return fmt.Errorf("failed to decode PCM: %w", err)
	}
	if n == 0 {
		r.eof = true
	}
	r.filled = n
	r.pos = 0
	return nil
}

// toFloat converts one raw PCM sample to [-1, 1]. WAV stores 8-bit
// samples unsigned (0..255); every other depth is signed.
func (r *Reader) toFloat(v int) float64 {
	if r.bitDepth == 8 {
		return (float64(v) - 128.0) / 128.0
	}
	return float64(v) * r.scale
}

// Close releases the file handle. Safe to call multiple times.
func (r *Reader) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.file != nil {
		r.file.Close()
	}
}

// sampleFormatName returns a short sample format name for a bit depth.
func sampleFormatName(bitDepth int) string {
	if bitDepth == 8 {
		return "u8"
	}
	return fmt.Sprintf("s%d", bitDepth)
}

// channelLayoutName returns a human-readable channel layout name.
func channelLayoutName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
