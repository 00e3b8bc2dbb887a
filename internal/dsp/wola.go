package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Overlap-add geometry shared by the spectral stages. 2048/512 at typical
// speech rates gives ~46 ms windows with 75% overlap; each stage delays the
// signal by exactly one window.
const (
	wolaWinSize = 2048
	wolaHopSize = 512

	// Ring headroom beyond one window, so any host block size fits without
	// the ring wrapping mid-frame.
	wolaRingCapMult = 4

	olaNormEps = 1e-6
)

// floatRing is a fixed-capacity FIFO of samples. Push on a full ring drops
// the sample and pop on an empty ring returns zero; the WOLA stages size
// their rings so neither happens in normal streaming.
type floatRing struct {
	buf  []float64
	head int
	n    int
}

func newFloatRing(capacity int) *floatRing {
	return &floatRing{buf: make([]float64, capacity)}
}

func (r *floatRing) push(v float64) {
	if r.n == len(r.buf) {
		return
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *floatRing) pop() float64 {
	if r.n == 0 {
		return 0
	}
	v := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v
}

// peek copies the oldest len(dst) samples without consuming them,
// zero-padding past the fill level.
func (r *floatRing) peek(dst []float64) {
	for i := range dst {
		if i < r.n {
			dst[i] = r.buf[(r.head+i)%len(r.buf)]
		} else {
			dst[i] = 0
		}
	}
}

func (r *floatRing) discard(n int) {
	if n > r.n {
		n = r.n
	}
	r.head = (r.head + n) % len(r.buf)
	r.n -= n
}

func (r *floatRing) len() int {
	return r.n
}

func (r *floatRing) reset() {
	r.head = 0
	r.n = 0
}

func (r *floatRing) pushZeros(n int) {
	for i := 0; i < n; i++ {
		r.push(0)
	}
}

// sampleDelay is a fixed delay line. The subtractive WOLA stages run one
// alongside the wet path so removed = delayed input - output holds exactly.
type sampleDelay struct {
	buf []float64
	pos int
}

func newSampleDelay(n int) *sampleDelay {
	return &sampleDelay{buf: make([]float64, n)}
}

func (d *sampleDelay) process(in float64) float64 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
	return out
}

func (d *sampleDelay) reset() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.pos = 0
}

// wolaChannel resynthesizes one channel through a weighted overlap-add
// pipeline: sqrt-Hann on analysis and synthesis, per-bin real gains applied
// to the half spectrum, energy-normalized overlap-add on the way out. The
// output ring is primed with one window of zeros, so the stage has a fixed
// winSize-sample latency from the very first sample and never varies it.
//
// All buffers and the FFT plan are allocated at construction; the streaming
// methods never allocate.
type wolaChannel struct {
	winSize int
	hopSize int

	window []float64
	in     *floatRing
	out    *floatRing

	frame   []float64
	coeffs  []complex128
	synth   []float64
	overlap []float64
	olaNorm []float64

	fft *fourier.FFT
}

func newWOLAChannel(winSize, hopSize int) *wolaChannel {
	capacity := winSize * wolaRingCapMult
	c := &wolaChannel{
		winSize: winSize,
		hopSize: hopSize,
		window:  makeSqrtHannWindow(winSize),
		in:      newFloatRing(capacity),
		out:     newFloatRing(capacity),
		frame:   make([]float64, winSize),
		coeffs:  make([]complex128, winSize/2+1),
		synth:   make([]float64, winSize),
		overlap: make([]float64, winSize),
		olaNorm: make([]float64, winSize),
		fft:     fourier.NewFFT(winSize),
	}
	c.out.pushZeros(winSize)
	return c
}

func (c *wolaChannel) pushInput(v float64) {
	c.in.push(v)
}

// frameReady reports whether a full analysis window has accumulated.
func (c *wolaChannel) frameReady() bool {
	return c.in.len() >= c.winSize
}

// peekFrame copies the pending window without consuming it. Consumption is a
// separate discardInput(hop) so successive frames overlap.
func (c *wolaChannel) peekFrame(dst []float64) {
	c.in.peek(dst)
}

func (c *wolaChannel) discardInput(n int) {
	c.in.discard(n)
}

// processFrame windows the pending frame, applies gains to the half spectrum
// and overlap-adds one hop of output. gains must hold winSize/2+1 values.
func (c *wolaChannel) processFrame(gains []float64) {
	if len(gains) != c.winSize/2+1 {
		return
	}

	c.in.peek(c.frame)
	for i := range c.frame {
		c.frame[i] *= c.window[i]
	}

	c.fft.Coefficients(c.coeffs, c.frame)
	for i, g := range gains {
		c.coeffs[i] *= complex(g, 0)
	}
	c.fft.Sequence(c.synth, c.coeffs)

	// The transform pair is unnormalized; fold 1/N into synthesis.
	norm := 1.0 / float64(c.winSize)
	for i := 0; i < c.winSize; i++ {
		w := c.window[i]
		c.overlap[i] += c.synth[i] * norm * w
		c.olaNorm[i] += w * w
	}

	for i := 0; i < c.hopSize; i++ {
		denom := math.Max(c.olaNorm[i], olaNormEps)
		c.out.push(c.overlap[i] / denom)
	}

	copy(c.overlap, c.overlap[c.hopSize:])
	copy(c.olaNorm, c.olaNorm[c.hopSize:])
	for i := c.winSize - c.hopSize; i < c.winSize; i++ {
		c.overlap[i] = 0
		c.olaNorm[i] = 0
	}
}

func (c *wolaChannel) popOutput() float64 {
	return c.out.pop()
}

// reset clears stream state and re-primes the latency zeros so the delay
// through the stage is identical before and after.
func (c *wolaChannel) reset() {
	c.in.reset()
	c.out.reset()
	c.out.pushZeros(c.winSize)
	for i := range c.overlap {
		c.overlap[i] = 0
		c.olaNorm[i] = 0
	}
}
