package audio

import "math"

const (
	minCutoff = 20.0
	maxCutoff = 20_000.0
	minQ      = 0.5
	maxQ      = 10.0

	// cutoffRampTime spreads cutoff changes over time so a CC sweep doesn't
	// step audibly.
	cutoffRampTime = 0.1 // seconds

	numCoefficients = 5
)

// filter is a lowpass biquad shared by all voices. The target cutoff comes
// from the parameter bus; the filter ramps its own state toward it by up to
// the full range per rampTime, recalculating coefficients once per block.
//
// Lowpass coefficients based on https://www.w3.org/2011/audio/audio-eq-cookbook.html
type filter struct {
	coefficients []float64
	cutoff       float64 // smoothed, chases the target

	// state
	y1, y2 float64 // y[n-1] y[n-2]
}

func newFilter() *filter {
	return &filter{
		coefficients: make([]float64, numCoefficients),
		cutoff:       maxCutoff,
	}
}

func (f *filter) process(buf []float64, target, q float64) {
	step := (maxCutoff - minCutoff) * float64(len(buf)) / (cutoffRampTime * sampleRate)
	switch {
	case f.cutoff < target:
		f.cutoff = math.Min(f.cutoff+step, target)
	case f.cutoff > target:
		f.cutoff = math.Max(f.cutoff-step, target)
	}
	f.calculateCoefficients(f.cutoff, q)

	c0 := f.coefficients[0]
	c1 := f.coefficients[1]
	c2 := f.coefficients[2]
	c3 := f.coefficients[3]
	c4 := f.coefficients[4]

	for n := range buf {
		in := buf[n]
		out := c0*in + f.y1
		buf[n] = out
		f.y1 = c1*in - c3*out + f.y2
		f.y2 = c2*in - c4*out
	}
}

func (f *filter) calculateCoefficients(freq, q float64) {
	omega := 2 * math.Pi * freq / sampleRate
	cos := math.Cos(omega)
	sin := math.Sin(omega)

	alpha := sin / (2. * q)

	var b0, b1, b2, a0, a1, a2 float64

	b0 = (1 - cos) / 2
	b1 = 1 - cos
	b2 = b0
	a0 = 1 + alpha
	a1 = -2 * cos
	a2 = 1 - alpha

	f.coefficients[0] = b0 / a0
	f.coefficients[1] = b1 / a0
	f.coefficients[2] = b2 / a0
	f.coefficients[3] = a1 / a0
	f.coefficients[4] = a2 / a0
}
