package waveform

import (
	"math/rand"

	"github.com/nasa-jpl/pmoddac/mathx"
)

// NoisyDC returns n samples of mean plus uniform noise in [-amp, amp)
func NoisyDC(rng *rand.Rand, n int, mean, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + amp*(2*rng.Float64()-1)
	}
	return out
}

// interp linearly interpolates vin, sampled at t = 0, 1, 2, ..., at t.
// t outside the samples holds the end value.
func interp(vin []float64, t float64) float64 {
	if t <= 0 {
		return vin[0]
	}
	last := len(vin) - 1
	if t >= float64(last) {
		return vin[last]
	}
	i := int(t)
	return mathx.Lerp(vin[i], vin[i+1], t-float64(i))
}

// BypassCapacitor is the output of an RC low pass fed vin, one sample per
// unit of time, with time constant rc in the same units.  The output starts at
// vin[0] and is sampled at the same instants as vin.  The ODE
//
//  dv/dt = (vin(t) - v) / rc
//
// is integrated with classical Runge-Kutta, substeps per sample.
func BypassCapacitor(vin []float64, rc float64, substeps int) []float64 {
	if len(vin) == 0 {
		return nil
	}
	if substeps < 1 {
		substeps = 1
	}
	f := func(t, v float64) float64 {
		return (interp(vin, t) - v) / rc
	}
	h := 1 / float64(substeps)
	out := make([]float64, len(vin))
	v := vin[0]
	out[0] = v
	for i := 1; i < len(vin); i++ {
		for s := 0; s < substeps; s++ {
			t := float64(i-1) + float64(s)*h
			k1 := f(t, v)
			k2 := f(t+h/2, v+h/2*k1)
			k3 := f(t+h/2, v+h/2*k2)
			k4 := f(t+h, v+h*k3)
			v += h / 6 * (k1 + 2*k2 + 2*k3 + k4)
		}
		out[i] = v
	}
	return out
}
