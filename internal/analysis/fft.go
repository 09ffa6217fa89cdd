package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum is a one-sided power spectrum.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// JitterSpectrum removes the mean of a series sampled every dt and returns
// its power spectrum up to the Nyquist frequency.
func JitterSpectrum(series []float64, dt float64) Spectrum {
	n := len(series)
	if n < 2 || dt <= 0 {
		return Spectrum{}
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	half := n/2 + 1
	spec := Spectrum{Freqs: make([]float64, half), Power: make([]float64, half)}
	for k := 0; k < half; k++ {
		spec.Freqs[k] = float64(k) / (float64(n) * dt)
		a := cmplx.Abs(coeffs[k]) / float64(n)
		spec.Power[k] = a * a
	}
	return spec
}

// DominantFrequency returns the non-DC frequency with the most power.
func (s Spectrum) DominantFrequency() (freq, power float64) {
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > power {
			freq, power = s.Freqs[k], s.Power[k]
		}
	}
	return freq, power
}

// Total is the summed power over all non-DC bins.
func (s Spectrum) Total() float64 {
	total := 0.0
	for k := 1; k < len(s.Power); k++ {
		total += s.Power[k]
	}
	return total
}

// SettleTime returns the time of the first sample after which every value
// stays within tol of the final value, or -1 for an empty series.
func SettleTime(series []float64, dt, tol float64) float64 {
	n := len(series)
	if n == 0 {
		return -1
	}
	final := series[n-1]
	i := n - 1
	for i > 0 && math.Abs(series[i-1]-final) <= tol {
		i--
	}
	return float64(i) * dt
}

type Summary struct {
	Min, Max, Mean, Final float64
}

func Summarize(series []float64) Summary {
	if len(series) == 0 {
		return Summary{}
	}
	s := Summary{Min: math.Inf(1), Max: math.Inf(-1), Final: series[len(series)-1]}
	for _, v := range series {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Mean += v
	}
	s.Mean /= float64(len(series))
	return s
}
