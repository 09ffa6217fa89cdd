// Package analysis inspects per-step series recorded from a contact run.
//
//   - [JitterSpectrum]: power spectrum of a series with its mean removed
//   - [DominantFrequency]: strongest non-DC frequency in a spectrum
//   - [SettleTime]: first time after which a series stays near its final value
//   - [Summarize]: min, max, mean and final value of a series
//
// A resting stack that buzzes shows up as a sharp peak in the jitter
// spectrum of its kinetic energy:
//
//	spec := analysis.JitterSpectrum(energy, dt)
//	if f, p := spec.DominantFrequency(); p > threshold {
//	    fmt.Printf("jitter at %.1f Hz\n", f)
//	}
package analysis
