// Package analysis provides post-processing for sampled posteriors.
//
//   - [Autocorrelation]: normalised autocorrelation of a chain via FFT
//   - [IntegratedTime]: integrated autocorrelation time of an ensemble
//   - [CredibleBand]: pointwise posterior-predictive band of a model
//
// # Convergence
//
// A chain is usually considered long enough once it spans fifty or more
// autocorrelation times:
//
//	tau := analysis.IntegratedTime(chains, analysis.DefaultWindow)
//	if float64(len(chains[0])) < 50*tau {
//	    // run longer
//	}
package analysis
