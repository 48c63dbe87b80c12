package analysis

import "math"

// DefaultWindow is the window constant of the automatic windowing rule.
const DefaultWindow = 5.0

// IntegratedTime estimates the integrated autocorrelation time of an
// ensemble. chains holds one series per walker, all of equal length; the
// walker autocorrelations are averaged before windowing. The window is the
// smallest lag m with m >= c*tau(m).
func IntegratedTime(chains [][]float64, c float64) float64 {
	if len(chains) == 0 || len(chains[0]) == 0 {
		return math.NaN()
	}
	n := len(chains[0])
	acf := make([]float64, n)
	for _, ch := range chains {
		if len(ch) != n {
			return math.NaN()
		}
		for i, v := range Autocorrelation(ch) {
			acf[i] += v
		}
	}
	for i := range acf {
		acf[i] /= float64(len(chains))
	}

	tau := 1.0
	for m := 1; m < n; m++ {
		tau += 2 * acf[m]
		if float64(m) >= c*tau {
			return tau
		}
	}
	return tau
}
