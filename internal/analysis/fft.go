package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Autocorrelation returns the autocorrelation of x at lags 0..len(x)-1,
// normalised so that lag 0 is 1. A constant series returns all zeros after
// lag 0.
func Autocorrelation(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	size := 1
	for size < 2*n {
		size <<= 1
	}
	mean := stat.Mean(x, nil)
	padded := make([]float64, size)
	for i, v := range x {
		padded[i] = v - mean
	}

	fft := fourier.NewFFT(size)
	coeff := fft.Coefficients(nil, padded)
	for i, c := range coeff {
		coeff[i] = c * cmplx.Conj(c)
	}
	seq := fft.Sequence(nil, coeff)

	acf := make([]float64, n)
	if seq[0] == 0 {
		acf[0] = 1
		return acf
	}
	for i := range acf {
		acf[i] = seq[i] / seq[0]
	}
	return acf
}
