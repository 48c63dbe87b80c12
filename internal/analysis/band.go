package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Band is a pointwise credible band: for each X the median and the
// lower/upper quantiles of the model evaluated over posterior samples.
type Band struct {
	X      []float64
	Lower  []float64
	Median []float64
	Upper  []float64
}

// CredibleBand evaluates f at every x for every parameter sample and
// returns the central ci band. samples is indexed [sample][parameter].
func CredibleBand(f func(x float64, params []float64) float64, xs []float64, samples [][]float64, ci float64) (*Band, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("analysis: no samples")
	}
	if ci <= 0 || ci >= 1 {
		return nil, fmt.Errorf("analysis: credible interval %g outside (0, 1)", ci)
	}

	b := &Band{
		X:      append([]float64(nil), xs...),
		Lower:  make([]float64, len(xs)),
		Median: make([]float64, len(xs)),
		Upper:  make([]float64, len(xs)),
	}
	lo, hi := (1-ci)/2, (1+ci)/2
	values := make([]float64, len(samples))
	for i, x := range xs {
		for j, p := range samples {
			values[j] = f(x, p)
		}
		sort.Float64s(values)
		b.Lower[i] = stat.Quantile(lo, stat.Empirical, values, nil)
		b.Median[i] = stat.Quantile(0.5, stat.Empirical, values, nil)
		b.Upper[i] = stat.Quantile(hi, stat.Empirical, values, nil)
	}
	return b, nil
}
