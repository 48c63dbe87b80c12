package regress

import (
	"fmt"
	"math"

	"github.com/san-kum/diffusim/internal/fit"
	"gonum.org/v1/gonum/stat/distuv"
)

// MSD is Einstein's relation msd = 2·dims·D·t.
func MSD(dims int) fit.Model {
	scale := 2 * float64(dims)
	return fit.Model{
		Name:   fmt.Sprintf("msd-%dd", dims),
		Params: []string{"D"},
		Func: func(t float64, p []float64) float64 {
			return scale * p[0] * t
		},
		Basis: func(t float64) []float64 {
			return []float64{scale * t}
		},
		Priors: func(t, y []float64) []distuv.Uniform {
			return []distuv.Uniform{{Min: 0, Max: diffusionCeiling(t, y, scale)}}
		},
	}
}

// MSDOffset adds a constant c to MSD, absorbing short-time ballistic or
// vibrational contributions.
func MSDOffset(dims int) fit.Model {
	scale := 2 * float64(dims)
	return fit.Model{
		Name:   fmt.Sprintf("msd-offset-%dd", dims),
		Params: []string{"D", "c"},
		Func: func(t float64, p []float64) float64 {
			return scale*p[0]*t + p[1]
		},
		Basis: func(t float64) []float64 {
			return []float64{scale * t, 1}
		},
		Priors: func(t, y []float64) []distuv.Uniform {
			span := 0.0
			for _, v := range y {
				span = math.Max(span, math.Abs(v))
			}
			if span == 0 {
				span = 1
			}
			return []distuv.Uniform{
				{Min: 0, Max: diffusionCeiling(t, y, scale)},
				{Min: -span, Max: span},
			}
		},
	}
}

// diffusionCeiling is three times the largest single-interval estimate
// y/(scale·t).
func diffusionCeiling(t, y []float64, scale float64) float64 {
	ceil := 0.0
	for i := range t {
		if t[i] > 0 {
			ceil = math.Max(ceil, y[i]/(scale*t[i]))
		}
	}
	if ceil <= 0 || math.IsInf(ceil, 0) || math.IsNaN(ceil) {
		return 1
	}
	return 3 * ceil
}
