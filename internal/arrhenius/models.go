package arrhenius

import (
	"math"

	"github.com/san-kum/diffusim/internal/fit"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Boltzmann is the Boltzmann constant in eV/K.
const Boltzmann = 8.617333262e-5

// tiny is the lower edge of the all-positive priors.
const tiny = math.SmallestNonzeroFloat64

// Model is a temperature dependence of the diffusion coefficient.
type Model struct {
	fit.Model
	// LogSpace fits ln D instead of D; observations are log-transformed
	// sample by sample.
	LogSpace bool
}

// Standard is D = A·exp(-Ea/(k_B·T)).
func Standard() Model {
	return Model{Model: fit.Model{
		Name:   "arrhenius",
		Params: []string{"Ea", "A"},
		Units:  []string{"eV", ""},
		Func: func(t float64, p []float64) float64 {
			return p[1] * math.Exp(-p[0]/(Boltzmann*t))
		},
		Priors: func(t, d []float64) []distuv.Uniform {
			ea, lnA := logLinearEstimate(t, d)
			return []distuv.Uniform{
				positive(ea, 3),
				positive(math.Exp(lnA), 3),
			}
		},
	}}
}

// Super is the Vogel–Tammann–Fulcher form D = A·exp(-Ea/(k_B·(T-T0))).
func Super() Model {
	return Model{Model: fit.Model{
		Name:   "super-arrhenius",
		Params: []string{"Ea", "A", "T0"},
		Units:  []string{"eV", "", "K"},
		Func: func(t float64, p []float64) float64 {
			if t <= p[2] {
				return math.NaN()
			}
			return p[1] * math.Exp(-p[0]/(Boltzmann*(t-p[2])))
		},
		Priors: func(t, d []float64) []distuv.Uniform {
			ea, lnA := logLinearEstimate(t, d)
			minT := floatsMin(t)
			return []distuv.Uniform{
				positive(ea, 5),
				positive(math.Exp(lnA), 5),
				{Min: tiny, Max: math.Max(minT-0.1, 2*tiny)},
			}
		},
	}}
}

// LogLinear is ln D = ln A - Ea/(k_B·T), linear in (Ea, ln A).
func LogLinear() Model {
	return Model{
		LogSpace: true,
		Model: fit.Model{
			Name:   "arrhenius-log",
			Params: []string{"Ea", "lnA"},
			Units:  []string{"eV", ""},
			Func: func(t float64, p []float64) float64 {
				return p[1] - p[0]/(Boltzmann*t)
			},
			Basis: func(t float64) []float64 {
				return []float64{-1 / (Boltzmann * t), 1}
			},
			Priors: func(t, lnD []float64) []distuv.Uniform {
				d := make([]float64, len(lnD))
				for i, v := range lnD {
					d[i] = math.Exp(v)
				}
				ea, lnA := logLinearEstimate(t, d)
				w := math.Abs(lnA) + 10
				return []distuv.Uniform{
					positive(ea, 3),
					{Min: lnA - w, Max: lnA + w},
				}
			},
		},
	}
}

// withUnaccounted appends the ln f parameter that inflates every variance
// by f²·D².
func (m Model) withUnaccounted() Model {
	base := m.Model
	out := m
	out.Model.Name = base.Name + "+f"
	out.Model.Params = append(append([]string(nil), base.Params...), "ln f")
	if base.Units != nil {
		out.Model.Units = append(append([]string(nil), base.Units...), "")
	}
	out.Model.Basis = nil
	out.Model.Func = func(t float64, p []float64) float64 {
		return base.Func(t, p[:len(p)-1])
	}
	out.Model.Priors = func(t, d []float64) []distuv.Uniform {
		return append(base.Priors(t, d), distuv.Uniform{Min: -10, Max: 1})
	}
	return out
}

// logLinearEstimate fits ln D against -1/(k_B·T) by least squares and
// returns (Ea, ln A). Non-positive D values are skipped.
func logLinearEstimate(t, d []float64) (ea, lnA float64) {
	xs := make([]float64, 0, len(t))
	ys := make([]float64, 0, len(t))
	for i := range t {
		if d[i] > 0 && t[i] > 0 {
			xs = append(xs, -1/(Boltzmann*t[i]))
			ys = append(ys, math.Log(d[i]))
		}
	}
	switch len(xs) {
	case 0:
		return 1, 0
	case 1:
		return 1, ys[0] - xs[0]
	}
	lnA, ea = stat.LinearRegression(xs, ys, nil, false)
	return ea, lnA
}

// positive is U(tiny, v + (scale-1)·|v|), the all-positive prior around a
// median estimate v. A zero estimate falls back to 1.
func positive(v, scale float64) distuv.Uniform {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 1
	}
	return distuv.Uniform{Min: tiny, Max: v + (scale-1)*math.Abs(v)}
}

func floatsMin(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}
