package fit

import (
	"math"

	"github.com/san-kum/diffusim/internal/analysis"
	"github.com/san-kum/diffusim/internal/distribution"
	"github.com/san-kum/diffusim/internal/optim"
)

// Diagnostics records how a fit was obtained. Retries is never hidden: a
// non-zero value means the optimiser failed and was restarted.
type Diagnostics struct {
	Strategy           optim.Strategy
	Retries            int
	Evaluations        int
	LogLikelihood      float64
	Observations       int
	AIC                float64
	BIC                float64
	AcceptanceFraction float64
	AutocorrTime       []float64
	Samples            int
	Metrics            map[string]float64
}

// Result is the outcome of a fit. It is never modified after construction;
// accessors return copies.
type Result struct {
	model  Model
	params []float64
	dists  []distribution.Distribution
	diag   Diagnostics
}

// NewResult fills the information criteria from the log-likelihood and the
// observation count.
func NewResult(model Model, params []float64, dists []distribution.Distribution, diag Diagnostics) *Result {
	k := float64(len(params))
	diag.AIC = 2*k - 2*diag.LogLikelihood
	diag.BIC = math.NaN()
	if diag.Observations > 0 {
		diag.BIC = k*math.Log(float64(diag.Observations)) - 2*diag.LogLikelihood
	}
	diag.AutocorrTime = append([]float64(nil), diag.AutocorrTime...)
	if diag.Metrics != nil {
		m := make(map[string]float64, len(diag.Metrics))
		for k, v := range diag.Metrics {
			m[k] = v
		}
		diag.Metrics = m
	}
	return &Result{
		model:  model,
		params: append([]float64(nil), params...),
		dists:  append([]distribution.Distribution(nil), dists...),
		diag:   diag,
	}
}

func (r *Result) Model() Model { return r.model }

// Params returns the point estimate.
func (r *Result) Params() []float64 {
	return append([]float64(nil), r.params...)
}

func (r *Result) Param(name string) (float64, bool) {
	for i, n := range r.model.Params {
		if n == name {
			return r.params[i], true
		}
	}
	return 0, false
}

func (r *Result) Sampled() bool { return len(r.dists) > 0 }

func (r *Result) Distributions() []distribution.Distribution {
	return append([]distribution.Distribution(nil), r.dists...)
}

func (r *Result) Distribution(name string) (distribution.Distribution, bool) {
	for _, d := range r.dists {
		if d.Name() == name {
			return d, true
		}
	}
	return distribution.Distribution{}, false
}

func (r *Result) Diagnostics() Diagnostics {
	d := r.diag
	d.AutocorrTime = append([]float64(nil), d.AutocorrTime...)
	if d.Metrics != nil {
		m := make(map[string]float64, len(d.Metrics))
		for k, v := range d.Metrics {
			m[k] = v
		}
		d.Metrics = m
	}
	return d
}

// Evaluate returns the model at xs using the point estimate.
func (r *Result) Evaluate(xs []float64) []float64 {
	return r.model.Eval(xs, r.params, nil)
}

// EvaluateAt returns the model at xs for arbitrary parameters.
func (r *Result) EvaluateAt(xs, params []float64) []float64 {
	return r.model.Eval(xs, params, nil)
}

// Samples returns the joint posterior samples indexed [sample][parameter].
func (r *Result) Samples() [][]float64 {
	if len(r.dists) == 0 {
		return nil
	}
	n := r.dists[0].Size()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, len(r.dists))
		for j, d := range r.dists {
			out[i][j] = d.At(i)
		}
	}
	return out
}

// Band is the pointwise posterior-predictive band at xs.
func (r *Result) Band(xs []float64, ci float64) (*analysis.Band, error) {
	return analysis.CredibleBand(r.model.Func, xs, r.Samples(), ci)
}
