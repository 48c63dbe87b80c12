// Package distribution holds empirical parameter distributions.
//
// A [Distribution] is a value type: its samples are copied on construction
// and every summary is computed once, so it can be read from any number of
// goroutines without synchronisation.
package distribution

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/san-kum/diffusim/internal/diffusion"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampleable is anything that exposes an empirical sample set. Second-level
// fits accept any Sampleable, not just Distribution.
type Sampleable interface {
	Samples() []float64
	Size() int
}

// Summary is the optional point summary reported alongside the samples.
type Summary struct {
	Mean   float64
	Std    float64
	Median float64
	Lower  float64 // 2.5th percentile
	Upper  float64 // 97.5th percentile
}

type Distribution struct {
	name    string
	unit    string
	samples []float64
	sorted  []float64
	summary Summary
	ml      float64
	hasML   bool
}

type Option func(*Distribution)

func WithUnit(unit string) Option {
	return func(d *Distribution) {
		d.unit = unit
	}
}

// WithMaxLikelihood records the maximum-likelihood value of the parameter.
func WithMaxLikelihood(v float64) Option {
	return func(d *Distribution) {
		d.ml = v
		d.hasML = true
	}
}

// New copies samples and computes the summary. Samples must be non-empty
// and finite.
func New(name string, samples []float64, opts ...Option) (Distribution, error) {
	if len(samples) == 0 {
		return Distribution{}, &diffusion.InsufficientDataError{Stage: "distribution " + name, Need: 1}
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Distribution{}, fmt.Errorf("%w: sample %d of %s is not finite", diffusion.ErrInvalidOption, i, name)
		}
	}

	d := Distribution{
		name:    name,
		samples: append([]float64(nil), samples...),
		sorted:  append([]float64(nil), samples...),
	}
	for _, o := range opts {
		o(&d)
	}
	sort.Float64s(d.sorted)

	d.summary.Mean = stat.Mean(d.samples, nil)
	if len(d.samples) > 1 {
		d.summary.Std = stat.StdDev(d.samples, nil)
	}
	d.summary.Median = d.quantile(0.5)
	d.summary.Lower = d.quantile(0.025)
	d.summary.Upper = d.quantile(0.975)
	return d, nil
}

// Of builds a Distribution from any Sampleable.
func Of(name string, s Sampleable) (Distribution, error) {
	if d, ok := s.(Distribution); ok && d.name == name {
		return d, nil
	}
	return New(name, s.Samples())
}

// FromNormal draws n samples from N(mean, std) using src.
func FromNormal(name string, mean, std float64, n int, src rand.Source) (Distribution, error) {
	if std < 0 {
		return Distribution{}, fmt.Errorf("%w: negative standard deviation %f", diffusion.ErrInvalidOption, std)
	}
	norm := distuv.Normal{Mu: mean, Sigma: std, Src: src}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = norm.Rand()
	}
	return New(name, samples)
}

func (d Distribution) quantile(p float64) float64 {
	return stat.Quantile(p, stat.Empirical, d.sorted, nil)
}

func (d Distribution) Name() string { return d.name }
func (d Distribution) Unit() string { return d.unit }
func (d Distribution) Size() int    { return len(d.samples) }

// Samples returns a copy of the samples in draw order.
func (d Distribution) Samples() []float64 {
	return append([]float64(nil), d.samples...)
}

// At returns sample i without copying the sample set.
func (d Distribution) At(i int) float64 { return d.samples[i] }

func (d Distribution) Summary() Summary { return d.summary }
func (d Distribution) Mean() float64    { return d.summary.Mean }
func (d Distribution) Std() float64     { return d.summary.Std }
func (d Distribution) Median() float64  { return d.summary.Median }

// MaxLikelihood returns the maximum-likelihood value, if one was recorded.
func (d Distribution) MaxLikelihood() (float64, bool) {
	return d.ml, d.hasML
}

// Interval returns the equal-tailed credible interval holding mass ci.
func (d Distribution) Interval(ci float64) (lo, hi float64) {
	if ci <= 0 || ci > 1 || d.Size() == 0 {
		return math.NaN(), math.NaN()
	}
	tail := (1 - ci) / 2
	return d.quantile(tail), d.quantile(1 - tail)
}

// CredibleInterval is the 95% equal-tailed interval.
func (d Distribution) CredibleInterval() (lo, hi float64) {
	return d.summary.Lower, d.summary.Upper
}

// Contains reports whether x lies inside the interval holding mass ci.
func (d Distribution) Contains(x, ci float64) bool {
	lo, hi := d.Interval(ci)
	return x >= lo && x <= hi
}

func (d Distribution) String() string {
	var sb strings.Builder
	sb.WriteString(d.name)
	sb.WriteString(fmt.Sprintf(" = %.4g ± %.2g", d.summary.Mean, d.summary.Std))
	if d.unit != "" {
		sb.WriteString(" " + d.unit)
	}
	sb.WriteString(fmt.Sprintf(" [%.4g, %.4g]", d.summary.Lower, d.summary.Upper))
	return sb.String()
}
