// Package optim minimises bounded objective functions. A global strategy
// locates the basin, a local method polishes the result, and failed attempts
// are retried with a derived seed and a perturbed start.
package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/diffusion"
)

type Strategy string

const (
	StrategyDifferentialEvolution Strategy = "differential_evolution"
	StrategyCMAES                 Strategy = "cmaes"
	StrategyGrid                  Strategy = "grid"
	// StrategyLocal skips the global search and polishes Problem.Start.
	StrategyLocal Strategy = "local"
)

type Polish string

const (
	PolishNelderMead Polish = "nelder-mead"
	PolishBFGS       Polish = "bfgs"
	PolishNone       Polish = "none"
)

const (
	DefaultPopulation     = 15
	DefaultMaxGenerations = 1000
	DefaultTolerance      = 1e-2
	DefaultGridPoints     = 20
	DefaultMaxEvaluations = 20000
	DefaultMaxRetries     = 3
)

// Problem is a box-constrained minimisation. Func must be safe for
// concurrent use; non-finite values are treated as +Inf.
type Problem struct {
	Func  func(x []float64) float64
	Lower []float64
	Upper []float64
	// Start is an optional initial guess. It seeds the differential
	// evolution population and is required by StrategyLocal.
	Start []float64
}

func (p Problem) Dim() int { return len(p.Lower) }

func (p Problem) validate(strategy Strategy) error {
	if p.Func == nil {
		return fmt.Errorf("%w: nil objective", diffusion.ErrInvalidOption)
	}
	if len(p.Lower) == 0 || len(p.Lower) != len(p.Upper) {
		return fmt.Errorf("%w: %d lower and %d upper bounds", diffusion.ErrDimensionMismatch, len(p.Lower), len(p.Upper))
	}
	for i := range p.Lower {
		if !(p.Lower[i] < p.Upper[i]) || math.IsInf(p.Lower[i], 0) || math.IsInf(p.Upper[i], 0) {
			return fmt.Errorf("%w: bound %d is [%g, %g]", diffusion.ErrInvalidOption, i, p.Lower[i], p.Upper[i])
		}
	}
	if p.Start != nil && len(p.Start) != len(p.Lower) {
		return fmt.Errorf("%w: start has %d values, want %d", diffusion.ErrDimensionMismatch, len(p.Start), len(p.Lower))
	}
	if strategy == StrategyLocal && p.Start == nil {
		return fmt.Errorf("%w: local strategy needs a start point", diffusion.ErrInvalidOption)
	}
	return nil
}

type Options struct {
	Strategy Strategy
	Polish   Polish
	// Population is the differential evolution population per dimension
	// and the CMA-ES population when positive.
	Population     int
	MaxGenerations int
	Tolerance      float64
	GridPoints     int
	MaxEvaluations int
	MaxRetries     int
	Seed           int64
	Workers        int
}

func DefaultOptions() Options {
	return Options{
		Strategy:       StrategyDifferentialEvolution,
		Polish:         PolishNelderMead,
		Population:     DefaultPopulation,
		MaxGenerations: DefaultMaxGenerations,
		Tolerance:      DefaultTolerance,
		GridPoints:     DefaultGridPoints,
		MaxEvaluations: DefaultMaxEvaluations,
		MaxRetries:     DefaultMaxRetries,
	}
}

func (o *Options) fill() {
	d := DefaultOptions()
	if o.Strategy == "" {
		o.Strategy = d.Strategy
	}
	if o.Polish == "" {
		o.Polish = d.Polish
	}
	if o.Population <= 0 {
		o.Population = d.Population
	}
	if o.MaxGenerations <= 0 {
		o.MaxGenerations = d.MaxGenerations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.GridPoints <= 0 {
		o.GridPoints = d.GridPoints
	}
	if o.MaxEvaluations <= 0 {
		o.MaxEvaluations = d.MaxEvaluations
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
}

// Result is the best point found. Retries counts failed attempts before the
// successful one.
type Result struct {
	X           []float64
	F           float64
	Strategy    Strategy
	Evaluations int
	Retries     int
}

// attempt is the outcome of one global search plus polish.
type attempt struct {
	x         []float64
	f         float64
	evals     int
	converged bool
	err       error
}

type Minimizer struct {
	opts Options
	log  *slog.Logger
}

type Option func(*Minimizer)

func WithLogger(log *slog.Logger) Option {
	return func(m *Minimizer) {
		m.log = log
	}
}

func New(opts Options, options ...Option) *Minimizer {
	opts.fill()
	m := &Minimizer{opts: opts}
	for _, o := range options {
		o(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

func (m *Minimizer) Options() Options { return m.opts }

// Minimize runs up to MaxRetries+1 attempts. An attempt fails when the
// global search does not converge within its budget or ends on a non-finite
// value. When every attempt fails the best point seen is returned inside an
// OptimizationDivergenceError.
func (m *Minimizer) Minimize(ctx context.Context, p Problem) (*Result, error) {
	if err := p.validate(m.opts.Strategy); err != nil {
		return nil, err
	}
	switch m.opts.Strategy {
	case StrategyDifferentialEvolution, StrategyCMAES, StrategyGrid, StrategyLocal:
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", diffusion.ErrInvalidOption, m.opts.Strategy)
	}

	box := newBox(p)
	stream := diffusion.NewStream(m.opts.Seed)
	divergence := &diffusion.OptimizationDivergenceError{BestValue: math.Inf(1)}
	evals := 0

	for a := 0; a <= m.opts.MaxRetries; a++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := stream.Rand(uint64(a))
		start := box.start(p.Start, a, rng)

		res := m.run(ctx, box, start, stream.Derive(uint64(a)), rng)
		evals += res.evals
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if res.x != nil && res.f < divergence.BestValue {
			divergence.BestValue = res.f
			divergence.Best = box.toX(res.x)
		}
		if res.converged && !math.IsInf(res.f, 0) && !math.IsNaN(res.f) {
			m.log.Debug("optimizer converged", "strategy", m.opts.Strategy, "attempt", a, "value", res.f, "evaluations", res.evals)
			return &Result{
				X:           box.toX(res.x),
				F:           res.f,
				Strategy:    m.opts.Strategy,
				Evaluations: evals,
				Retries:     a,
			}, nil
		}

		divergence.Last = res.err
		if divergence.Last == nil {
			divergence.Last = fmt.Errorf("%s did not converge (value %g)", m.opts.Strategy, res.f)
		}
		m.log.Warn("optimizer attempt failed, retrying", "strategy", m.opts.Strategy, "attempt", a, "error", divergence.Last)
	}

	divergence.Attempts = m.opts.MaxRetries + 1
	return nil, divergence
}

func (m *Minimizer) run(ctx context.Context, box *box, start []float64, stream diffusion.Stream, rng *rand.Rand) attempt {
	var res attempt
	switch m.opts.Strategy {
	case StrategyDifferentialEvolution:
		res = differentialEvolution(ctx, box, start, m.opts, stream)
	case StrategyCMAES:
		res = cmaes(ctx, box, start, m.opts, stream.Source(0))
	case StrategyGrid:
		res = NewGridSearch(box.dim, m.opts.GridPoints).search(ctx, box)
	case StrategyLocal:
		res = attempt{x: start, f: box.eval(start), evals: 1, converged: true}
	}
	if !res.converged || math.IsInf(res.f, 0) || m.opts.Polish == PolishNone || ctx.Err() != nil {
		return res
	}

	polished := polish(ctx, box, res.x, m.opts)
	res.evals += polished.evals
	if polished.f < res.f {
		res.x, res.f = polished.x, polished.f
	}
	if polished.err != nil {
		m.log.Debug("polish ended early", "method", m.opts.Polish, "error", polished.err)
	}
	return res
}

// Minimize is a convenience wrapper around New(opts).Minimize(ctx, p).
func Minimize(ctx context.Context, p Problem, opts Options) (*Result, error) {
	return New(opts).Minimize(ctx, p)
}

// box maps the unit cube onto the problem bounds so that every strategy
// works on a well-scaled problem.
type box struct {
	f     func([]float64) float64
	lower []float64
	width []float64
	dim   int
}

func newBox(p Problem) *box {
	b := &box{
		f:     p.Func,
		lower: append([]float64(nil), p.Lower...),
		width: make([]float64, len(p.Lower)),
		dim:   len(p.Lower),
	}
	for i := range b.width {
		b.width[i] = p.Upper[i] - p.Lower[i]
	}
	return b
}

func (b *box) toX(u []float64) []float64 {
	x := make([]float64, len(u))
	for i, v := range u {
		x[i] = b.lower[i] + v*b.width[i]
	}
	return x
}

func (b *box) toUnit(x []float64) []float64 {
	u := make([]float64, len(x))
	for i, v := range x {
		u[i] = clamp((v-b.lower[i])/b.width[i], 0, 1)
	}
	return u
}

// eval returns the objective at unit point u, +Inf outside the cube.
func (b *box) eval(u []float64) float64 {
	for _, v := range u {
		if v < 0 || v > 1 {
			return math.Inf(1)
		}
	}
	f := b.f(b.toX(u))
	if math.IsNaN(f) {
		return math.Inf(1)
	}
	return f
}

// start returns the unit-cube starting point of attempt a. Retries jitter
// the caller's start, or pick a random point when none was given.
func (b *box) start(x0 []float64, a int, rng *rand.Rand) []float64 {
	if x0 == nil {
		if a == 0 {
			u := make([]float64, b.dim)
			for i := range u {
				u[i] = 0.5
			}
			return u
		}
		u := make([]float64, b.dim)
		for i := range u {
			u[i] = rng.Float64()
		}
		return u
	}
	u := b.toUnit(x0)
	if a > 0 {
		for i := range u {
			u[i] = clamp(u[i]+0.05*float64(a)*rng.NormFloat64(), 0, 1)
		}
	}
	return u
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
