// Package covariance estimates the joint covariance of interval mean squared
// displacements with a lock-step bootstrap.
//
// Observations at different intervals share trajectory segments, so their
// means are correlated. Each resample draws one set of random numbers
// (particle indices or block positions) and applies it to every interval,
// which carries that correlation into the resampled mean vectors. The
// covariance is then the empirical covariance of those vectors.
package covariance

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/diffusim/internal/diffusion"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

type Scheme string

const (
	// SchemeAuto resamples particles when enough are selected and blocks
	// of time origins otherwise.
	SchemeAuto Scheme = "auto"
	// SchemeParticles resamples whole particles with replacement.
	SchemeParticles Scheme = "particles"
	// SchemeBlocks resamples contiguous blocks of time origins within each
	// particle (moving-block bootstrap).
	SchemeBlocks Scheme = "blocks"
)

const (
	DefaultResamples = 1000
	// AutoParticleThreshold is the smallest particle count for which
	// SchemeAuto resamples particles.
	AutoParticleThreshold = 10
)

type Options struct {
	Resamples int
	// BlockSize is the block length in frames, shared by every interval.
	// Zero uses the longest interval, the autocorrelation length of the
	// slowest displacement series.
	BlockSize int
	Scheme    Scheme
	Seed      int64
	Workers   int
}

func DefaultOptions() Options {
	return Options{
		Resamples: DefaultResamples,
		Scheme:    SchemeAuto,
	}
}

type Estimator struct {
	opts Options
	log  *slog.Logger
}

type Option func(*Estimator)

func WithLogger(log *slog.Logger) Option {
	return func(e *Estimator) {
		e.log = log
	}
}

func New(opts Options, options ...Option) *Estimator {
	if opts.Scheme == "" {
		opts.Scheme = SchemeAuto
	}
	e := &Estimator{opts: opts}
	for _, o := range options {
		o(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

func (e *Estimator) validate(samples []diffusion.IntervalSample) error {
	if e.opts.Resamples < 2 {
		return fmt.Errorf("%w: need at least 2 resamples, got %d", diffusion.ErrInvalidOption, e.opts.Resamples)
	}
	if e.opts.BlockSize < 0 {
		return fmt.Errorf("%w: negative block size %d", diffusion.ErrInvalidOption, e.opts.BlockSize)
	}
	switch e.opts.Scheme {
	case SchemeAuto, SchemeParticles, SchemeBlocks:
	default:
		return fmt.Errorf("%w: unknown scheme %q", diffusion.ErrInvalidOption, e.opts.Scheme)
	}
	if len(samples) == 0 {
		return &diffusion.InsufficientDataError{Stage: "covariance", Need: 1}
	}
	particles := samples[0].Particles
	for i, s := range samples {
		if s.Particles != particles {
			return fmt.Errorf("%w: interval %d has %d particles, want %d", diffusion.ErrDimensionMismatch, i, s.Particles, particles)
		}
		if s.Origins < 1 || len(s.Displacements) != s.Observations() {
			return &diffusion.InsufficientDataError{Stage: "covariance", Interval: s.Time, Have: len(s.Displacements), Need: 1}
		}
	}
	return nil
}

// Estimate resamples the interval means and returns their covariance.
func (e *Estimator) Estimate(samples []diffusion.IntervalSample) (*diffusion.CovarianceBundle, error) {
	if err := e.validate(samples); err != nil {
		return nil, err
	}

	scheme := e.opts.Scheme
	if scheme == SchemeAuto {
		scheme = SchemeBlocks
		if samples[0].Particles >= AutoParticleThreshold {
			scheme = SchemeParticles
		}
	}

	var r resampler
	if scheme == SchemeParticles {
		r = newParticleResampler(samples)
	} else {
		r = newBlockResampler(samples, e.opts.BlockSize)
	}

	k := len(samples)
	n := e.opts.Resamples
	means := mat.NewDense(n, k, nil)
	stream := diffusion.NewStream(e.opts.Seed)

	diffusion.ParallelFor(n, 16, e.opts.Workers, func(start, end int) {
		buf := r.scratch()
		for i := start; i < end; i++ {
			r.resample(stream.Rand(uint64(i)), means.RawRowView(i), buf)
		}
	})

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, means, nil)

	bundle := &diffusion.CovarianceBundle{
		Times:     make([]float64, k),
		Steps:     make([]int, k),
		Mean:      make([]float64, k),
		StdErr:    make([]float64, k),
		Cov:       symmetrize(&cov),
		Dims:      samples[0].Dims,
		Resamples: n,
		Seed:      e.opts.Seed,
		Scheme:    string(scheme),
	}
	for i, s := range samples {
		bundle.Times[i] = s.Time
		bundle.Steps[i] = s.Steps
		bundle.Mean[i] = s.Mean()
		bundle.StdErr[i] = math.Sqrt(bundle.Cov.At(i, i))
	}

	e.log.Debug("estimated covariance", "intervals", k, "resamples", n, "scheme", scheme, "seed", e.opts.Seed)
	return bundle, nil
}

// Estimate is a convenience wrapper around New(opts).Estimate(samples).
func Estimate(samples []diffusion.IntervalSample, opts Options) (*diffusion.CovarianceBundle, error) {
	return New(opts).Estimate(samples)
}

// symmetrize returns (A + Aᵀ)/2 with the diagonal clamped at zero, removing
// rounding asymmetry from the covariance product.
func symmetrize(a *mat.SymDense) *mat.SymDense {
	n := a.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := 0.5 * (a.At(i, j) + a.At(j, i))
			if i == j && v < 0 {
				v = 0
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// IsPSD reports whether every eigenvalue of a is at least -tol times the
// largest eigenvalue magnitude.
func IsPSD(a mat.Symmetric, tol float64) bool {
	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return false
	}
	vals := eig.Values(nil)
	scale := 0.0
	for _, v := range vals {
		scale = math.Max(scale, math.Abs(v))
	}
	for _, v := range vals {
		if v < -tol*math.Max(scale, 1e-300) {
			return false
		}
	}
	return true
}
