// Package experiment runs the analysis pipeline for one condition and
// across a set of conditions.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/diffusim/internal/covariance"
	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/fit"
	"github.com/san-kum/diffusim/internal/regress"
	"github.com/san-kum/diffusim/internal/sampler"
	"github.com/san-kum/diffusim/internal/synth"
)

// Condition is one system state, typically one temperature. Either
// Trajectory or Simulate must be set.
type Condition struct {
	Name        string
	Temperature float64
	Trajectory  *diffusion.Trajectory
	Simulate    *synth.Brownian
}

// Config carries one seed per stage: Covariance.Seed for the bootstrap,
// Regression.Seed for the optimizer and sampler, and SimulationSeed for
// conditions that are simulated.
type Config struct {
	Sampler        sampler.Options
	Covariance     covariance.Options
	Regression     regress.Options
	Model          fit.Model
	SimulationSeed int64
}

// Outcome holds every stage output of one condition.
type Outcome struct {
	Condition Condition
	Report    *sampler.Report
	Bundle    *diffusion.CovarianceBundle
	Result    *fit.Result
}

// D returns the point estimate of the diffusion coefficient.
func (o *Outcome) D() (float64, bool) {
	return o.Result.Param("D")
}

type Experiment struct {
	cfg Config
	log *slog.Logger
}

type Option func(*Experiment)

func WithLogger(log *slog.Logger) Option {
	return func(e *Experiment) {
		e.log = log
	}
}

func New(cfg Config, options ...Option) *Experiment {
	e := &Experiment{cfg: cfg}
	for _, o := range options {
		o(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Run samples displacements, estimates their covariance and regresses the
// MSD model for one condition.
func (e *Experiment) Run(ctx context.Context, c Condition) (*Outcome, error) {
	log := e.log.With("condition", c.Name)

	traj := c.Trajectory
	if traj == nil {
		if c.Simulate == nil {
			return nil, fmt.Errorf("%w: condition %q has no trajectory", diffusion.ErrInvalidOption, c.Name)
		}
		var err error
		traj, err = c.Simulate.Generate(e.cfg.SimulationSeed, e.cfg.Sampler.Workers)
		if err != nil {
			return nil, fmt.Errorf("%s: simulate: %w", c.Name, err)
		}
	}

	samples, report, err := sampler.New(e.cfg.Sampler, sampler.WithLogger(log)).Sample(traj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle, err := covariance.New(e.cfg.Covariance, covariance.WithLogger(log)).Estimate(samples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := regress.New(e.cfg.Regression, regress.WithLogger(log)).Fit(ctx, bundle, e.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}

	log.Info("condition complete", "intervals", bundle.Len(), "dropped", len(report.Dropped))
	return &Outcome{Condition: c, Report: report, Bundle: bundle, Result: result}, nil
}
