// Package sampler turns a trajectory into per-interval squared displacements.
package sampler

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/diffusim/internal/diffusion"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultMinObservations = 5
	DefaultIntervalSkip    = 1
)

// Options selects the particles and intervals to sample. Intervals are
// measured in time units; a zero TimeStep or StepSkip falls back to the
// trajectory's own values.
type Options struct {
	Specie          string
	TimeStep        float64
	StepSkip        int
	MinInterval     float64
	MaxInterval     float64
	IntervalSkip    int
	MinObservations int
	Workers         int
}

func DefaultOptions() Options {
	return Options{
		IntervalSkip:    DefaultIntervalSkip,
		MinObservations: DefaultMinObservations,
	}
}

// Report lists intervals that were dropped for lack of observations.
type Report struct {
	Particles int
	Candidate int
	Dropped   []*diffusion.InsufficientDataError
}

type DisplacementSampler struct {
	opts Options
	log  *slog.Logger
}

type Option func(*DisplacementSampler)

func WithLogger(log *slog.Logger) Option {
	return func(s *DisplacementSampler) {
		s.log = log
	}
}

func New(opts Options, options ...Option) *DisplacementSampler {
	if opts.IntervalSkip < 1 {
		opts.IntervalSkip = DefaultIntervalSkip
	}
	if opts.MinObservations < 1 {
		opts.MinObservations = DefaultMinObservations
	}
	s := &DisplacementSampler{opts: opts}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Sample computes squared displacements for every valid interval. Intervals
// with fewer than MinObservations particle/origin pairs are dropped and
// listed in the report; the call fails only when every interval is dropped.
func (s *DisplacementSampler) Sample(traj *diffusion.Trajectory) ([]diffusion.IntervalSample, *Report, error) {
	if traj == nil {
		return nil, nil, fmt.Errorf("%w: nil trajectory", diffusion.ErrInvalidOption)
	}

	particles := traj.Select(s.opts.Specie)
	if len(particles) == 0 {
		return nil, nil, &diffusion.InsufficientDataError{Stage: "sampler", Need: 1}
	}

	frameTime, err := s.frameTime(traj)
	if err != nil {
		return nil, nil, err
	}

	steps := s.intervals(traj.Frames(), frameTime)
	report := &Report{Particles: len(particles), Candidate: len(steps)}

	kept := make([]int, 0, len(steps))
	for _, n := range steps {
		obs := len(particles) * (traj.Frames() - n)
		if obs < s.opts.MinObservations {
			dropped := &diffusion.InsufficientDataError{
				Stage:    "sampler",
				Interval: float64(n) * frameTime,
				Have:     obs,
				Need:     s.opts.MinObservations,
			}
			report.Dropped = append(report.Dropped, dropped)
			s.log.Warn("dropping interval", "interval", dropped.Interval, "observations", obs, "min", s.opts.MinObservations)
			continue
		}
		kept = append(kept, n)
	}

	if len(kept) == 0 {
		have := 0
		if len(steps) > 0 {
			have = len(particles) * (traj.Frames() - steps[0])
		}
		return nil, report, &diffusion.InsufficientDataError{Stage: "sampler", Have: have, Need: s.opts.MinObservations}
	}

	out := make([]diffusion.IntervalSample, len(kept))
	diffusion.ParallelFor(len(kept), 1, s.opts.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = sampleInterval(traj, particles, kept[i], frameTime)
		}
	})

	s.log.Debug("sampled displacements", "intervals", len(out), "dropped", len(report.Dropped), "particles", len(particles))
	return out, report, nil
}

func (s *DisplacementSampler) frameTime(traj *diffusion.Trajectory) (float64, error) {
	dt := s.opts.TimeStep
	if dt == 0 {
		dt = traj.TimeStep()
	}
	skip := s.opts.StepSkip
	if skip == 0 {
		skip = traj.StepSkip()
	}
	if dt < 0 || skip < 0 {
		return 0, fmt.Errorf("%w: time step %f, step skip %d", diffusion.ErrInvalidOption, dt, skip)
	}
	return dt * float64(skip), nil
}

// intervals returns the candidate interval lengths in frames.
func (s *DisplacementSampler) intervals(frames int, frameTime float64) []int {
	const eps = 1e-9

	first := int(math.Ceil(s.opts.MinInterval/frameTime - eps))
	if first < 1 {
		first = 1
	}
	last := frames - 1
	if s.opts.MaxInterval > 0 {
		if m := int(math.Floor(s.opts.MaxInterval/frameTime + eps)); m < last {
			last = m
		}
	}

	steps := make([]int, 0)
	for n := first; n <= last; n += s.opts.IntervalSkip {
		steps = append(steps, n)
	}
	return steps
}

func sampleInterval(traj *diffusion.Trajectory, particles []int, n int, frameTime float64) diffusion.IntervalSample {
	origins := traj.Frames() - n
	disp := make([]float64, len(particles)*origins)
	for i, p := range particles {
		row := disp[i*origins : (i+1)*origins]
		for t := range row {
			row[t] = traj.SquaredDisplacement(p, t, t+n)
		}
	}
	return diffusion.IntervalSample{
		Steps:         n,
		Time:          float64(n) * frameTime,
		Dims:          traj.Dims(),
		Particles:     len(particles),
		Origins:       origins,
		Displacements: disp,
	}
}

// Sample is a convenience wrapper around New(opts).Sample(traj).
func Sample(traj *diffusion.Trajectory, opts Options) ([]diffusion.IntervalSample, *Report, error) {
	return New(opts).Sample(traj)
}

// Summary is the naive per-interval mean and standard error, treating every
// observation as independent. It understates the error for overlapping
// origins and is kept for comparison with the bootstrap estimate.
type Summary struct {
	Times  []float64
	Mean   []float64
	StdErr []float64
	Counts []int
}

func Summarize(samples []diffusion.IntervalSample) Summary {
	sum := Summary{
		Times:  make([]float64, len(samples)),
		Mean:   make([]float64, len(samples)),
		StdErr: make([]float64, len(samples)),
		Counts: make([]int, len(samples)),
	}
	for i, s := range samples {
		n := s.Observations()
		sum.Times[i] = s.Time
		sum.Counts[i] = n
		if n == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(s.Displacements, nil)
		sum.Mean[i] = mean
		if n > 1 {
			sum.StdErr[i] = std / math.Sqrt(float64(n))
		}
	}
	return sum
}
