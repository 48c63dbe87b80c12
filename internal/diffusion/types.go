package diffusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Trajectory holds unwrapped particle positions indexed [frame][particle][dim].
// It is immutable once constructed.
type Trajectory struct {
	positions [][][]float64
	species   []string
	timeStep  float64
	stepSkip  int
}

// NewTrajectory validates and copies positions. species may be nil, in
// which case every particle is unlabelled. timeStep is the duration of one
// simulation step and stepSkip the number of steps between stored frames.
func NewTrajectory(positions [][][]float64, species []string, timeStep float64, stepSkip int) (*Trajectory, error) {
	if len(positions) < 2 {
		return nil, fmt.Errorf("%w: trajectory needs at least 2 frames, got %d", ErrInvalidOption, len(positions))
	}
	if timeStep <= 0 {
		return nil, fmt.Errorf("%w: time step must be positive, got %f", ErrInvalidOption, timeStep)
	}
	if stepSkip < 1 {
		return nil, fmt.Errorf("%w: step skip must be at least 1, got %d", ErrInvalidOption, stepSkip)
	}

	nParticles := len(positions[0])
	if nParticles == 0 {
		return nil, fmt.Errorf("%w: trajectory has no particles", ErrInvalidOption)
	}
	dims := len(positions[0][0])
	if dims == 0 {
		return nil, fmt.Errorf("%w: trajectory has zero spatial dimensions", ErrInvalidOption)
	}
	if species != nil && len(species) != nParticles {
		return nil, fmt.Errorf("%w: %d species labels for %d particles", ErrDimensionMismatch, len(species), nParticles)
	}

	frames := make([][][]float64, len(positions))
	for f, frame := range positions {
		if len(frame) != nParticles {
			return nil, fmt.Errorf("%w: frame %d has %d particles, want %d", ErrDimensionMismatch, f, len(frame), nParticles)
		}
		frames[f] = make([][]float64, nParticles)
		for p, pos := range frame {
			if len(pos) != dims {
				return nil, fmt.Errorf("%w: frame %d particle %d has %d dims, want %d", ErrDimensionMismatch, f, p, len(pos), dims)
			}
			for _, v := range pos {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("%w: non-finite position at frame %d particle %d", ErrInvalidOption, f, p)
				}
			}
			c := make([]float64, dims)
			copy(c, pos)
			frames[f][p] = c
		}
	}

	labels := make([]string, nParticles)
	copy(labels, species)

	return &Trajectory{
		positions: frames,
		species:   labels,
		timeStep:  timeStep,
		stepSkip:  stepSkip,
	}, nil
}

func (t *Trajectory) Frames() int        { return len(t.positions) }
func (t *Trajectory) Particles() int     { return len(t.positions[0]) }
func (t *Trajectory) Dims() int          { return len(t.positions[0][0]) }
func (t *Trajectory) TimeStep() float64  { return t.timeStep }
func (t *Trajectory) StepSkip() int      { return t.stepSkip }
func (t *Trajectory) Specie(p int) string { return t.species[p] }

// FrameTime is the time between two stored frames.
func (t *Trajectory) FrameTime() float64 {
	return t.timeStep * float64(t.stepSkip)
}

// Position returns a copy of the position of particle p at frame f.
func (t *Trajectory) Position(f, p int) []float64 {
	c := make([]float64, len(t.positions[f][p]))
	copy(c, t.positions[f][p])
	return c
}

// SquaredDisplacement returns |r_p(to) - r_p(from)|^2.
func (t *Trajectory) SquaredDisplacement(p, from, to int) float64 {
	a := t.positions[from][p]
	b := t.positions[to][p]
	sum := 0.0
	for i := range a {
		d := b[i] - a[i]
		sum += d * d
	}
	return sum
}

// Select returns the indices of particles labelled specie. An empty specie
// selects every particle.
func (t *Trajectory) Select(specie string) []int {
	idx := make([]int, 0, len(t.species))
	for p, s := range t.species {
		if specie == "" || s == specie {
			idx = append(idx, p)
		}
	}
	return idx
}

// IntervalSample holds the squared displacements observed for one time
// interval, stored particle-major: Displacements[p*Origins+t].
type IntervalSample struct {
	Steps         int
	Time          float64
	Dims          int
	Particles     int
	Origins       int
	Displacements []float64
}

func (s IntervalSample) Observations() int {
	return s.Particles * s.Origins
}

func (s IntervalSample) Mean() float64 {
	return stat.Mean(s.Displacements, nil)
}

// Particle returns the displacements of the p-th selected particle. The
// returned slice aliases the sample and must not be modified.
func (s IntervalSample) Particle(p int) []float64 {
	return s.Displacements[p*s.Origins : (p+1)*s.Origins]
}

// ParticleMeans returns the time-origin average of each particle.
func (s IntervalSample) ParticleMeans() []float64 {
	means := make([]float64, s.Particles)
	for p := range means {
		means[p] = stat.Mean(s.Particle(p), nil)
	}
	return means
}

// CovarianceBundle is the output of covariance estimation: interval means
// and the covariance of those means across intervals.
type CovarianceBundle struct {
	Times     []float64
	Steps     []int
	Mean      []float64
	StdErr    []float64
	Cov       *mat.SymDense
	Dims      int
	Resamples int
	Seed      int64
	Scheme    string
}

func (b *CovarianceBundle) Len() int { return len(b.Times) }

// Validate checks the bundle invariants: consistent lengths and a diagonal
// matching the squared standard errors.
func (b *CovarianceBundle) Validate() error {
	n := len(b.Times)
	if n == 0 {
		return &InsufficientDataError{Stage: "covariance", Need: 1}
	}
	if len(b.Mean) != n || len(b.StdErr) != n {
		return fmt.Errorf("%w: %d times, %d means, %d errors", ErrDimensionMismatch, n, len(b.Mean), len(b.StdErr))
	}
	if b.Cov == nil || b.Cov.SymmetricDim() != n {
		return fmt.Errorf("%w: covariance does not match %d intervals", ErrDimensionMismatch, n)
	}
	for i := 0; i < n; i++ {
		v := b.Cov.At(i, i)
		if math.Abs(v-b.StdErr[i]*b.StdErr[i]) > 1e-9*math.Max(1, math.Abs(v)) {
			return fmt.Errorf("%w: diagonal %d (%g) differs from squared error %g", ErrDimensionMismatch, i, v, b.StdErr[i]*b.StdErr[i])
		}
	}
	return nil
}
