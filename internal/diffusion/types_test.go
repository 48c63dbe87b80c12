package diffusion

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func line(frames, particles int) [][][]float64 {
	pos := make([][][]float64, frames)
	for f := range pos {
		pos[f] = make([][]float64, particles)
		for p := range pos[f] {
			pos[f][p] = []float64{float64(f * (p + 1))}
		}
	}
	return pos
}

func TestNewTrajectory(t *testing.T) {
	traj, err := NewTrajectory(line(5, 2), []string{"Li", "O"}, 0.5, 2)
	if err != nil {
		t.Fatalf("NewTrajectory failed: %v", err)
	}

	if traj.Frames() != 5 || traj.Particles() != 2 || traj.Dims() != 1 {
		t.Errorf("unexpected shape %dx%dx%d", traj.Frames(), traj.Particles(), traj.Dims())
	}
	if traj.FrameTime() != 1.0 {
		t.Errorf("FrameTime() = %f, want 1.0", traj.FrameTime())
	}
	if got := traj.SquaredDisplacement(1, 0, 3); got != 36 {
		t.Errorf("SquaredDisplacement = %f, want 36", got)
	}
}

func TestNewTrajectory_CopiesInput(t *testing.T) {
	pos := line(3, 1)
	traj, err := NewTrajectory(pos, nil, 1, 1)
	if err != nil {
		t.Fatalf("NewTrajectory failed: %v", err)
	}

	pos[2][0][0] = 99
	if traj.Position(2, 0)[0] != 2 {
		t.Error("trajectory shares memory with caller input")
	}
}

func TestNewTrajectory_Invalid(t *testing.T) {
	ragged := line(3, 2)
	ragged[1] = ragged[1][:1]

	nan := line(3, 1)
	nan[1][0][0] = math.NaN()

	tests := []struct {
		name    string
		pos     [][][]float64
		species []string
		dt      float64
		skip    int
		want    error
	}{
		{"one frame", line(1, 1), nil, 1, 1, ErrInvalidOption},
		{"zero dt", line(3, 1), nil, 0, 1, ErrInvalidOption},
		{"zero skip", line(3, 1), nil, 1, 0, ErrInvalidOption},
		{"ragged frame", ragged, nil, 1, 1, ErrDimensionMismatch},
		{"label count", line(3, 2), []string{"Li"}, 1, 1, ErrDimensionMismatch},
		{"nan", nan, nil, 1, 1, ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrajectory(tt.pos, tt.species, tt.dt, tt.skip)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTrajectorySelect(t *testing.T) {
	traj, err := NewTrajectory(line(2, 4), []string{"Li", "O", "Li", "P"}, 1, 1)
	if err != nil {
		t.Fatalf("NewTrajectory failed: %v", err)
	}

	if got := traj.Select("Li"); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Select(Li) = %v", got)
	}
	if got := traj.Select(""); len(got) != 4 {
		t.Errorf("Select(\"\") = %v, want all particles", got)
	}
	if got := traj.Select("Na"); len(got) != 0 {
		t.Errorf("Select(Na) = %v, want none", got)
	}
}

func TestIntervalSample(t *testing.T) {
	s := IntervalSample{
		Steps:         2,
		Time:          2,
		Particles:     2,
		Origins:       3,
		Displacements: []float64{1, 2, 3, 4, 5, 6},
	}

	if s.Observations() != 6 {
		t.Errorf("Observations() = %d, want 6", s.Observations())
	}
	if s.Mean() != 3.5 {
		t.Errorf("Mean() = %f, want 3.5", s.Mean())
	}
	means := s.ParticleMeans()
	if means[0] != 2 || means[1] != 5 {
		t.Errorf("ParticleMeans() = %v", means)
	}
}

func TestCovarianceBundleValidate(t *testing.T) {
	b := &CovarianceBundle{
		Times:  []float64{1, 2},
		Mean:   []float64{1, 2},
		StdErr: []float64{0.5, 1},
		Cov:    mat.NewSymDense(2, []float64{0.25, 0.1, 0.1, 1}),
	}
	if err := b.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	b.StdErr[1] = 2
	if err := b.Validate(); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}

	empty := &CovarianceBundle{}
	if err := empty.Validate(); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected insufficient data, got %v", err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{&InsufficientDataError{Stage: "sampler", Interval: 10, Have: 1, Need: 5}, ErrInsufficientData},
		{&SingularCovarianceError{Dim: 3}, ErrSingularCovariance},
		{&OptimizationDivergenceError{Attempts: 3, Best: []float64{1}}, ErrOptimizationDivergence},
		{&SamplingError{Generation: 4, Walkers: 8}, ErrSampling},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%T does not unwrap to %v", tt.err, tt.want)
		}
		if tt.err.Error() == "" {
			t.Errorf("%T has empty message", tt.err)
		}
	}

	err := &InsufficientDataError{Stage: "sampler", Interval: 10, Have: 1, Need: 5}
	expected := "sampler: insufficient data at interval 10: have 1, need 5"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}
