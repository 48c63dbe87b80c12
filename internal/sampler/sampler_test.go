package sampler

import (
	"errors"
	"testing"

	"github.com/san-kum/diffusim/internal/diffusion"
)

// ballistic builds a trajectory where particle p moves (p+1) units per frame
// along every axis.
func ballistic(t *testing.T, frames, particles, dims int, species []string) *diffusion.Trajectory {
	t.Helper()
	pos := make([][][]float64, frames)
	for f := range pos {
		pos[f] = make([][]float64, particles)
		for p := range pos[f] {
			pos[f][p] = make([]float64, dims)
			for d := range pos[f][p] {
				pos[f][p][d] = float64(f * (p + 1))
			}
		}
	}
	traj, err := diffusion.NewTrajectory(pos, species, 1.0, 1)
	if err != nil {
		t.Fatalf("NewTrajectory failed: %v", err)
	}
	return traj
}

func TestSampleIntervals(t *testing.T) {
	traj := ballistic(t, 101, 2, 1, nil)

	opts := DefaultOptions()
	opts.MinInterval = 10
	opts.MaxInterval = 100
	opts.IntervalSkip = 10

	samples, report, err := Sample(traj, opts)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if len(samples) != 10 {
		t.Fatalf("expected 10 intervals, got %d", len(samples))
	}
	if len(report.Dropped) != 0 {
		t.Errorf("expected no dropped intervals, got %d", len(report.Dropped))
	}

	for i, s := range samples {
		want := float64(10 * (i + 1))
		if s.Time != want {
			t.Errorf("interval %d: time %f, want %f", i, s.Time, want)
		}
		if s.Origins != 101-s.Steps {
			t.Errorf("interval %d: %d origins, want %d", i, s.Origins, 101-s.Steps)
		}
		if i > 0 && s.Origins >= samples[i-1].Origins {
			t.Errorf("origins did not shrink between intervals %d and %d", i-1, i)
		}
	}
}

func TestSampleDisplacements(t *testing.T) {
	traj := ballistic(t, 6, 2, 3, nil)

	samples, _, err := Sample(traj, Options{MinInterval: 2, MaxInterval: 2, MinObservations: 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(samples))
	}

	s := samples[0]
	for _, d := range s.Particle(0) {
		if d != 12 {
			t.Errorf("particle 0: displacement %f, want 12", d)
		}
	}
	for _, d := range s.Particle(1) {
		if d != 48 {
			t.Errorf("particle 1: displacement %f, want 48", d)
		}
	}
}

func TestSampleSpecie(t *testing.T) {
	traj := ballistic(t, 6, 3, 1, []string{"Li", "O", "Li"})

	samples, report, err := Sample(traj, Options{Specie: "Li", MinObservations: 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if report.Particles != 2 {
		t.Errorf("expected 2 selected particles, got %d", report.Particles)
	}
	if samples[0].Particle(1)[0] != 9 {
		t.Errorf("second Li particle should be particle 2, got displacement %f", samples[0].Particle(1)[0])
	}

	_, _, err = Sample(traj, Options{Specie: "Na"})
	if !errors.Is(err, diffusion.ErrInsufficientData) {
		t.Errorf("expected insufficient data for missing specie, got %v", err)
	}
}

func TestSampleDropsSparseIntervals(t *testing.T) {
	traj := ballistic(t, 10, 1, 1, nil)

	strict, report, err := Sample(traj, Options{MinObservations: 5})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	loose, _, err := Sample(traj, Options{MinObservations: 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if len(strict) != 5 {
		t.Errorf("expected 5 retained intervals, got %d", len(strict))
	}
	if len(report.Dropped) != 4 {
		t.Errorf("expected 4 dropped intervals, got %d", len(report.Dropped))
	}
	for i := range strict {
		if strict[i].Steps != loose[i].Steps || strict[i].Origins != loose[i].Origins {
			t.Errorf("interval %d changed when sparse intervals were dropped", i)
		}
	}
	for _, d := range report.Dropped {
		if !errors.Is(d, diffusion.ErrInsufficientData) {
			t.Errorf("dropped entry is not an insufficient data error: %v", d)
		}
	}
}

func TestSampleAllDropped(t *testing.T) {
	traj := ballistic(t, 3, 1, 1, nil)

	_, report, err := Sample(traj, Options{MinObservations: 50})
	if !errors.Is(err, diffusion.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if len(report.Dropped) != 2 {
		t.Errorf("expected 2 dropped intervals, got %d", len(report.Dropped))
	}
}

func TestSampleDeterministic(t *testing.T) {
	traj := ballistic(t, 40, 4, 2, nil)

	a, _, err := Sample(traj, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	b, _, err := Sample(traj, Options{Workers: 8})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	for i := range a {
		for j := range a[i].Displacements {
			if a[i].Displacements[j] != b[i].Displacements[j] {
				t.Fatalf("interval %d observation %d differs between worker counts", i, j)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	samples := []diffusion.IntervalSample{
		{Time: 1, Particles: 1, Origins: 4, Displacements: []float64{1, 1, 1, 1}},
		{Time: 2, Particles: 1, Origins: 2, Displacements: []float64{1, 3}},
	}

	sum := Summarize(samples)
	if sum.Mean[0] != 1 || sum.StdErr[0] != 0 {
		t.Errorf("constant interval: mean %f err %f", sum.Mean[0], sum.StdErr[0])
	}
	if sum.Mean[1] != 2 || sum.StdErr[1] != 1 {
		t.Errorf("second interval: mean %f err %f, want 2 and 1", sum.Mean[1], sum.StdErr[1])
	}
	if sum.Counts[0] != 4 {
		t.Errorf("count = %d, want 4", sum.Counts[0])
	}
}
