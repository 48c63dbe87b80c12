// Package synth generates synthetic inputs with known answers: Brownian
// trajectories with a chosen diffusion coefficient and diffusion
// distributions following an Arrhenius law.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/diffusion"
)

// Brownian describes free diffusion of non-interacting particles. Each
// stored frame is StepSkip Euler–Maruyama steps of length TimeStep.
type Brownian struct {
	D         float64
	Dims      int
	Particles int
	Frames    int
	TimeStep  float64
	StepSkip  int
	Species   []string
}

func NewBrownian(d float64, dims int) *Brownian {
	return &Brownian{
		D:         d,
		Dims:      dims,
		Particles: 1,
		Frames:    1001,
		TimeStep:  1.0,
		StepSkip:  1,
	}
}

func (b *Brownian) GetParams() map[string]float64 {
	return map[string]float64{
		"D":         b.D,
		"dims":      float64(b.Dims),
		"particles": float64(b.Particles),
		"frames":    float64(b.Frames),
		"time_step": b.TimeStep,
		"step_skip": float64(b.StepSkip),
	}
}

func (b *Brownian) SetParam(name string, v float64) error {
	switch name {
	case "D":
		b.D = v
	case "dims":
		b.Dims = int(v)
	case "particles":
		b.Particles = int(v)
	case "frames":
		b.Frames = int(v)
	case "time_step":
		b.TimeStep = v
	case "step_skip":
		b.StepSkip = int(v)
	default:
		return fmt.Errorf("%w: unknown parameter %q", diffusion.ErrInvalidOption, name)
	}
	return nil
}

func (b *Brownian) validate() error {
	if b.D < 0 {
		return fmt.Errorf("%w: negative diffusion coefficient %f", diffusion.ErrInvalidOption, b.D)
	}
	if b.Dims < 1 || b.Particles < 1 || b.Frames < 2 || b.StepSkip < 1 {
		return fmt.Errorf("%w: dims %d, particles %d, frames %d, step skip %d", diffusion.ErrInvalidOption, b.Dims, b.Particles, b.Frames, b.StepSkip)
	}
	if b.TimeStep <= 0 {
		return fmt.Errorf("%w: time step must be positive, got %f", diffusion.ErrInvalidOption, b.TimeStep)
	}
	return nil
}

// Step advances x by one Euler–Maruyama step of free diffusion:
// x += sqrt(2·D·dt)·N(0, 1) per dimension.
func (b *Brownian) Step(x []float64, rng *rand.Rand) {
	sigma := math.Sqrt(2 * b.D * b.TimeStep)
	for i := range x {
		x[i] += sigma * rng.NormFloat64()
	}
}

// Generate integrates every particle from the origin. Particle p draws from
// stream id p, so the trajectory does not depend on workers.
func (b *Brownian) Generate(seed int64, workers int) (*diffusion.Trajectory, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	pos := make([][][]float64, b.Frames)
	for f := range pos {
		pos[f] = make([][]float64, b.Particles)
	}

	stream := diffusion.NewStream(seed)
	diffusion.ParallelFor(b.Particles, 1, workers, func(start, end int) {
		for p := start; p < end; p++ {
			rng := stream.Rand(uint64(p))
			x := make([]float64, b.Dims)
			pos[0][p] = append([]float64(nil), x...)
			for f := 1; f < b.Frames; f++ {
				for s := 0; s < b.StepSkip; s++ {
					b.Step(x, rng)
				}
				pos[f][p] = append([]float64(nil), x...)
			}
		}
	})

	return diffusion.NewTrajectory(pos, b.Species, b.TimeStep, b.StepSkip)
}
