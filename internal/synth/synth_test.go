package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/diffusim/internal/diffusion"
)

func TestBrownianGenerate(t *testing.T) {
	b := NewBrownian(0.5, 2)
	b.Particles = 200
	b.Frames = 51

	traj, err := b.Generate(7, 0)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if traj.Frames() != 51 || traj.Particles() != 200 || traj.Dims() != 2 {
		t.Fatalf("unexpected shape %dx%dx%d", traj.Frames(), traj.Particles(), traj.Dims())
	}

	// <r^2(t)> = 2·dims·D·t = 100 at t = 50.
	sum := 0.0
	for p := 0; p < traj.Particles(); p++ {
		sum += traj.SquaredDisplacement(p, 0, 50)
	}
	msd := sum / float64(traj.Particles())
	if math.Abs(msd-100) > 25 {
		t.Errorf("msd at t=50 = %f, want about 100", msd)
	}
}

func TestBrownianDeterministic(t *testing.T) {
	b := NewBrownian(1, 1)
	b.Particles = 8
	b.Frames = 20

	a, err := b.Generate(3, 1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	c, err := b.Generate(3, 4)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for p := 0; p < 8; p++ {
		if a.Position(19, p)[0] != c.Position(19, p)[0] {
			t.Fatalf("particle %d differs between worker counts", p)
		}
	}
}

func TestBrownianParams(t *testing.T) {
	b := NewBrownian(1, 3)
	if err := b.SetParam("particles", 12); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}
	if b.GetParams()["particles"] != 12 {
		t.Errorf("particles = %f, want 12", b.GetParams()["particles"])
	}
	if err := b.SetParam("mass", 1); !errors.Is(err, diffusion.ErrInvalidOption) {
		t.Errorf("expected invalid option, got %v", err)
	}

	b.Frames = 1
	if _, err := b.Generate(0, 1); !errors.Is(err, diffusion.ErrInvalidOption) {
		t.Errorf("expected invalid option for one frame, got %v", err)
	}
}

func TestArrheniusSeries(t *testing.T) {
	temps := []float64{500, 600, 700, 800}
	series, err := ArrheniusSeries(temps, 0.3, 1e-4, 0.05, 2000, 11)
	if err != nil {
		t.Fatalf("ArrheniusSeries failed: %v", err)
	}

	for i, d := range series {
		want := ArrheniusD(temps[i], 0.3, 1e-4)
		if math.Abs(d.Mean()-want)/want > 0.01 {
			t.Errorf("T=%f: mean %g, want %g", temps[i], d.Mean(), want)
		}
		if math.Abs(d.Std()/want-0.05) > 0.005 {
			t.Errorf("T=%f: relative std %f, want 0.05", temps[i], d.Std()/want)
		}
	}
	if series[0].Mean() >= series[3].Mean() {
		t.Error("diffusion should grow with temperature")
	}
}
