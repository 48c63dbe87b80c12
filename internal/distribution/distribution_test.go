package distribution

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/san-kum/diffusim/internal/diffusion"
)

func TestNewSummary(t *testing.T) {
	d, err := New("D", []float64{5, 1, 4, 2, 3}, WithUnit("cm^2/s"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if d.Mean() != 3 {
		t.Errorf("Mean() = %f, want 3", d.Mean())
	}
	if math.Abs(d.Std()-math.Sqrt(2.5)) > 1e-12 {
		t.Errorf("Std() = %f, want %f", d.Std(), math.Sqrt(2.5))
	}
	if d.Median() != 3 {
		t.Errorf("Median() = %f, want 3", d.Median())
	}
	if d.Size() != 5 || d.Name() != "D" || d.Unit() != "cm^2/s" {
		t.Errorf("unexpected metadata %q %q %d", d.Name(), d.Unit(), d.Size())
	}
	if _, ok := d.MaxLikelihood(); ok {
		t.Error("MaxLikelihood reported without being set")
	}
}

func TestSamplesAreCopies(t *testing.T) {
	in := []float64{1, 2, 3}
	d, err := New("x", in)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	in[0] = 100
	out := d.Samples()
	out[1] = 200

	if d.At(0) != 1 || d.At(1) != 2 {
		t.Error("distribution shares memory with caller")
	}
	if d.Mean() != 2 {
		t.Errorf("Mean() = %f after caller mutation, want 2", d.Mean())
	}
}

func TestSamplesKeepDrawOrder(t *testing.T) {
	d, err := New("x", []float64{3, 1, 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s := d.Samples()
	if s[0] != 3 || s[1] != 1 || s[2] != 2 {
		t.Errorf("Samples() = %v, want draw order", s)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New("x", nil); !errors.Is(err, diffusion.ErrInsufficientData) {
		t.Errorf("expected insufficient data, got %v", err)
	}
	if _, err := New("x", []float64{1, math.Inf(1)}); !errors.Is(err, diffusion.ErrInvalidOption) {
		t.Errorf("expected invalid option, got %v", err)
	}
}

func TestInterval(t *testing.T) {
	src := rand.NewPCG(1, 2)
	d, err := FromNormal("x", 10, 2, 20000, src)
	if err != nil {
		t.Fatalf("FromNormal failed: %v", err)
	}

	lo, hi := d.CredibleInterval()
	if math.Abs(lo-(10-1.96*2)) > 0.15 || math.Abs(hi-(10+1.96*2)) > 0.15 {
		t.Errorf("95%% interval [%f, %f], want about [6.08, 13.92]", lo, hi)
	}
	if !d.Contains(d.Mean(), 0.95) {
		t.Error("mean outside its own 95% interval")
	}
	if d.Contains(100, 0.95) {
		t.Error("far outlier inside 95% interval")
	}

	lo68, hi68 := d.Interval(0.68)
	if lo68 <= lo || hi68 >= hi {
		t.Error("68% interval not nested inside 95% interval")
	}
	if l, h := d.Interval(0); !math.IsNaN(l) || !math.IsNaN(h) {
		t.Error("zero-mass interval should be NaN")
	}
}

func TestMaxLikelihood(t *testing.T) {
	d, err := New("Ea", []float64{0.3, 0.31}, WithMaxLikelihood(0.305))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if v, ok := d.MaxLikelihood(); !ok || v != 0.305 {
		t.Errorf("MaxLikelihood() = %f, %v", v, ok)
	}
}

type rawSamples []float64

func (r rawSamples) Samples() []float64 { return r }
func (r rawSamples) Size() int          { return len(r) }

func TestOf(t *testing.T) {
	d, err := Of("y", rawSamples{1, 2, 3})
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if d.Mean() != 2 || d.Name() != "y" {
		t.Errorf("Of produced %v", d)
	}
}

func TestConcurrentReads(t *testing.T) {
	d, err := FromNormal("x", 0, 1, 1000, rand.NewPCG(3, 4))
	if err != nil {
		t.Fatalf("FromNormal failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Mean()
			_, _ = d.Interval(0.9)
			_ = d.Samples()
		}()
	}
	wg.Wait()
}
