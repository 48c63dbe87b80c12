package analysis

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestAutocorrelationWhiteNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := make([]float64, 4096)
	for i := range x {
		x[i] = rng.NormFloat64()
	}

	acf := Autocorrelation(x)
	if math.Abs(acf[0]-1) > 1e-12 {
		t.Errorf("acf[0] = %f, want 1", acf[0])
	}
	for lag := 1; lag < 10; lag++ {
		if math.Abs(acf[lag]) > 0.1 {
			t.Errorf("acf[%d] = %f, expected near zero", lag, acf[lag])
		}
	}
}

func TestAutocorrelationConstant(t *testing.T) {
	acf := Autocorrelation([]float64{3, 3, 3, 3, 3})
	if acf[0] != 1 {
		t.Errorf("acf[0] = %f", acf[0])
	}
	for i := 1; i < len(acf); i++ {
		if acf[i] != 0 {
			t.Errorf("acf[%d] = %f, want 0", i, acf[i])
		}
	}
}

func TestIntegratedTimeAR1(t *testing.T) {
	// AR(1) with coefficient phi has tau = (1+phi)/(1-phi).
	phi := 0.8
	want := (1 + phi) / (1 - phi)
	rng := rand.New(rand.NewPCG(3, 4))

	chains := make([][]float64, 16)
	for w := range chains {
		x := make([]float64, 5000)
		for i := 1; i < len(x); i++ {
			x[i] = phi*x[i-1] + rng.NormFloat64()
		}
		chains[w] = x
	}

	tau := IntegratedTime(chains, DefaultWindow)
	if math.Abs(tau-want)/want > 0.2 {
		t.Errorf("tau = %f, want about %f", tau, want)
	}
}

func TestIntegratedTimeMismatched(t *testing.T) {
	if !math.IsNaN(IntegratedTime([][]float64{{1, 2, 3}, {1, 2}}, DefaultWindow)) {
		t.Error("expected NaN for ragged chains")
	}
	if !math.IsNaN(IntegratedTime(nil, DefaultWindow)) {
		t.Error("expected NaN for no chains")
	}
}

func TestCredibleBand(t *testing.T) {
	line := func(x float64, p []float64) float64 { return p[0] * x }
	samples := make([][]float64, 101)
	for i := range samples {
		samples[i] = []float64{float64(i) / 100}
	}

	band, err := CredibleBand(line, []float64{0, 1, 2}, samples, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if band.Median[1] != 0.5 {
		t.Errorf("median at x=1 = %f, want 0.5", band.Median[1])
	}
	if band.Lower[2] >= band.Median[2] || band.Upper[2] <= band.Median[2] {
		t.Errorf("band not ordered: %f %f %f", band.Lower[2], band.Median[2], band.Upper[2])
	}
	if band.Lower[0] != 0 || band.Upper[0] != 0 {
		t.Errorf("band at x=0 should collapse, got [%f, %f]", band.Lower[0], band.Upper[0])
	}

	if _, err := CredibleBand(line, []float64{1}, nil, 0.9); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := CredibleBand(line, []float64{1}, samples, 1.5); err == nil {
		t.Error("expected error for invalid interval")
	}
}
