package optim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/san-kum/diffusim/internal/diffusion"
)

func quadratic(x []float64) float64 {
	return (x[0]-1)*(x[0]-1) + 4*(x[1]+2)*(x[1]+2) + 3
}

func rosenbrock(x []float64) float64 {
	a := 1 - x[0]
	b := x[1] - x[0]*x[0]
	return a*a + 100*b*b
}

func TestMinimizeStrategies(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		fn     func([]float64) float64
		want   []float64
		wantF  float64
		start  []float64
		tolerX float64
	}{
		{"de quadratic", Options{Strategy: StrategyDifferentialEvolution, Seed: 1}, quadratic, []float64{1, -2}, 3, nil, 1e-3},
		{"de rosenbrock", Options{Strategy: StrategyDifferentialEvolution, Seed: 2}, rosenbrock, []float64{1, 1}, 0, nil, 1e-2},
		{"cmaes quadratic", Options{Strategy: StrategyCMAES, Seed: 3}, quadratic, []float64{1, -2}, 3, nil, 1e-3},
		{"grid quadratic", Options{Strategy: StrategyGrid, GridPoints: 15}, quadratic, []float64{1, -2}, 3, nil, 1e-3},
		{"local bfgs", Options{Strategy: StrategyLocal, Polish: PolishBFGS}, quadratic, []float64{1, -2}, 3, []float64{0, 0}, 1e-3},
		{"local nelder-mead", Options{Strategy: StrategyLocal}, quadratic, []float64{1, -2}, 3, []float64{2, 2}, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Problem{
				Func:  tt.fn,
				Lower: []float64{-5, -5},
				Upper: []float64{5, 5},
				Start: tt.start,
			}
			res, err := Minimize(context.Background(), p, tt.opts)
			if err != nil {
				t.Fatalf("Minimize failed: %v", err)
			}
			for i := range tt.want {
				if math.Abs(res.X[i]-tt.want[i]) > tt.tolerX {
					t.Errorf("x[%d] = %f, want %f", i, res.X[i], tt.want[i])
				}
			}
			if math.Abs(res.F-tt.wantF) > 1e-4 {
				t.Errorf("f = %f, want %f", res.F, tt.wantF)
			}
			if res.Retries != 0 {
				t.Errorf("unexpected retries: %d", res.Retries)
			}
			if res.Evaluations == 0 {
				t.Error("evaluations not counted")
			}
		})
	}
}

func TestMinimizeDeterministicAcrossWorkers(t *testing.T) {
	p := Problem{Func: rosenbrock, Lower: []float64{-2, -2}, Upper: []float64{2, 2}}

	a, err := Minimize(context.Background(), p, Options{Seed: 7, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Minimize(context.Background(), p, Options{Seed: 7, Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.X {
		if a.X[i] != b.X[i] {
			t.Errorf("x[%d] differs: %v vs %v", i, a.X[i], b.X[i])
		}
	}
	if a.Evaluations != b.Evaluations {
		t.Errorf("evaluations differ: %d vs %d", a.Evaluations, b.Evaluations)
	}
}

func TestMinimizeRetriesAreCounted(t *testing.T) {
	var calls atomic.Int64
	fn := func(x []float64) float64 {
		if calls.Add(1) <= 10 {
			return math.NaN()
		}
		return (x[0] - 0.3) * (x[0] - 0.3)
	}
	p := Problem{Func: fn, Lower: []float64{-1}, Upper: []float64{1}}

	res, err := Minimize(context.Background(), p, Options{Strategy: StrategyGrid, GridPoints: 10, MaxRetries: 2})
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if res.Retries != 1 {
		t.Errorf("retries = %d, want 1", res.Retries)
	}
	if math.Abs(res.X[0]-0.3) > 1e-3 {
		t.Errorf("x = %f, want 0.3", res.X[0])
	}
}

func TestMinimizeDivergence(t *testing.T) {
	p := Problem{
		Func:  func([]float64) float64 { return math.Inf(1) },
		Lower: []float64{0, 0},
		Upper: []float64{1, 1},
	}
	_, err := Minimize(context.Background(), p, Options{MaxRetries: 2, MaxGenerations: 5, Seed: 1})
	if !errors.Is(err, diffusion.ErrOptimizationDivergence) {
		t.Fatalf("expected divergence, got %v", err)
	}
	var div *diffusion.OptimizationDivergenceError
	if !errors.As(err, &div) {
		t.Fatal("error is not an OptimizationDivergenceError")
	}
	if div.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", div.Attempts)
	}
	if div.Last == nil {
		t.Error("last error not recorded")
	}
}

func TestMinimizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Problem{Func: quadratic, Lower: []float64{-5, -5}, Upper: []float64{5, 5}}
	if _, err := Minimize(ctx, p, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProblemValidation(t *testing.T) {
	tests := []struct {
		name string
		p    Problem
		opts Options
	}{
		{"nil func", Problem{Lower: []float64{0}, Upper: []float64{1}}, Options{}},
		{"empty bounds", Problem{Func: quadratic}, Options{}},
		{"inverted bounds", Problem{Func: quadratic, Lower: []float64{1}, Upper: []float64{0}}, Options{}},
		{"local without start", Problem{Func: quadratic, Lower: []float64{0}, Upper: []float64{1}}, Options{Strategy: StrategyLocal}},
		{"unknown strategy", Problem{Func: quadratic, Lower: []float64{0}, Upper: []float64{1}}, Options{Strategy: "annealing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Minimize(context.Background(), tt.p, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGridSearchVisitsEveryCell(t *testing.T) {
	b := newBox(Problem{Func: func(x []float64) float64 { return x[0] + x[1] + x[2] }, Lower: []float64{0, 0, 0}, Upper: []float64{1, 1, 1}})
	res := NewGridSearch(3, 4).search(context.Background(), b)
	if res.evals != 64 {
		t.Errorf("evaluations = %d, want 64", res.evals)
	}
	if math.Abs(res.f-3*0.125) > 1e-12 {
		t.Errorf("best = %f, want %f", res.f, 3*0.125)
	}
}

func TestPickTwoDistinct(t *testing.T) {
	rng := diffusion.NewStream(1).Rand(0)
	for i := 0; i < 1000; i++ {
		ex := i % 5
		a, b := pickTwo(rng, 5, ex)
		if a == b || a == ex || b == ex || a < 0 || b < 0 || a >= 5 || b >= 5 {
			t.Fatalf("pickTwo(5, %d) = %d, %d", ex, a, b)
		}
	}
}
