package optim

import (
	"context"
	"math"
)

// GridSearch evaluates the objective at the centre of every cell of a
// regular grid over the unit cube. The cost is points^dim, so it suits
// models with one to three parameters.
type GridSearch struct {
	dim    int
	points int
}

func NewGridSearch(dim, points int) *GridSearch {
	return &GridSearch{dim: dim, points: points}
}

func (g *GridSearch) search(ctx context.Context, b *box) attempt {
	res := attempt{f: math.Inf(1)}
	g.searchRecursive(ctx, 0, make([]float64, g.dim), b, &res)
	res.converged = res.x != nil && ctx.Err() == nil
	return res
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current []float64, b *box, best *attempt) {
	if ctx.Err() != nil {
		return
	}
	if depth == g.dim {
		val := b.eval(current)
		best.evals++
		if val < best.f || best.x == nil {
			best.f = val
			best.x = append(best.x[:0], current...)
		}
		return
	}

	for i := 0; i < g.points; i++ {
		current[depth] = (float64(i) + 0.5) / float64(g.points)
		g.searchRecursive(ctx, depth+1, current, b, best)
	}
}
