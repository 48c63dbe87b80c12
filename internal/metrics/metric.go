// Package metrics accumulates per-generation statistics of an ensemble
// sampler run.
package metrics

// Generation is the state of the ensemble after one generation.
// LogProb and Accepted are indexed by walker and must not be retained.
type Generation struct {
	Index    int
	LogProb  []float64
	Accepted []bool
}

type Metric interface {
	Name() string
	Observe(g Generation)
	Value() float64
	Reset()
}

// Collect returns the current value of every metric keyed by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
