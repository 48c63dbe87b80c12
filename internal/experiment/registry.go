package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/diffusim/internal/arrhenius"
	"github.com/san-kum/diffusim/internal/fit"
	"github.com/san-kum/diffusim/internal/metrics"
	"github.com/san-kum/diffusim/internal/regress"
)

type Registry struct {
	models    map[string]func(dims int) fit.Model
	arrhenius map[string]func() arrhenius.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		models:    make(map[string]func(dims int) fit.Model),
		arrhenius: make(map[string]func() arrhenius.Model),
	}

	r.models["msd"] = regress.MSD
	r.models["msd-offset"] = regress.MSDOffset

	r.arrhenius["arrhenius"] = arrhenius.Standard
	r.arrhenius["super-arrhenius"] = arrhenius.Super
	r.arrhenius["arrhenius-log"] = arrhenius.LogLinear

	return r
}

// GetModel returns the named MSD model for dims spatial dimensions.
func (r *Registry) GetModel(name string, dims int) (fit.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return fit.Model{}, fmt.Errorf("unknown model: %s", name)
	}
	return fn(dims), nil
}

func (r *Registry) GetArrhenius(name string) (arrhenius.Model, error) {
	fn, ok := r.arrhenius[name]
	if !ok {
		return arrhenius.Model{}, fmt.Errorf("unknown arrhenius model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return sortedNames(r.models)
}

func (r *Registry) ListArrhenius() []string {
	return sortedNames(r.arrhenius)
}

// DefaultMetrics are the chain metrics recorded beside the acceptance
// fraction.
func (r *Registry) DefaultMetrics() []metrics.Metric {
	return []metrics.Metric{
		metrics.NewMeanLogProb(),
		metrics.NewStuck(),
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
