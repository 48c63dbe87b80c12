package experiment

import (
	"fmt"

	"github.com/san-kum/diffusim/internal/config"
	"github.com/san-kum/diffusim/internal/synth"
)

// FromConfig resolves the configured models and options into a study
// configuration for trajectories with dims spatial dimensions.
func FromConfig(cfg *config.Config, reg *Registry, dims int) (StudyConfig, error) {
	model, err := reg.GetModel(cfg.Regression.Model, dims)
	if err != nil {
		return StudyConfig{}, err
	}
	arr, err := reg.GetArrhenius(cfg.Arrhenius.Model)
	if err != nil {
		return StudyConfig{}, err
	}

	regOpts := cfg.RegressOptions()
	regOpts.Metrics = reg.DefaultMetrics
	arrOpts := cfg.ArrheniusOptions()
	arrOpts.Metrics = reg.DefaultMetrics

	return StudyConfig{
		Experiment: Config{
			Sampler:        cfg.SamplerOptions(),
			Covariance:     cfg.CovarianceOptions(),
			Regression:     regOpts,
			Model:          model,
			SimulationSeed: cfg.Simulation.Seed,
		},
		Arrhenius:      arrOpts,
		ArrheniusModel: arr,
		Workers:        cfg.Workers,
	}, nil
}

// SimulatedConditions builds one Brownian condition per configured
// temperature with D following the configured Arrhenius law, or a single
// condition at the configured D when no temperatures are set.
func SimulatedConditions(cfg *config.Config) []Condition {
	sim := cfg.Simulation
	if len(sim.Temperatures) == 0 {
		return []Condition{{Name: fmt.Sprintf("D=%g", sim.D), Simulate: cfg.Brownian()}}
	}
	conds := make([]Condition, len(sim.Temperatures))
	for i, temp := range sim.Temperatures {
		b := cfg.Brownian()
		b.D = synth.ArrheniusD(temp, sim.ActivationEnergy, sim.Prefactor)
		conds[i] = Condition{
			Name:        fmt.Sprintf("%gK", temp),
			Temperature: temp,
			Simulate:    b,
		}
	}
	return conds
}
