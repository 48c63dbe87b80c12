package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/san-kum/diffusim/internal/arrhenius"
	"github.com/san-kum/diffusim/internal/covariance"
	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/logging"
	"github.com/san-kum/diffusim/internal/mcmc"
	"github.com/san-kum/diffusim/internal/optim"
	"github.com/san-kum/diffusim/internal/regress"
	"github.com/san-kum/diffusim/internal/sampler"
	"github.com/san-kum/diffusim/internal/synth"
	"gopkg.in/yaml.v3"
)

const (
	DefaultD         = 0.5
	DefaultDims      = 1
	DefaultParticles = 50
	DefaultFrames    = 1001
	DefaultTimeStep  = 1.0
	DefaultModel     = "msd"

	// Ten intervals keep the bootstrap covariance well conditioned at the
	// default resample count.
	DefaultMinInterval  = 10.0
	DefaultMaxInterval  = 100.0
	DefaultIntervalSkip = 10
)

type Config struct {
	Sampler    SamplerConfig    `yaml:"sampler"`
	Covariance CovarianceConfig `yaml:"covariance"`
	Regression RegressionConfig `yaml:"regression"`
	Arrhenius  ArrheniusConfig  `yaml:"arrhenius"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    logging.Config   `yaml:"logging"`
	Workers    int              `yaml:"workers"`
}

type SamplerConfig struct {
	Specie          string  `yaml:"specie"`
	TimeStep        float64 `yaml:"time_step"`
	StepSkip        int     `yaml:"step_skip"`
	MinInterval     float64 `yaml:"min_interval"`
	MaxInterval     float64 `yaml:"max_interval"`
	IntervalSkip    int     `yaml:"interval_skip"`
	MinObservations int     `yaml:"min_observations"`
}

type CovarianceConfig struct {
	Resamples int    `yaml:"n_resamples"`
	BlockSize int    `yaml:"block_size"`
	Scheme    string `yaml:"scheme"`
	Seed      int64  `yaml:"seed"`
}

type SamplingConfig struct {
	Walkers        int     `yaml:"n_walkers"`
	Steps          int     `yaml:"n_steps"`
	BurnInFraction float64 `yaml:"burn_in_fraction"`
	Thin           int     `yaml:"thin"`
	Seed           int64   `yaml:"seed"`
	Strategy       string  `yaml:"strategy"`
	MaxRetries     int     `yaml:"max_retries"`
	Skip           bool    `yaml:"skip_sampling"`
}

type RegressionConfig struct {
	Model          string `yaml:"model"`
	SamplingConfig `yaml:",inline"`
}

type ArrheniusConfig struct {
	Model                  string `yaml:"model"`
	Mode                   string `yaml:"mode"`
	Correlated             bool   `yaml:"correlated"`
	UnaccountedUncertainty bool   `yaml:"unaccounted_uncertainty"`
	SamplingConfig         `yaml:",inline"`
}

// SimulationConfig describes the synthetic Brownian system used when no
// trajectory file is given.
type SimulationConfig struct {
	D            float64   `yaml:"d"`
	Dims         int       `yaml:"dims"`
	Particles    int       `yaml:"particles"`
	Frames       int       `yaml:"frames"`
	TimeStep     float64   `yaml:"time_step"`
	StepSkip     int       `yaml:"step_skip"`
	Seed         int64     `yaml:"seed"`
	Temperatures []float64 `yaml:"temperatures"`
	// ActivationEnergy and Prefactor set D(T) for temperature studies.
	ActivationEnergy float64 `yaml:"activation_energy"`
	Prefactor        float64 `yaml:"prefactor"`
}

func defaultSampling() SamplingConfig {
	return SamplingConfig{
		Walkers:        mcmc.DefaultWalkers,
		Steps:          mcmc.DefaultSteps,
		BurnInFraction: mcmc.DefaultBurnIn,
		Thin:           mcmc.DefaultThin,
		MaxRetries:     optim.DefaultMaxRetries,
	}
}

func DefaultConfig() *Config {
	arr := defaultSampling()
	arr.Strategy = string(optim.StrategyDifferentialEvolution)
	return &Config{
		Sampler: SamplerConfig{
			MinInterval:     DefaultMinInterval,
			MaxInterval:     DefaultMaxInterval,
			IntervalSkip:    DefaultIntervalSkip,
			MinObservations: sampler.DefaultMinObservations,
		},
		Covariance: CovarianceConfig{
			Resamples: covariance.DefaultResamples,
			Scheme:    string(covariance.SchemeAuto),
		},
		Regression: RegressionConfig{
			Model:          DefaultModel,
			SamplingConfig: defaultSampling(),
		},
		Arrhenius: ArrheniusConfig{
			Model:          "arrhenius",
			Mode:           string(arrhenius.LikelihoodEmpirical),
			SamplingConfig: arr,
		},
		Simulation: SimulationConfig{
			D:                DefaultD,
			Dims:             DefaultDims,
			Particles:        DefaultParticles,
			Frames:           DefaultFrames,
			TimeStep:         DefaultTimeStep,
			StepSkip:         1,
			ActivationEnergy: 0.3,
			Prefactor:        1e-4,
		},
		Logging: logging.DefaultConfig(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Covariance.Resamples < 2 {
		return fmt.Errorf("%w: n_resamples must be at least 2", diffusion.ErrInvalidOption)
	}
	switch covariance.Scheme(c.Covariance.Scheme) {
	case covariance.SchemeAuto, covariance.SchemeBlocks, covariance.SchemeParticles:
	default:
		return fmt.Errorf("%w: unknown covariance scheme %q", diffusion.ErrInvalidOption, c.Covariance.Scheme)
	}
	if c.Regression.Model == "" || c.Arrhenius.Model == "" {
		return fmt.Errorf("%w: model names must be set", diffusion.ErrInvalidOption)
	}
	for _, s := range []SamplingConfig{c.Regression.SamplingConfig, c.Arrhenius.SamplingConfig} {
		if s.BurnInFraction < 0 || s.BurnInFraction >= 1 {
			return fmt.Errorf("%w: burn_in_fraction %g outside [0, 1)", diffusion.ErrInvalidOption, s.BurnInFraction)
		}
		switch optim.Strategy(s.Strategy) {
		case "", optim.StrategyDifferentialEvolution, optim.StrategyCMAES, optim.StrategyGrid, optim.StrategyLocal:
		default:
			return fmt.Errorf("%w: unknown strategy %q", diffusion.ErrInvalidOption, s.Strategy)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) SamplerOptions() sampler.Options {
	return sampler.Options{
		Specie:          c.Sampler.Specie,
		TimeStep:        c.Sampler.TimeStep,
		StepSkip:        c.Sampler.StepSkip,
		MinInterval:     c.Sampler.MinInterval,
		MaxInterval:     c.Sampler.MaxInterval,
		IntervalSkip:    c.Sampler.IntervalSkip,
		MinObservations: c.Sampler.MinObservations,
		Workers:         c.Workers,
	}
}

func (c *Config) CovarianceOptions() covariance.Options {
	return covariance.Options{
		Resamples: c.Covariance.Resamples,
		BlockSize: c.Covariance.BlockSize,
		Scheme:    covariance.Scheme(c.Covariance.Scheme),
		Seed:      c.Covariance.Seed,
		Workers:   c.Workers,
	}
}

func (c *Config) RegressOptions() regress.Options {
	s := c.Regression.SamplingConfig
	return regress.Options{
		Strategy:     optim.Strategy(s.Strategy),
		MaxRetries:   s.MaxRetries,
		Walkers:      s.Walkers,
		Steps:        s.Steps,
		BurnIn:       s.BurnInFraction,
		Thin:         s.Thin,
		Seed:         s.Seed,
		Workers:      c.Workers,
		SkipSampling: s.Skip,
	}
}

func (c *Config) ArrheniusOptions() arrhenius.Options {
	s := c.Arrhenius.SamplingConfig
	return arrhenius.Options{
		Strategy:               optim.Strategy(s.Strategy),
		MaxRetries:             s.MaxRetries,
		Walkers:                s.Walkers,
		Steps:                  s.Steps,
		BurnIn:                 s.BurnInFraction,
		Thin:                   s.Thin,
		Seed:                   s.Seed,
		Workers:                c.Workers,
		Mode:                   arrhenius.Mode(c.Arrhenius.Mode),
		Correlated:             c.Arrhenius.Correlated,
		UnaccountedUncertainty: c.Arrhenius.UnaccountedUncertainty,
		SkipSampling:           s.Skip,
	}
}

func (c *Config) Brownian() *synth.Brownian {
	b := synth.NewBrownian(c.Simulation.D, c.Simulation.Dims)
	b.Particles = c.Simulation.Particles
	b.Frames = c.Simulation.Frames
	b.TimeStep = c.Simulation.TimeStep
	b.StepSkip = c.Simulation.StepSkip
	return b
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
