package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/diffusim/internal/arrhenius"
	"github.com/san-kum/diffusim/internal/fit"
	"golang.org/x/sync/errgroup"
)

type StudyConfig struct {
	Experiment Config
	Arrhenius  arrhenius.Options
	// ArrheniusModel is fitted across conditions when at least two carry a
	// temperature. A zero model selects arrhenius.Standard.
	ArrheniusModel arrhenius.Model
	SkipArrhenius  bool
	// Workers bounds the conditions processed at once.
	Workers int
	// Progress reports MCMC progress per condition index. The Arrhenius
	// fit reports as index len(conditions).
	Progress func(condition, done, total int)
}

type StudyResult struct {
	Outcomes  []*Outcome
	Arrhenius *fit.Result
}

type Study struct {
	cfg StudyConfig
	log *slog.Logger
}

func NewStudy(cfg StudyConfig, log *slog.Logger) *Study {
	if log == nil {
		log = slog.Default()
	}
	return &Study{cfg: cfg, log: log}
}

// Run processes every condition concurrently, offsetting every stage seed
// of condition i by i, then fits the temperature dependence of D. Outcomes keep the
// order of conditions.
func (s *Study) Run(ctx context.Context, conditions []Condition) (*StudyResult, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("study: no conditions")
	}

	outcomes := make([]*Outcome, len(conditions))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}
	for i, c := range conditions {
		cfg := s.cfg.Experiment
		cfg.SimulationSeed += int64(i)
		cfg.Covariance.Seed += int64(i)
		cfg.Regression.Seed += int64(i)
		if s.cfg.Progress != nil {
			cfg.Regression.Progress = func(done, total int) {
				s.cfg.Progress(i, done, total)
			}
		}
		g.Go(func() error {
			out, err := New(cfg, WithLogger(s.log)).Run(gctx, c)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &StudyResult{Outcomes: outcomes}
	if s.cfg.SkipArrhenius {
		return res, nil
	}
	obs := Observations(outcomes)
	if len(obs) < 2 {
		s.log.Debug("skipping arrhenius fit", "temperatures", len(obs))
		return res, nil
	}

	opts := s.cfg.Arrhenius
	if s.cfg.Progress != nil {
		opts.Progress = func(done, total int) {
			s.cfg.Progress(len(conditions), done, total)
		}
	}
	arr, err := arrhenius.New(opts, arrhenius.WithLogger(s.log)).Fit(ctx, obs, s.cfg.ArrheniusModel)
	if err != nil {
		return nil, fmt.Errorf("study: %w", err)
	}
	res.Arrhenius = arr
	return res, nil
}

// Observations pairs each outcome's temperature with its posterior D.
// Outcomes without a temperature or a sampled posterior are skipped.
func Observations(outcomes []*Outcome) []arrhenius.Observation {
	obs := make([]arrhenius.Observation, 0, len(outcomes))
	for _, o := range outcomes {
		if o == nil || o.Condition.Temperature <= 0 {
			continue
		}
		d, ok := o.Result.Distribution("D")
		if !ok {
			continue
		}
		obs = append(obs, arrhenius.Observation{X: arrhenius.Point(o.Condition.Temperature), Y: d})
	}
	return obs
}
