package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/san-kum/diffusim/internal/arrhenius"
	"github.com/san-kum/diffusim/internal/config"
	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/distribution"
	"github.com/san-kum/diffusim/internal/experiment"
	"github.com/san-kum/diffusim/internal/fit"
	"github.com/san-kum/diffusim/internal/storage"
	"github.com/san-kum/diffusim/internal/synth"
	"github.com/san-kum/diffusim/internal/viz"
	"github.com/spf13/cobra"
)

// defaultTemperatures are used by arrhenius --synthetic when the config
// lists none.
var defaultTemperatures = []float64{500, 550, 600, 650, 700, 750, 800}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	return st, st.Init()
}

func simulate(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := openStore()
	if err != nil {
		return err
	}

	b := cfg.Brownian()
	start := time.Now()
	traj, err := b.Generate(cfg.Simulation.Seed, cfg.Workers)
	if err != nil {
		return err
	}
	runID, err := st.SaveTrajectoryRun(storage.RunMetadata{
		Model:  fmt.Sprintf("brownian-%dd", b.Dims),
		Seed:   cfg.Simulation.Seed,
		Source: fmt.Sprintf("D=%g", b.D),
	}, traj)
	if err != nil {
		return err
	}

	fmt.Printf("simulated %d particles x %d frames in %v\n", traj.Particles(), traj.Frames(), time.Since(start).Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	return nil
}

// trajectoryFor resolves the msd argument: a stored trajectory run, a CSV
// file, or nothing for a fresh simulation.
func trajectoryFor(st *storage.Store, cfg *config.Config, args []string) (experiment.Condition, string, error) {
	cond := experiment.Condition{Temperature: temperature}
	if len(args) == 0 {
		cond.Name = fmt.Sprintf("D=%g", cfg.Simulation.D)
		cond.Simulate = cfg.Brownian()
		return cond, "simulation " + cond.Name, nil
	}

	cond.Name = args[0]
	if traj, _, err := st.LoadTrajectoryRun(args[0]); err == nil {
		cond.Trajectory = traj
		return cond, "run " + args[0], nil
	}
	traj, err := storage.LoadTrajectory(args[0], cfg.Simulation.TimeStep, cfg.Simulation.StepSkip)
	if err != nil {
		return cond, "", err
	}
	cond.Trajectory = traj
	return cond, args[0], nil
}

func runMSD(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := openStore()
	if err != nil {
		return err
	}
	cond, source, err := trajectoryFor(st, cfg, args)
	if err != nil {
		return err
	}
	dimsOf := cfg.Simulation.Dims
	if cond.Trajectory != nil {
		dimsOf = cond.Trajectory.Dims()
	}

	sc, err := experiment.FromConfig(cfg, experiment.NewRegistry(), dimsOf)
	if err != nil {
		return err
	}
	exp := sc.Experiment

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var out *experiment.Outcome
	err = withProgress(ctx, []string{cond.Name}, func(ctx context.Context, report func(i, done, total int)) error {
		exp.Regression.Progress = func(done, total int) { report(0, done, total) }
		var err error
		out, err = experiment.New(exp).Run(ctx, cond)
		return err
	})
	if err != nil {
		return err
	}

	meta := storage.NewRunMetadata(storage.KindMSD, out.Bundle.Seed, out.Result, out.Bundle)
	meta.Temperature = cond.Temperature
	meta.Source = source
	runID, err := st.Save(meta, out.Result)
	if err != nil {
		return err
	}
	for _, d := range out.Report.Dropped {
		fmt.Println(viz.Warn.Render("dropped: " + d.Error()))
	}
	return printRun(st, runID)
}

func runArrhenius(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := openStore()
	if err != nil {
		return err
	}

	var obs []arrhenius.Observation
	var source string
	switch {
	case synthetic:
		obs, err = syntheticObservations(cfg)
		source = "synthetic"
	case len(args) > 0:
		obs, err = storedObservations(st, args)
		source = fmt.Sprintf("%d msd runs", len(args))
	default:
		return errors.New("give msd run ids or --synthetic")
	}
	if err != nil {
		return err
	}

	m, err := experiment.NewRegistry().GetArrhenius(cfg.Arrhenius.Model)
	if err != nil {
		return err
	}
	opts := cfg.ArrheniusOptions()
	opts.Metrics = experiment.NewRegistry().DefaultMetrics

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result *fit.Result
	err = withProgress(ctx, []string{m.Name}, func(ctx context.Context, report func(i, done, total int)) error {
		opts.Progress = func(done, total int) { report(0, done, total) }
		var err error
		result, err = arrhenius.New(opts).Fit(ctx, obs, m)
		return err
	})
	if err != nil {
		return err
	}

	meta := storage.NewRunMetadata(storage.KindArrhenius, opts.Seed, result, nil)
	meta.Source = source
	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}
	return printRun(st, runID)
}

func syntheticObservations(cfg *config.Config) ([]arrhenius.Observation, error) {
	temps := cfg.Simulation.Temperatures
	if len(temps) == 0 {
		temps = defaultTemperatures
	}
	dists, err := synth.ArrheniusSeries(temps, cfg.Simulation.ActivationEnergy, cfg.Simulation.Prefactor, 0.05, 1000, cfg.Simulation.Seed)
	if err != nil {
		return nil, err
	}
	obs := make([]arrhenius.Observation, len(temps))
	for i, t := range temps {
		obs[i] = arrhenius.Observation{X: arrhenius.Point(t), Y: dists[i]}
	}
	return obs, nil
}

func storedObservations(st *storage.Store, ids []string) ([]arrhenius.Observation, error) {
	obs := make([]arrhenius.Observation, 0, len(ids))
	for _, id := range ids {
		meta, err := st.Load(id)
		if err != nil {
			return nil, err
		}
		if meta.Kind != storage.KindMSD || meta.Temperature <= 0 {
			return nil, fmt.Errorf("%w: %s is not an msd run with a temperature", diffusion.ErrInvalidOption, id)
		}
		names, cols, err := st.LoadSamples(id)
		if err != nil {
			return nil, err
		}
		col := -1
		for i, n := range names {
			if n == "D" {
				col = i
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("%s: no D samples", id)
		}
		d, err := distribution.New(fmt.Sprintf("D(%gK)", meta.Temperature), cols[col])
		if err != nil {
			return nil, err
		}
		obs = append(obs, arrhenius.Observation{X: arrhenius.Point(meta.Temperature), Y: d})
	}
	return obs, nil
}

func runStudy(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(cfg.Simulation.Temperatures) == 0 {
		cfg.Simulation.Temperatures = defaultTemperatures
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	sc, err := experiment.FromConfig(cfg, reg, cfg.Simulation.Dims)
	if err != nil {
		return err
	}
	conds := experiment.SimulatedConditions(cfg)
	names := make([]string, 0, len(conds)+1)
	for _, c := range conds {
		names = append(names, c.Name)
	}
	names = append(names, sc.ArrheniusModel.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var res *experiment.StudyResult
	err = withProgress(ctx, names, func(ctx context.Context, report func(i, done, total int)) error {
		sc.Progress = report
		var err error
		res, err = experiment.NewStudy(sc, slog.Default()).Run(ctx, conds)
		return err
	})
	if err != nil {
		return err
	}

	for _, o := range res.Outcomes {
		meta := storage.NewRunMetadata(storage.KindMSD, o.Bundle.Seed, o.Result, o.Bundle)
		meta.Temperature = o.Condition.Temperature
		meta.Source = "study " + o.Condition.Name
		id, err := st.Save(meta, o.Result)
		if err != nil {
			return err
		}
		fmt.Printf("%-8s %s", o.Condition.Name, viz.Subtle.Render(id))
		for _, d := range o.Result.Distributions() {
			fmt.Printf("  %s", d)
		}
		fmt.Println()
	}
	if res.Arrhenius == nil {
		return nil
	}
	meta := storage.NewRunMetadata(storage.KindArrhenius, sc.Arrhenius.Seed, res.Arrhenius, nil)
	meta.Source = "study"
	runID, err := st.Save(meta, res.Arrhenius)
	if err != nil {
		return err
	}
	fmt.Println()
	return printRun(st, runID)
}

// withProgress runs work behind the progress view when attached to a
// terminal, and directly otherwise.
func withProgress(ctx context.Context, names []string, work func(ctx context.Context, report func(i, done, total int)) error) error {
	if !interactive() {
		return work(ctx, func(int, int, int) {})
	}
	return viz.RunProgress(ctx, names, os.Stderr, os.Stdin, work)
}
