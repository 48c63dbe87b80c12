package experiment_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/diffusim/internal/config"
	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/experiment"
	"github.com/san-kum/diffusim/internal/logging"
)

func quickConfig() *config.Config {
	cfg := config.GetPreset("quick")
	cfg.Covariance.Seed = 7
	cfg.Regression.Steps = 300
	cfg.Arrhenius.Steps = 300
	cfg.Arrhenius.Walkers = 16
	return cfg
}

var _ = Describe("Registry", func() {
	reg := experiment.NewRegistry()

	It("lists the MSD and Arrhenius models", func() {
		Expect(reg.ListModels()).To(Equal([]string{"msd", "msd-offset"}))
		Expect(reg.ListArrhenius()).To(Equal([]string{"arrhenius", "arrhenius-log", "super-arrhenius"}))
	})

	It("builds models for the requested dimensionality", func() {
		m, err := reg.GetModel("msd", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Name).To(Equal("msd-3d"))
		Expect(m.Func(1, []float64{0.5})).To(BeNumerically("~", 3.0, 1e-12))
	})

	It("rejects unknown names", func() {
		_, err := reg.GetModel("cubic", 1)
		Expect(err).To(HaveOccurred())
		_, err = reg.GetArrhenius("eyring")
		Expect(err).To(HaveOccurred())
	})

	It("hands out fresh metrics", func() {
		a, b := reg.DefaultMetrics(), reg.DefaultMetrics()
		Expect(a).To(HaveLen(2))
		Expect(a[0]).NotTo(BeIdenticalTo(b[0]))
	})
})

var _ = Describe("Experiment", func() {
	var (
		cfg *config.Config
		sc  experiment.StudyConfig
	)

	BeforeEach(func() {
		cfg = quickConfig()
		var err error
		sc, err = experiment.FromConfig(cfg, experiment.NewRegistry(), cfg.Simulation.Dims)
		Expect(err).NotTo(HaveOccurred())
	})

	It("recovers D from a simulated random walk", func() {
		conds := experiment.SimulatedConditions(cfg)
		Expect(conds).To(HaveLen(1))

		out, err := experiment.New(sc.Experiment, experiment.WithLogger(logging.Discard())).Run(context.Background(), conds[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Bundle.Len()).To(Equal(10))
		Expect(out.Report.Dropped).To(BeEmpty())

		d, ok := out.Result.Distribution("D")
		Expect(ok).To(BeTrue())
		Expect(d.Median()).To(BeNumerically("~", cfg.Simulation.D, 0.3*cfg.Simulation.D))
		Expect(out.Result.Diagnostics().Metrics).To(HaveKey("mean_log_prob"))
	})

	It("honours the seed of every stage", func() {
		run := func(c *config.Config) *experiment.Outcome {
			sc, err := experiment.FromConfig(c, experiment.NewRegistry(), c.Simulation.Dims)
			Expect(err).NotTo(HaveOccurred())
			out, err := experiment.New(sc.Experiment, experiment.WithLogger(logging.Discard())).Run(context.Background(), experiment.SimulatedConditions(c)[0])
			Expect(err).NotTo(HaveOccurred())
			return out
		}
		samplesOf := func(o *experiment.Outcome) []float64 {
			d, ok := o.Result.Distribution("D")
			Expect(ok).To(BeTrue())
			return d.Samples()
		}
		base := run(cfg)
		Expect(base.Bundle.Seed).To(Equal(cfg.Covariance.Seed))

		reseeded := quickConfig()
		reseeded.Regression.Seed = cfg.Regression.Seed + 1
		byRegression := run(reseeded)
		Expect(byRegression.Bundle.Mean).To(Equal(base.Bundle.Mean))
		Expect(byRegression.Bundle.Cov.RawSymmetric().Data).To(Equal(base.Bundle.Cov.RawSymmetric().Data))
		Expect(samplesOf(byRegression)).NotTo(Equal(samplesOf(base)))

		resimulated := quickConfig()
		resimulated.Simulation.Seed = cfg.Simulation.Seed + 1
		bySimulation := run(resimulated)
		Expect(bySimulation.Bundle.Mean).NotTo(Equal(base.Bundle.Mean))
	})

	It("fails for a condition without data", func() {
		_, err := experiment.New(sc.Experiment).Run(context.Background(), experiment.Condition{Name: "empty"})
		Expect(errors.Is(err, diffusion.ErrInvalidOption)).To(BeTrue())
	})
})

var _ = Describe("Study", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = quickConfig()
		cfg.Simulation.Temperatures = []float64{500, 600, 700, 800}
		cfg.Simulation.Particles = 30
	})

	run := func(workers int) *experiment.StudyResult {
		cfg.Workers = workers
		sc, err := experiment.FromConfig(cfg, experiment.NewRegistry(), cfg.Simulation.Dims)
		Expect(err).NotTo(HaveOccurred())
		res, err := experiment.NewStudy(sc, logging.Discard()).Run(context.Background(), experiment.SimulatedConditions(cfg))
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	It("fits the temperature dependence across conditions", func() {
		res := run(2)
		Expect(res.Outcomes).To(HaveLen(4))
		for i, o := range res.Outcomes {
			Expect(o.Condition.Temperature).To(Equal(cfg.Simulation.Temperatures[i]))
			Expect(o.Bundle.Seed).To(Equal(cfg.Covariance.Seed + int64(i)))
		}
		Expect(res.Arrhenius).NotTo(BeNil())

		ea, ok := res.Arrhenius.Distribution("Ea")
		Expect(ok).To(BeTrue())
		Expect(ea.Median()).To(BeNumerically("~", cfg.Simulation.ActivationEnergy, 0.1))
	})

	It("is independent of the worker count", func() {
		a := run(1)
		b := run(4)
		for i := range a.Outcomes {
			da, _ := a.Outcomes[i].Result.Distribution("D")
			db, _ := b.Outcomes[i].Result.Distribution("D")
			Expect(da.Samples()).To(Equal(db.Samples()))
		}
	})

	It("reports progress for every condition and the Arrhenius fit", func() {
		sc, err := experiment.FromConfig(cfg, experiment.NewRegistry(), cfg.Simulation.Dims)
		Expect(err).NotTo(HaveOccurred())

		var mu sync.Mutex
		seen := map[int]bool{}
		sc.Progress = func(condition, done, total int) {
			mu.Lock()
			seen[condition] = true
			mu.Unlock()
		}
		_, err = experiment.NewStudy(sc, logging.Discard()).Run(context.Background(), experiment.SimulatedConditions(cfg))
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(HaveLen(5))
	})

	It("skips the Arrhenius fit without temperatures", func() {
		cfg.Simulation.Temperatures = nil
		res := run(1)
		Expect(res.Outcomes).To(HaveLen(1))
		Expect(res.Arrhenius).To(BeNil())
	})

	It("stops on the first failing condition", func() {
		sc, err := experiment.FromConfig(cfg, experiment.NewRegistry(), cfg.Simulation.Dims)
		Expect(err).NotTo(HaveOccurred())
		conds := experiment.SimulatedConditions(cfg)
		conds[2].Simulate = nil

		_, err = experiment.NewStudy(sc, logging.Discard()).Run(context.Background(), conds)
		Expect(err).To(MatchError(ContainSubstring("700K")))
	})

	It("rejects an empty study", func() {
		_, err := experiment.NewStudy(experiment.StudyConfig{}, nil).Run(context.Background(), nil)
		Expect(err).To(HaveOccurred())
	})
})
