package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/san-kum/diffusim/internal/config"
	"github.com/san-kum/diffusim/internal/logging"
	"github.com/san-kum/diffusim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFile    string
	theme      string
	workers    int
	seed       int64
	// Simulation
	diffCoeff float64
	dims      int
	particles int
	frames    int
	timeStep  float64
	// Pipeline
	specie      string
	temperature float64
	model       string
	resamples   int
	scheme      string
	steps       int
	noProgress  bool
	// Arrhenius
	synthetic  bool
	mode       string
	correlated bool
	// Export
	outFile string
	svgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "diffusim",
		Short:         "diffusion coefficients from correlated mean squared displacements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".diffusim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "preset configuration (see presets)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "rotating log file (default stderr)")
	pf.StringVar(&theme, "theme", "cyberpunk", "colour theme (see presets)")
	pf.IntVar(&workers, "workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	pf.Int64Var(&seed, "seed", 0, "random seed")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "simulate a Brownian trajectory into a run",
		Args:  cobra.NoArgs,
		RunE:  simulate,
	}
	addSimulationFlags(simulateCmd)

	msdCmd := &cobra.Command{
		Use:   "msd [trajectory.csv | run_id]",
		Short: "estimate D from a trajectory, or from a fresh simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMSD,
	}
	addSimulationFlags(msdCmd)
	addPipelineFlags(msdCmd)
	msdCmd.Flags().StringVar(&specie, "specie", "", "only analyse particles of this specie")
	msdCmd.Flags().Float64Var(&temperature, "temperature", 0, "temperature of the trajectory in K")

	arrheniusCmd := &cobra.Command{
		Use:   "arrhenius [run_id...]",
		Short: "fit the temperature dependence of D across msd runs",
		RunE:  runArrhenius,
	}
	arrheniusCmd.Flags().BoolVar(&synthetic, "synthetic", false, "fit synthetic distributions from the simulation config")
	arrheniusCmd.Flags().StringVar(&model, "model", "", "arrhenius model")
	arrheniusCmd.Flags().StringVar(&mode, "mode", "", "likelihood: empirical or gaussian")
	arrheniusCmd.Flags().BoolVar(&correlated, "correlated", false, "draw one shared sample index per generation")
	arrheniusCmd.Flags().IntVar(&steps, "steps", 0, "MCMC steps")
	arrheniusCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress view")

	studyCmd := &cobra.Command{
		Use:   "study",
		Short: "simulate every configured temperature and fit D(T)",
		Args:  cobra.NoArgs,
		RunE:  runStudy,
	}
	addSimulationFlags(studyCmd)
	addPipelineFlags(studyCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run with its MSD curve and posteriors",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&svgFile, "svg", "", "also write the MSD plot as SVG")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				fmt.Printf("  %-10s resamples=%d steps=%d particles=%d frames=%d\n",
					p, cfg.Covariance.Resamples, cfg.Regression.Steps, cfg.Simulation.Particles, cfg.Simulation.Frames)
			}
			fmt.Printf("\nthemes: %s\n", strings.Join(viz.ThemeNames(), ", "))
			return nil
		},
	}

	rootCmd.AddCommand(simulateCmd, msdCmd, arrheniusCmd, studyCmd, listCmd, showCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.Bad.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&diffCoeff, "d", 0, "diffusion coefficient of the simulated walk")
	cmd.Flags().IntVar(&dims, "dims", 0, "spatial dimensions")
	cmd.Flags().IntVar(&particles, "particles", 0, "number of particles")
	cmd.Flags().IntVar(&frames, "frames", 0, "number of frames")
	cmd.Flags().Float64Var(&timeStep, "dt", 0, "time step")
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&model, "model", "", "msd model")
	cmd.Flags().IntVar(&resamples, "resamples", 0, "bootstrap resamples")
	cmd.Flags().StringVar(&scheme, "scheme", "", "bootstrap scheme: auto, particles, blocks")
	cmd.Flags().IntVar(&steps, "steps", 0, "MCMC steps")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress view")
}

// loadConfig layers the preset, the config file and the command line, in
// that order, then installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Covariance.Seed = seed
		cfg.Regression.Seed = seed
		cfg.Arrhenius.Seed = seed
		cfg.Simulation.Seed = seed
	}
	if flags.Changed("d") {
		cfg.Simulation.D = diffCoeff
	}
	if flags.Changed("dims") {
		cfg.Simulation.Dims = dims
	}
	if flags.Changed("particles") {
		cfg.Simulation.Particles = particles
	}
	if flags.Changed("frames") {
		cfg.Simulation.Frames = frames
	}
	if flags.Changed("dt") {
		cfg.Simulation.TimeStep = timeStep
	}
	if flags.Changed("specie") {
		cfg.Sampler.Specie = specie
	}
	if flags.Changed("resamples") {
		cfg.Covariance.Resamples = resamples
	}
	if flags.Changed("scheme") {
		cfg.Covariance.Scheme = scheme
	}
	if flags.Changed("steps") {
		cfg.Regression.Steps = steps
		cfg.Arrhenius.Steps = steps
	}
	if flags.Changed("model") {
		if cmd.Name() == "arrhenius" {
			cfg.Arrhenius.Model = model
		} else {
			cfg.Regression.Model = model
		}
	}
	if flags.Changed("mode") {
		cfg.Arrhenius.Mode = mode
	}
	if flags.Changed("correlated") {
		cfg.Arrhenius.Correlated = correlated
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.Filename = logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if err := applyTheme(); err != nil {
		return nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, closer, nil
}

func applyTheme() error {
	if !slices.Contains(viz.ThemeNames(), theme) {
		return fmt.Errorf("unknown theme: %s (available: %v)", theme, viz.ThemeNames())
	}
	viz.SetTheme(theme)
	return nil
}

// interactive reports whether progress views can be drawn.
func interactive() bool {
	return !noProgress && isatty.IsTerminal(os.Stderr.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}
