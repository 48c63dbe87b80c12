package config

// Presets trade run time against statistical resolution.
var Presets = map[string]func() *Config{
	"quick": func() *Config {
		c := DefaultConfig()
		c.Covariance.Resamples = 200
		c.Regression.Steps = 400
		c.Arrhenius.Steps = 400
		c.Simulation.Particles = 20
		c.Simulation.Frames = 301
		return c
	},
	"default": DefaultConfig,
	"thorough": func() *Config {
		c := DefaultConfig()
		c.Covariance.Resamples = 5000
		c.Regression.Walkers = 64
		c.Regression.Steps = 5000
		c.Arrhenius.Walkers = 64
		c.Arrhenius.Steps = 5000
		c.Simulation.Particles = 200
		c.Simulation.Frames = 5001
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	return sortedKeys(Presets)
}
