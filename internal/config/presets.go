package config

import "sort"

// Demo presets for trying the optimizer without writing a run file.
var presets = map[string]func() *Config{
	"lj-dimer": func() *Config {
		cfg := Default()
		cfg.Name = "lj-dimer"
		cfg.Geometry.Atoms = []Atom{
			{Symbol: "Ar", Position: []float64{0, 0, 0}},
			{Symbol: "Ar", Position: []float64{0, 0, 1.6}},
		}
		cfg.Fragments = [][]int{{0}, {1}}
		cfg.Calculator = Variant{Name: "lj", Settings: map[string]any{"epsilon": 1.0, "sigma": 1.0}}
		return cfg
	},
	"trapped-water": func() *Config {
		cfg := Default()
		cfg.Name = "trapped-water"
		cfg.Geometry.Atoms = []Atom{
			{Symbol: "O", Position: []float64{2.0, 0.5, 0}},
			{Symbol: "H", Position: []float64{2.96, 0.5, 0}},
			{Symbol: "H", Position: []float64{1.76, 1.43, 0}},
		}
		cfg.Fragments = [][]int{{0, 1, 2}}
		cfg.Calculator = Variant{Name: "harmonic", Settings: map[string]any{"k": 0.5}}
		return cfg
	},
}

// Preset returns a copy of the named demo configuration, or nil when
// the name is unknown.
func Preset(name string) *Config {
	fn, ok := presets[name]
	if !ok {
		return nil
	}
	return fn()
}

// Presets lists the available demo configuration names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
