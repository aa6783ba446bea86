// Package config loads and validates optimization run configurations
// from YAML. Decoding is strict: unknown keys are errors, so typos in a
// run file surface at setup time instead of being silently accepted.
package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/cgaigner/rigid/internal/structure"
)

const (
	DefaultMaxIterations = 200
	DefaultRetries       = 2
	DefaultOutputDir     = ".rigid"
)

// Variant selects a named calculator, policy or criterion together with
// its keyword settings.
type Variant struct {
	Name     string         `yaml:"name"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Atom is one inline geometry entry.
type Atom struct {
	Symbol   string    `yaml:"symbol"`
	Position []float64 `yaml:"position"`
}

// Geometry describes the starting structure: either inline atoms or an
// XYZ file, plus an optional 3x3 unit cell (rows are lattice vectors).
type Geometry struct {
	XYZFile string      `yaml:"xyz_file,omitempty"`
	Atoms   []Atom      `yaml:"atoms,omitempty"`
	Cell    [][]float64 `yaml:"cell,omitempty"`
}

// Config is one optimization run.
type Config struct {
	Name          string   `yaml:"name"`
	Geometry      Geometry `yaml:"geometry"`
	Fragments     [][]int  `yaml:"fragments"`
	Unweighted    bool     `yaml:"unweighted_com,omitempty"`
	Calculator    Variant  `yaml:"calculator"`
	Policy        Variant  `yaml:"policy"`
	Criterion     Variant  `yaml:"criterion"`
	MaxIterations int      `yaml:"max_iterations"`
	Retries       int      `yaml:"retries"`
	OutputDir     string   `yaml:"output_dir"`
}

func Default() *Config {
	return &Config{
		Name:          "run",
		Calculator:    Variant{Name: "lj"},
		Policy:        Variant{Name: "gdwas"},
		Criterion:     Variant{Name: "displacement", Settings: map[string]any{"threshold": 1e-3}},
		MaxIterations: DefaultMaxIterations,
		Retries:       DefaultRetries,
		OutputDir:     DefaultOutputDir,
	}
}

// Load reads a config file, strict about unknown keys, with defaults
// applied for everything the file leaves out.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
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

// BuildStructure constructs the starting structure with its fragments
// from the geometry section.
func (c *Config) BuildStructure() (*structure.Structure, error) {
	s, err := c.buildAtoms()
	if err != nil {
		return nil, err
	}

	if len(c.Geometry.Cell) > 0 {
		if len(c.Geometry.Cell) != 3 {
			return nil, fmt.Errorf("config: cell needs 3 lattice vectors, got %d", len(c.Geometry.Cell))
		}
		var cell [3]r3.Vec
		for i, row := range c.Geometry.Cell {
			if len(row) != 3 {
				return nil, fmt.Errorf("config: cell vector %d has %d components", i, len(row))
			}
			cell[i] = r3.Vec{X: row[0], Y: row[1], Z: row[2]}
		}
		s.Cell = &cell
	}

	var opts []structure.FragmentOption
	if c.Unweighted {
		opts = append(opts, structure.Unweighted())
	}
	for _, indices := range c.Fragments {
		if _, err := s.DefineFragment(indices, opts...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (c *Config) buildAtoms() (*structure.Structure, error) {
	switch {
	case c.Geometry.XYZFile != "" && len(c.Geometry.Atoms) > 0:
		return nil, fmt.Errorf("config: geometry has both xyz_file and inline atoms")
	case c.Geometry.XYZFile != "":
		s, err := structure.ReadXYZFile(c.Geometry.XYZFile)
		if err != nil {
			return nil, err
		}
		s.Name = c.Name
		return s, nil
	case len(c.Geometry.Atoms) > 0:
		symbols := make([]string, len(c.Geometry.Atoms))
		positions := make([]r3.Vec, len(c.Geometry.Atoms))
		for i, a := range c.Geometry.Atoms {
			if len(a.Position) != 3 {
				return nil, fmt.Errorf("config: atom %d position has %d components", i, len(a.Position))
			}
			symbols[i] = a.Symbol
			positions[i] = r3.Vec{X: a.Position[0], Y: a.Position[1], Z: a.Position[2]}
		}
		return structure.NewFromSymbols(c.Name, symbols, positions, nil)
	default:
		return nil, fmt.Errorf("config: geometry is empty")
	}
}
