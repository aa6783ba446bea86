// Package registry maps string identifiers to calculator, step-policy
// and convergence-criterion factories, so run configurations can select
// variants by name. Unknown names and unknown settings keys fail fast
// with a ConfigurationError naming the valid set.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/calc"
	"github.com/cgaigner/rigid/internal/convergence"
	"github.com/cgaigner/rigid/internal/opt"
)

// Settings is the keyword-settings mapping forwarded to a variant's
// factory. Values are numbers for tunables and strings for paths and
// commands.
type Settings map[string]any

// ConfigurationError reports an unknown variant name or settings key.
type ConfigurationError struct {
	Kind  string // "calculator", "policy", "criterion", or "<name> setting"
	Name  string
	Valid []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown %s %q (valid: %s)", e.Kind, e.Name, strings.Join(e.Valid, ", "))
}

type (
	calcFactory      func(Settings) (calc.Calculator, error)
	policyFactory    func(Settings) (opt.Policy, error)
	criterionFactory func(Settings) (opt.Criterion, error)
)

// Registry holds the named variants. New returns one with all builtin
// variants registered.
type Registry struct {
	calculators map[string]calcFactory
	policies    map[string]policyFactory
	criteria    map[string]criterionFactory
}

func New() *Registry {
	r := &Registry{
		calculators: make(map[string]calcFactory),
		policies:    make(map[string]policyFactory),
		criteria:    make(map[string]criterionFactory),
	}

	r.calculators["lj"] = func(s Settings) (calc.Calculator, error) {
		if err := checkKeys("lj", s, "epsilon", "sigma"); err != nil {
			return nil, err
		}
		return calc.NewLennardJones(floatSetting(s, "epsilon", 1.0), floatSetting(s, "sigma", 1.0)), nil
	}
	r.calculators["harmonic"] = func(s Settings) (calc.Calculator, error) {
		if err := checkKeys("harmonic", s, "k", "x", "y", "z"); err != nil {
			return nil, err
		}
		center := r3.Vec{
			X: floatSetting(s, "x", 0),
			Y: floatSetting(s, "y", 0),
			Z: floatSetting(s, "z", 0),
		}
		return calc.NewHarmonic(floatSetting(s, "k", 1.0), center), nil
	}
	r.calculators["external"] = func(s Settings) (calc.Calculator, error) {
		if err := checkKeys("external", s, "command", "args", "dir"); err != nil {
			return nil, err
		}
		command := stringSetting(s, "command", "")
		if command == "" {
			return nil, fmt.Errorf("external calculator needs a command setting")
		}
		var args []string
		if raw := stringSetting(s, "args", ""); raw != "" {
			args = strings.Fields(raw)
		}
		return calc.NewExternal(command, args, stringSetting(s, "dir", "")), nil
	}

	r.policies["gdwas"] = func(s Settings) (opt.Policy, error) {
		if err := checkKeys("gdwas", s, "trans_step", "rot_step", "shrink", "grow", "grow_after", "max_trans_step", "max_rot_step"); err != nil {
			return nil, err
		}
		g := opt.NewGDWAS()
		g.TransStep = floatSetting(s, "trans_step", g.TransStep)
		g.RotStep = floatSetting(s, "rot_step", g.RotStep)
		g.Shrink = floatSetting(s, "shrink", g.Shrink)
		g.Grow = floatSetting(s, "grow", g.Grow)
		g.GrowAfter = int(floatSetting(s, "grow_after", float64(g.GrowAfter)))
		g.MaxTransStep = floatSetting(s, "max_trans_step", 10*g.TransStep)
		g.MaxRotStep = floatSetting(s, "max_rot_step", 10*g.RotStep)
		return g, nil
	}
	r.policies["fixed"] = func(s Settings) (opt.Policy, error) {
		if err := checkKeys("fixed", s, "trans_step", "rot_step"); err != nil {
			return nil, err
		}
		return &opt.Fixed{
			TransStep: floatSetting(s, "trans_step", 0.01),
			RotStep:   floatSetting(s, "rot_step", 0.01),
		}, nil
	}

	r.criteria["displacement"] = func(s Settings) (opt.Criterion, error) {
		if err := checkKeys("displacement", s, "threshold"); err != nil {
			return nil, err
		}
		return convergence.NewDisplacement(floatSetting(s, "threshold", 1e-3)), nil
	}
	r.criteria["maxforce"] = func(s Settings) (opt.Criterion, error) {
		if err := checkKeys("maxforce", s, "threshold"); err != nil {
			return nil, err
		}
		return convergence.NewMaxForce(floatSetting(s, "threshold", 1e-2)), nil
	}

	return r
}

func (r *Registry) Calculator(name string, s Settings) (calc.Calculator, error) {
	fn, ok := r.calculators[name]
	if !ok {
		return nil, &ConfigurationError{Kind: "calculator", Name: name, Valid: keys(r.calculators)}
	}
	return fn(s)
}

func (r *Registry) Policy(name string, s Settings) (opt.Policy, error) {
	fn, ok := r.policies[name]
	if !ok {
		return nil, &ConfigurationError{Kind: "policy", Name: name, Valid: keys(r.policies)}
	}
	return fn(s)
}

func (r *Registry) Criterion(name string, s Settings) (opt.Criterion, error) {
	fn, ok := r.criteria[name]
	if !ok {
		return nil, &ConfigurationError{Kind: "criterion", Name: name, Valid: keys(r.criteria)}
	}
	return fn(s)
}

func (r *Registry) Calculators() []string { return keys(r.calculators) }
func (r *Registry) Policies() []string    { return keys(r.policies) }
func (r *Registry) Criteria() []string    { return keys(r.criteria) }

func keys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkKeys(variant string, s Settings, valid ...string) error {
	for key := range s {
		ok := false
		for _, v := range valid {
			if key == v {
				ok = true
				break
			}
		}
		if !ok {
			return &ConfigurationError{Kind: variant + " setting", Name: key, Valid: valid}
		}
	}
	return nil
}

func floatSetting(s Settings, key string, def float64) float64 {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func stringSetting(s Settings, key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}
