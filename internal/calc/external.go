package calc

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/structure"
)

// External drives an arbitrary force/energy program. Each evaluation
// writes the current geometry as geom.xyz into Dir, invokes the command
// with the geometry path appended to Args, and parses its stdout.
//
// Expected output format, one evaluation per run:
//
//	energy= <float>          total energy in eV
//	forces:
//	<fx> <fy> <fz>           one line per atom, eV/Angstrom, atom order
//	...
//
// A line starting with "error:" marks a failed or non-convergent
// calculation. All failures surface as CalculatorError and are retried
// by the optimizer's retry policy.
type External struct {
	Command string
	Args    []string
	Dir     string
}

func NewExternal(command string, args []string, dir string) *External {
	return &External{Command: command, Args: args, Dir: dir}
}

func (e *External) Name() string { return "external:" + e.Command }

func (e *External) Compute(ctx context.Context, s *structure.Structure) (Result, error) {
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	geom := filepath.Join(dir, "geom.xyz")
	f, err := os.Create(geom)
	if err != nil {
		return Result{}, &CalculatorError{Calculator: e.Name(), Wrapped: err}
	}
	if err := structure.WriteXYZ(f, s, s.Name); err != nil {
		f.Close()
		return Result{}, &CalculatorError{Calculator: e.Name(), Wrapped: err}
	}
	f.Close()

	cmd := exec.CommandContext(ctx, e.Command, append(append([]string{}, e.Args...), geom)...)
	cmd.Dir = dir
	var out, errbuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errbuf
	if err := cmd.Run(); err != nil {
		return Result{}, &CalculatorError{Calculator: e.Name(), Wrapped: err}
	}

	res, err := parseOutput(&out, s.NumAtoms())
	if err != nil {
		return Result{}, &CalculatorError{Calculator: e.Name(), Wrapped: err}
	}
	return res, nil
}

// parseOutput reads an external calculator's report for natoms atoms.
func parseOutput(r io.Reader, natoms int) (Result, error) {
	sc := bufio.NewScanner(r)
	res := Result{}
	haveEnergy := false
	blank := true

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		blank = false
		switch {
		case strings.HasPrefix(line, "error:"):
			return Result{}, ErrNotConverged
		case strings.HasPrefix(line, "energy="):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "energy=")), 64)
			if err != nil {
				return Result{}, ErrNoEnergy
			}
			res.Energy = v
			haveEnergy = true
		case line == "forces:":
			for i := 0; i < natoms; i++ {
				if !sc.Scan() {
					return Result{}, ErrNoForces
				}
				fields := strings.Fields(sc.Text())
				if len(fields) < 3 {
					return Result{}, ErrNoForces
				}
				var v r3.Vec
				for k, dst := range []*float64{&v.X, &v.Y, &v.Z} {
					x, err := strconv.ParseFloat(fields[k], 64)
					if err != nil {
						return Result{}, ErrNoForces
					}
					*dst = x
				}
				res.Forces = append(res.Forces, v)
			}
		}
	}
	if blank {
		return Result{}, ErrBlankOutput
	}
	if !haveEnergy {
		return Result{}, ErrNoEnergy
	}
	if len(res.Forces) != natoms {
		return Result{}, ErrNoForces
	}
	return res, nil
}
