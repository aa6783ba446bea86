package structure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ReadXYZ parses a structure from XYZ format: an atom count line, a
// comment line, then one "Symbol x y z" line per atom (Angstrom).
func ReadXYZ(r io.Reader, name string) (*Structure, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("xyz: empty input")
	}
	n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, fmt.Errorf("xyz: bad atom count line %q", sc.Text())
	}
	sc.Scan() // comment line
	symbols := make([]string, 0, n)
	positions := make([]r3.Vec, 0, n)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("xyz: expected %d atoms, got %d", n, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			return nil, fmt.Errorf("xyz: malformed atom line %q", sc.Text())
		}
		var p r3.Vec
		for k, dst := range []*float64{&p.X, &p.Y, &p.Z} {
			v, err := strconv.ParseFloat(fields[k+1], 64)
			if err != nil {
				return nil, fmt.Errorf("xyz: bad coordinate %q: %w", fields[k+1], err)
			}
			*dst = v
		}
		symbols = append(symbols, fields[0])
		positions = append(positions, p)
	}
	return NewFromSymbols(name, symbols, positions, nil)
}

// ReadXYZFile reads a structure from an XYZ file, named after the file's
// base name.
func ReadXYZFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadXYZ(f, strings.TrimSuffix(filepath.Base(path), ".xyz"))
}

// WriteXYZ writes one XYZ frame for the structure with the given comment
// line. Repeated calls on the same writer build a multi-frame trajectory.
func WriteXYZ(w io.Writer, s *Structure, comment string) error {
	if _, err := fmt.Fprintf(w, "%d\n%s\n", len(s.Atoms), comment); err != nil {
		return err
	}
	for _, a := range s.Atoms {
		_, err := fmt.Fprintf(w, "%-3s %20.12f %20.12f %20.12f\n",
			a.Symbol, a.Position.X, a.Position.Y, a.Position.Z)
		if err != nil {
			return err
		}
	}
	return nil
}
