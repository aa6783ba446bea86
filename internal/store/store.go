// Package store persists finished optimization runs: metadata, the
// full optimization history as JSON, an XYZ trajectory for
// visualization tooling, and a CSV energy table.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cgaigner/rigid/internal/opt"
	"github.com/cgaigner/rigid/internal/structure"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata summarizes one persisted run.
type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	State      string             `json:"state"`
	Iterations int                `json:"iterations"`
	Calculator string             `json:"calculator"`
	Policy     string             `json:"policy"`
	Criterion  string             `json:"criterion"`
	Metrics    map[string]float64 `json:"metrics"`
}

// StepRecord is the serialized form of one optimization step. After is
// omitted for rejected steps.
type StepRecord struct {
	Energy    float64      `json:"energy"`
	Positions [][3]float64 `json:"positions"`
	Forces    [][3]float64 `json:"forces"`
	After     [][3]float64 `json:"after,omitempty"`
}

// HistoryData is the persisted optimization history.
type HistoryData struct {
	Symbols []string     `json:"symbols"`
	Steps   []StepRecord `json:"steps"`
}

// Save writes one run under a fresh run directory and returns its ID.
func (s *Store) Save(name, calculator, policy, criterion string, result *opt.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Name:       name,
		Timestamp:  time.Now(),
		State:      result.State.String(),
		Iterations: result.Iterations,
		Calculator: calculator,
		Policy:     policy,
		Criterion:  criterion,
		Metrics:    result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "history.json"), historyData(result.History)); err != nil {
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, "trajectory.xyz"), result); err != nil {
		return "", err
	}
	if err := writeEnergies(filepath.Join(runDir, "energies.csv"), result.History); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns the metadata of all persisted runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, e.Name(), "metadata.json"), &meta); err != nil {
			continue // stray directory, not a run
		}
		runs = append(runs, meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// LoadHistory reads a persisted optimization history back.
func (s *Store) LoadHistory(runID string) (*HistoryData, error) {
	var h HistoryData
	if err := readJSON(filepath.Join(s.baseDir, runID, "history.json"), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// LoadMetadata reads one run's metadata.
func (s *Store) LoadMetadata(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, "metadata.json"), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func historyData(h opt.History) HistoryData {
	data := HistoryData{Steps: make([]StepRecord, 0, h.Len())}
	if h.Len() > 0 {
		for _, a := range h[0].Before.Atoms {
			data.Symbols = append(data.Symbols, a.Symbol)
		}
	}
	for _, step := range h {
		rec := StepRecord{
			Energy:    step.Energy,
			Positions: triples(step.Before.Positions()),
			Forces:    triples(step.Forces),
		}
		if step.After != nil {
			rec.After = triples(step.After.Positions())
		}
		data.Steps = append(data.Steps, rec)
	}
	return data
}

func triples(vs []r3.Vec) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = [3]float64{v.X, v.Y, v.Z}
	}
	return out
}

func writeTrajectory(path string, result *opt.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for i, step := range result.History {
		comment := fmt.Sprintf("step %d energy %.8f eV", i, step.Energy)
		if err := structure.WriteXYZ(f, step.Before, comment); err != nil {
			return err
		}
	}
	return nil
}

func writeEnergies(path string, h opt.History) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"iteration", "energy", "max_force"}); err != nil {
		return err
	}
	for i, step := range h {
		rec := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(step.Energy, 'g', 12, 64),
			strconv.FormatFloat(step.MaxForce(), 'g', 12, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
