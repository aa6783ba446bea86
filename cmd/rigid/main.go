package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/cgaigner/rigid/internal/config"
	"github.com/cgaigner/rigid/internal/opt"
	"github.com/cgaigner/rigid/internal/registry"
	"github.com/cgaigner/rigid/internal/store"
	"github.com/cgaigner/rigid/internal/structure"
	"github.com/cgaigner/rigid/internal/tui"
)

var (
	dataDir string
	preset  string
	live    bool
	maxIter int
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rigid",
		Short: "rigid-fragment geometry optimization",
		Long: `rigid optimizes molecular and crystal structures by treating
user-defined groups of atoms as rigid bodies: per-atom forces from a
calculator are reduced to a net force and torque per fragment, and the
fragments are translated and rotated until convergence.`,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run data directory")

	runCmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "run an optimization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runOptimization,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "run a builtin demo preset instead of a config file")
	runCmd.Flags().BoolVar(&live, "live", false, "show a live terminal view of the run")
	runCmd.Flags().IntVar(&maxIter, "max-iter", 0, "override the configured iteration cap")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-step output")

	initCmd := &cobra.Command{
		Use:   "init [config.yaml]",
		Short: "write a starter config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if preset != "" {
				if cfg = config.Preset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.Presets())
				}
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "base the config on a builtin preset")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	summaryCmd := &cobra.Command{
		Use:   "summary [run_id]",
		Short: "summarize a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  summarizeRun,
	}

	variantsCmd := &cobra.Command{
		Use:   "variants",
		Short: "list available calculators, policies and criteria",
		Run: func(cmd *cobra.Command, args []string) {
			reg := registry.New()
			fmt.Println("calculators:", reg.Calculators())
			fmt.Println("policies:   ", reg.Policies())
			fmt.Println("criteria:   ", reg.Criteria())
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list builtin demo presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.Presets() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, initCmd, listCmd, summaryCmd, variantsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadRunConfig(args []string) (*config.Config, error) {
	if preset != "" {
		cfg := config.Preset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.Presets())
		}
		return cfg, nil
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("a config file or --preset is required")
	}
	return config.Load(args[0])
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(args)
	if err != nil {
		return err
	}
	if maxIter > 0 {
		cfg.MaxIterations = maxIter
	}
	if cmd.Flags().Changed("data") {
		cfg.OutputDir = dataDir
	}

	start, err := cfg.BuildStructure()
	if err != nil {
		return err
	}

	reg := registry.New()
	calculator, err := reg.Calculator(cfg.Calculator.Name, registry.Settings(cfg.Calculator.Settings))
	if err != nil {
		return err
	}
	policy, err := reg.Policy(cfg.Policy.Name, registry.Settings(cfg.Policy.Settings))
	if err != nil {
		return err
	}
	criterion, err := reg.Criterion(cfg.Criterion.Name, registry.Settings(cfg.Criterion.Settings))
	if err != nil {
		return err
	}

	o := opt.New(calculator, criterion, policy)
	o.MaxIterations = cfg.MaxIterations
	o.Retries = cfg.Retries

	var res *opt.Result
	var runErr error
	if live {
		res, runErr = runWithLiveView(o, cfg, start)
	} else {
		if !quiet {
			o.AddObserver(progressObserver{})
		}
		res, runErr = o.Run(context.Background(), start)
	}
	if res == nil {
		return runErr
	}

	st := store.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg.Name, cfg.Calculator.Name, cfg.Policy.Name, cfg.Criterion.Name, res)
	if err != nil {
		return err
	}

	printSummary(res, runID)
	return runErr
}

func runWithLiveView(o *opt.Optimizer, cfg *config.Config, start *structure.Structure) (*opt.Result, error) {
	p := tea.NewProgram(tui.NewModel(cfg.Name))
	monitor := tui.NewMonitor(p)
	o.AddObserver(monitor)

	type outcome struct {
		res *opt.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := o.Run(context.Background(), start)
		state := "failed"
		iterations := 0
		if res != nil {
			state = res.State.String()
			iterations = res.Iterations
		}
		monitor.Done(state, iterations)
		done <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil {
		return nil, err
	}
	out := <-done
	return out.res, out.err
}

type progressObserver struct{}

func (progressObserver) OnStep(step *opt.Step, iteration int) {
	status := ""
	if step.After == nil {
		status = "  (rejected)"
	}
	fmt.Printf("step %4d  energy %16.8f eV  max|F| %12.6f eV/A%s\n",
		iteration, step.Energy, step.MaxForce(), status)
}

func printSummary(res *opt.Result, runID string) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", runID)
	fmt.Fprintf(w, "state\t%s\n", res.State)
	fmt.Fprintf(w, "iterations\t%d\n", res.Iterations)
	for _, key := range []string{"energy_initial", "energy_final", "energy_drop", "max_force_final", "max_displacement_final"} {
		if v, ok := res.Metrics[key]; ok {
			fmt.Fprintf(w, "%s\t%.8f\n", key, v)
		}
	}
	w.Flush()

	if energies := res.History.Energies(); len(energies) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(energies,
			asciigraph.Height(10),
			asciigraph.Width(64),
			asciigraph.Caption("energy per step [eV]")))
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tITER\tCALCULATOR\tENERGY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.6f\n",
			r.ID, r.State, r.Iterations, r.Calculator, r.Metrics["energy_final"])
	}
	return w.Flush()
}

func summarizeRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.LoadMetadata(args[0])
	if err != nil {
		return err
	}
	h, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", meta.ID)
	fmt.Fprintf(w, "state\t%s\n", meta.State)
	fmt.Fprintf(w, "iterations\t%d\n", meta.Iterations)
	fmt.Fprintf(w, "calculator\t%s\n", meta.Calculator)
	fmt.Fprintf(w, "policy\t%s\n", meta.Policy)
	fmt.Fprintf(w, "criterion\t%s\n", meta.Criterion)
	w.Flush()

	fmt.Println()
	for i, step := range h.Steps {
		fmt.Printf("step %4d  energy %16.8f eV\n", i, step.Energy)
	}

	if len(h.Steps) > 1 {
		energies := make([]float64, len(h.Steps))
		for i, s := range h.Steps {
			energies[i] = s.Energy
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(energies,
			asciigraph.Height(10),
			asciigraph.Width(64),
			asciigraph.Caption("energy per step [eV]")))
	}
	return nil
}
