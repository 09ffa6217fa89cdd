package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/contactsim/internal/analysis"
	"github.com/san-kum/contactsim/internal/automation"
	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/experiment"
	"github.com/san-kum/contactsim/internal/export"
	"github.com/san-kum/contactsim/internal/metrics"
	"github.com/san-kum/contactsim/internal/optim"
	"github.com/san-kum/contactsim/internal/sim"
	"github.com/san-kum/contactsim/internal/storage"
	"github.com/san-kum/contactsim/internal/viz"
)

var (
	dataDir    string
	dt         float64
	duration   float64
	seed       int64
	iterations int
	pushOut    int
	parallel   bool
	noManifold bool
	oneShot    bool
	configFile string
	preset     string
	series     string
	tuneMetric string
	tuneIters  string
	tunePush   string
	benchRuns  int
	outFile    string
	saveRuns   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "contactsim",
		Short:        "rigid body contact solver lab",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".contactsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene and save the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runScene,
	}
	addSceneFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "run a scene with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "benchmark a scene across iteration budgets",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScene,
	}
	addSceneFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchRuns, "runs", 1, "parallel ensemble runs per configuration")

	tuneCmd := &cobra.Command{
		Use:   "tune [scene]",
		Short: "grid search solver iterations for a scene",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneScene,
	}
	addSceneFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "max_penetration", "metric to minimize")
	tuneCmd.Flags().StringVar(&tuneIters, "iters", "2,4,8,16", "velocity iteration counts")
	tuneCmd.Flags().StringVar(&tunePush, "push", "1,2,4,8", "push-out iteration counts")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "jitter and settling analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&series, "series", "kinetic_energy", "series to analyze ("+strings.Join(analysis.SeriesNames(), ", ")+")")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write run samples as csv to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a run as json to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list scenes",
		RunE:  listScenes,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list presets for a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [scene]",
		Short: "run a scene and write the final frame as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotScene,
	}
	addSceneFlags(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&outFile, "out", "o", "snapshot.svg", "output file")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "plot one series of a run as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVar(&series, "series", "kinetic_energy", "series to plot")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "series.svg", "output file")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario of scenes",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&saveRuns, "save", true, "save steps marked save")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, tuneCmd, listCmd, showCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, snapshotCmd, scenarioCmd, scenesCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for scene placement")
	cmd.Flags().IntVar(&iterations, "iterations", 8, "velocity iterations per step")
	cmd.Flags().IntVar(&pushOut, "push-out", 4, "push-out iterations per step")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "solve islands in parallel")
	cmd.Flags().BoolVar(&noManifold, "single-point", false, "disable contact manifolds")
	cmd.Flags().BoolVar(&oneShot, "one-shot", false, "build full manifolds once per step")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// resolveConfig layers scene defaults, then a preset, then a config file,
// then flags set on the command line.
func resolveConfig(cmd *cobra.Command, reg *experiment.Registry, scene string) (*config.Config, error) {
	settings, err := reg.Settings(scene)
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	cfg.Scene = scene
	cfg.Gravity = [3]float64(settings.Gravity)
	cfg.CellSize = settings.CellSize
	cfg.Collision = settings.Collision
	cfg.Solver = settings.Solver

	if preset != "" {
		p := config.GetPreset(scene, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(scene))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if loaded.Scene != scene {
			return nil, fmt.Errorf("config %s is for scene %s, not %s", configFile, loaded.Scene, scene)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("iterations") {
		cfg.Solver.Iterations = iterations
	}
	if flags.Changed("push-out") {
		cfg.Solver.PushOutIterations = pushOut
	}
	if flags.Changed("parallel") {
		cfg.Solver.Parallel = parallel
	}
	if flags.Changed("single-point") {
		cfg.Collision.UseManifolds = !noManifold
	}
	if flags.Changed("one-shot") {
		cfg.Collision.OneShotManifolds = oneShot
	}
	return cfg, cfg.Validate()
}

func experimentConfig(cfg *config.Config) experiment.Config {
	return experiment.Config{
		Scene:    cfg.Scene,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
		Seed:     cfg.Seed,
		Settings: cfg.WorldSettings(),
	}
}

func runScene(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	cfg, err := resolveConfig(cmd, reg, args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(experimentConfig(cfg))
	if err := exp.Setup(reg, reg.DefaultMetrics()); err != nil {
		return err
	}

	fmt.Printf("running %s...\n", cfg.Scene)
	start := time.Now()

	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}
	fmt.Println("\nmetrics:")
	for _, name := range metrics.Names() {
		if val, ok := result.Metrics[name]; ok {
			fmt.Printf("  %s: %.6f\n", name, val)
		}
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	cfg, err := resolveConfig(cmd, reg, args[0])
	if err != nil {
		return err
	}

	build := func() (*sim.World, error) {
		return reg.Build(cfg.Scene, cfg.WorldSettings(), cfg.Seed)
	}
	m, err := viz.NewModel(build, cfg.Scene, cfg.Dt)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return err
	}
	return final.(viz.Model).Err()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tITERS\tPUSH\tMANIFOLDS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\t%v\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Iterations,
			run.PushOutIterations,
			run.Manifolds,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(samples))

	for _, name := range analysis.SeriesNames() {
		graph := asciigraph.Plot(analysis.Series(samples, name),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(strings.ReplaceAll(name, "_", " ")),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	data := analysis.Series(samples, series)
	if data == nil {
		return fmt.Errorf("unknown series %q", series)
	}
	if len(data) < 2 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("scene: %s\n\n", meta.Scene)

	spec := analysis.JitterSpectrum(data, meta.Dt)
	graph := asciigraph.Plot(spec.Power,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+series+")"),
	)
	fmt.Println(graph)
	fmt.Println()

	sum := analysis.Summarize(data)
	fmt.Printf("min: %.6f  max: %.6f  mean: %.6f  final: %.6f\n", sum.Min, sum.Max, sum.Mean, sum.Final)
	fmt.Printf("jitter power: %.6g\n", spec.Total())
	if f, p := spec.DominantFrequency(); p > 0 {
		fmt.Printf("dominant frequency: %.3f hz\n", f)
	}
	tol := 0.01 * (sum.Max - sum.Min)
	fmt.Printf("settle time (1%%): %.3f s\n", analysis.SettleTime(data, meta.Dt, tol))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	return storage.WriteSamples(os.Stdout, samples)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	result := &sim.Result{Samples: samples, Metrics: meta.Metrics, StepsTaken: meta.Steps}
	return storage.WriteJSON(os.Stdout, cfg, result)
}

func benchScene(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	base, err := resolveConfig(cmd, reg, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s (%d run(s) each)\n\n", base.Scene, benchRuns)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITERS\tPARALLEL\tSTEPS\tTIME\tSTEPS/SEC\tMAX PEN")

	for _, iters := range []int{1, 4, 8, 16} {
		for _, par := range []bool{false, true} {
			cfg := base.Clone()
			cfg.Solver.Iterations = iters
			cfg.Solver.Parallel = par

			factory := func(s int64) (*sim.World, error) {
				return reg.Build(cfg.Scene, cfg.WorldSettings(), s)
			}
			ens := sim.NewEnsemble(factory, func() []sim.Metric {
				return []sim.Metric{metrics.NewPenetration()}
			}, benchRuns, cfg.Seed)

			start := time.Now()
			results, err := ens.Run(context.Background(), sim.Config{Dt: cfg.Dt, Duration: cfg.Duration, ValidateState: true})
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			steps, pen := 0, 0.0
			for _, r := range results {
				steps += r.StepsTaken
				if v := r.Metrics["max_penetration"]; v > pen {
					pen = v
				}
			}
			fmt.Fprintf(w, "%d\t%v\t%d\t%v\t%.0f\t%.5f\n",
				iters, par, steps, elapsed.Round(time.Millisecond), float64(steps)/elapsed.Seconds(), pen)
		}
	}

	return w.Flush()
}

func parseInts(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", f, err)
		}
		out = append(out, float64(v))
	}
	return out, nil
}

func tuneScene(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	base, err := resolveConfig(cmd, reg, args[0])
	if err != nil {
		return err
	}
	iters, err := parseInts(tuneIters)
	if err != nil {
		return err
	}
	push, err := parseInts(tunePush)
	if err != nil {
		return err
	}

	g := optim.NewGridSearch([]string{"iterations", "push_out_iterations"}, [][]float64{iters, push})
	best, val, trials, err := g.Search(cmd.Context(), reg, base, tuneMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ITERS\tPUSH\t%s\n", strings.ToUpper(tuneMetric))
	for _, tr := range trials {
		value := fmt.Sprintf("%.6f", tr.Value)
		if tr.Err != nil {
			value = "error: " + tr.Err.Error()
		}
		fmt.Fprintf(w, "%.0f\t%.0f\t%s\n", tr.Params["iterations"], tr.Params["push_out_iterations"], value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest: iterations=%.0f push_out_iterations=%.0f %s=%.6f\n",
		best["iterations"], best["push_out_iterations"], tuneMetric, val)
	return nil
}

func listScenes(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tDESCRIPTION\tPRESETS")
	for _, name := range reg.ListScenes() {
		s, _ := reg.GetScene(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, s.Description, strings.Join(config.ListPresets(name), ", "))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	scenes := experiment.NewRegistry().ListScenes()
	if len(args) == 1 {
		scenes = args[:1]
	}
	for _, scene := range scenes {
		names := config.ListPresets(scene)
		if len(names) == 0 {
			continue
		}
		fmt.Printf("%s:\n", scene)
		for _, name := range names {
			p := config.GetPreset(scene, name)
			fmt.Printf("  %-12s dt=%.4f time=%.1fs iters=%d push=%d manifolds=%v\n",
				name, p.Dt, p.Duration, p.Solver.Iterations, p.Solver.PushOutIterations, p.Collision.UseManifolds)
		}
	}
	return nil
}

func snapshotScene(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	cfg, err := resolveConfig(cmd, reg, args[0])
	if err != nil {
		return err
	}

	exp := experiment.New(experimentConfig(cfg))
	if err := exp.Setup(reg, nil); err != nil {
		return err
	}
	if _, err := exp.Run(cmd.Context()); err != nil {
		return err
	}

	w := exp.GetSimulator().World()
	canvas := viz.NewCanvas(120, 40)
	viz.DrawWorld(canvas, w, viz.FitView(w, canvas, 0))
	if err := os.WriteFile(outFile, []byte(export.CanvasToSVG(canvas, 4)), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s at t=%.2fs\n", outFile, w.Time())
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	data := analysis.Series(samples, series)
	if data == nil {
		return fmt.Errorf("unknown series %q", series)
	}
	svg := export.SeriesToSVG(data, meta.Dt, 800, 300, "#00ccff")
	if svg == "" {
		return fmt.Errorf("not enough samples to plot")
	}
	if err := os.WriteFile(outFile, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	var st *storage.Store
	if saveRuns {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	fmt.Printf("scenario %s: %s\n\n", sc.Name, sc.Description)
	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), st)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSCENE\tSTEPS\tMAX PEN\tCONVERGED\tRUN")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.5f\t%.2f\t%s\n",
			i+1, r.Config.Scene, r.Result.StepsTaken,
			r.Result.Metrics["max_penetration"], r.Result.Metrics["convergence"], r.RunID)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}
