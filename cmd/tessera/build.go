package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/buildpipeline"
	"tessera/internal/diag"
	"tessera/internal/diagfmt"
	"tessera/internal/trace"
	"tessera/internal/version"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags]",
	Short: "Compile every component of the project",
	Long:  "Compile every component under the project's src directory and write .mjs, .mjs.map and .css artifacts to the out directory.",
	Args:  cobra.NoArgs,
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	buildCmd.Flags().String("format", "text", "report format (text|json|sarif)")
	buildCmd.Flags().IntP("jobs", "j", 0, "parallel compiles (0 = manifest value or GOMAXPROCS)")
	buildCmd.Flags().Bool("no-cache", false, "bypass the compile cache")
	buildCmd.Flags().String("min-severity", "warning", "lowest diagnostic severity to report (error|warning|info|hint)")
	buildCmd.Flags().Bool("show-stack", false, "print transformer stacks of unknown compiler errors")
}

type buildFileReport struct {
	Path    string             `json:"path"`
	Cached  bool               `json:"cached,omitempty"`
	Elapsed float64            `json:"elapsed_ms"`
	Error   *diagfmt.ErrorJSON `json:"error,omitempty"`
}

type buildReport struct {
	Files       []buildFileReport         `json:"files"`
	Outputs     []string                  `json:"outputs"`
	Failed      int                       `json:"failed"`
	Cached      int                       `json:"cached"`
	Dropped     int                       `json:"dropped_diagnostics,omitempty"`
	Diagnostics diagfmt.DiagnosticsOutput `json:"diagnostics"`
}

func buildExecution(cmd *cobra.Command, _ []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	severityValue, err := cmd.Flags().GetString("min-severity")
	if err != nil {
		return err
	}
	showStack, err := cmd.Flags().GetBool("show-stack")
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	format = strings.ToLower(format)
	switch format {
	case "text", "json", "sarif":
	default:
		return fmt.Errorf("unsupported format %q (must be text, json or sarif)", format)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	minSeverity, err := diag.ParseSeverity(severityValue)
	if err != nil {
		return err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cleanup, ring, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	compiler, err := newCompiler(cfg)
	if err != nil {
		return err
	}
	cache, err := openCache(cfg, noCache)
	if err != nil {
		return err
	}
	if jobs == 0 {
		jobs = cfg.Compiler.Jobs
	}

	req := buildpipeline.BuildRequest{
		Compiler:       compiler,
		ProjectRoot:    cfg.ProjectRoot(),
		SrcDir:         cfg.SrcDir(),
		OutDir:         cfg.OutDir(),
		Extensions:     cfg.Project.Extensions,
		Jobs:           jobs,
		Cache:          cache,
		CacheVersion:   version.Fingerprint(),
		CacheCommand:   cfg.Compiler.Command,
		Options:        cfg.CompileOptions(),
		MaxDiagnostics: maxDiagnostics,
		MinSeverity:    minSeverity,
	}

	var res buildpipeline.BuildResult
	var buildErr error
	if shouldUseTUI(mode, format) {
		files, discoverErr := buildpipeline.Discover(&req)
		if discoverErr != nil {
			return discoverErr
		}
		title := "tessera build"
		if cfg.Project.Name != "" {
			title += " " + cfg.Project.Name
		}
		res, buildErr = runBuildWithUI(cmd.Context(), title, files, &req)
	} else {
		res, buildErr = buildpipeline.Build(cmd.Context(), &req)
	}

	var failed *buildpipeline.FailedError
	if buildErr != nil && !errors.As(buildErr, &failed) {
		dumpRing(cmd.ErrOrStderr(), ring)
		return buildErr
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	switch format {
	case "json":
		err = writeBuildJSON(stdout, res, cfg.ProjectRoot(), showStack)
	case "sarif":
		err = diagfmt.Sarif(stdout, res.Diagnostics.Items(), failures(res), diagfmt.SarifRunMeta{
			ToolName:       "tessera",
			ToolVersion:    version.Version,
			InvocationArgs: os.Args[1:],
		})
	default:
		err = writeBuildText(stdout, stderr, res, cfg.ProjectRoot(), cfg.OutDir(), quiet, showStack)
	}
	if err != nil {
		return err
	}
	if showTimings {
		printStageTimings(stderr, res.Timings)
	}
	if buildErr != nil {
		dumpRing(stderr, ring)
	}
	return buildErr
}

func failures(res buildpipeline.BuildResult) []error {
	var out []error
	for _, fr := range res.Files {
		if fr.Err != nil {
			out = append(out, fr.Err)
		}
	}
	return out
}

func writeBuildText(stdout, stderr io.Writer, res buildpipeline.BuildResult, root, outDir string, quiet, showStack bool) error {
	pretty := diagfmt.PrettyOpts{Color: useColor(os.Stderr), Context: 1, BaseDir: root, ShowStack: showStack}
	for _, err := range failures(res) {
		if err := diagfmt.PrettyError(stderr, err, pretty); err != nil {
			return err
		}
		fmt.Fprintln(stderr)
	}
	if !quiet && res.Diagnostics.Len() > 0 {
		if err := diagfmt.PrettyDiagnostics(stderr, res.Diagnostics.Items(), pretty); err != nil {
			return err
		}
		if res.Dropped > 0 {
			fmt.Fprintf(stderr, "... %d more diagnostics not shown\n", res.Dropped)
		}
	}
	if quiet {
		return nil
	}
	compiled := len(res.Files) - res.Failed
	_, err := fmt.Fprintf(stdout, "compiled %d of %d components (%d cached) into %s\n", compiled, len(res.Files), res.Cached, outDir)
	return err
}

func writeBuildJSON(w io.Writer, res buildpipeline.BuildResult, root string, showStack bool) error {
	opts := diagfmt.JSONOpts{BaseDir: root, IncludeStack: showStack}
	report := buildReport{
		Files:       make([]buildFileReport, 0, len(res.Files)),
		Outputs:     res.Outputs,
		Failed:      res.Failed,
		Cached:      res.Cached,
		Dropped:     res.Dropped,
		Diagnostics: diagfmt.BuildDiagnosticsOutput(res.Diagnostics.Items(), opts),
	}
	for _, fr := range res.Files {
		item := buildFileReport{Path: fr.Path, Cached: fr.Cached, Elapsed: toMillis(fr.Elapsed)}
		if fr.Err != nil {
			out := diagfmt.BuildErrorOutput(fr.Err, opts)
			item.Error = &out
		}
		report.Files = append(report.Files, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// dumpRing prints the recent trace events kept in memory, if any.
func dumpRing(w io.Writer, ring *trace.RingTracer) {
	if ring == nil {
		return
	}
	fmt.Fprintln(w, "recent trace events:")
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
