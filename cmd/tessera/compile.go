package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/buildpipeline"
	"tessera/internal/diagfmt"
	"tessera/internal/driver"
	"tessera/internal/observ"
	"tessera/internal/version"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] <file>",
	Short: "Compile one component",
	Long:  "Compile one component and print its JavaScript module, or the whole result as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  compileExecution,
}

func init() {
	compileCmd.Flags().String("format", "text", "output format (text|json)")
	compileCmd.Flags().StringP("out", "o", "", "write .mjs, .mjs.map and .css artifacts next to this path instead of printing")
	compileCmd.Flags().Bool("no-cache", false, "bypass the compile cache")
	compileCmd.Flags().Bool("show-stack", false, "print transformer stacks of unknown compiler errors")
}

func compileExecution(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	showStack, err := cmd.Flags().GetBool("show-stack")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cleanup, _, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	timer := observ.NewTimer()
	phase := timer.Begin("config")
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
	timer.End(phase, cfg.Path)

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	phase = timer.Begin("compile")
	fr := driver.CompileFile(cmd.Context(), compiler, path, driver.Options{
		Root:         cfg.ProjectRoot(),
		Cache:        cache,
		CacheVersion: version.Fingerprint(),
		CacheCommand: cfg.Compiler.Command,
		Compile:      cfg.CompileOptions(),
	})
	note := ""
	if fr.Cached {
		note = "cached"
	}
	timer.End(phase, note)
	defer func() {
		if showTimings {
			fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		}
	}()

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if fr.Err != nil {
		if format == "json" {
			if err := diagfmt.JSONError(stdout, fr.Err, diagfmt.JSONOpts{BaseDir: cfg.ProjectRoot(), IncludeStack: showStack}); err != nil {
				return err
			}
		} else {
			opts := diagfmt.PrettyOpts{Color: useColor(os.Stderr), Context: 1, BaseDir: cfg.ProjectRoot(), ShowStack: showStack}
			if err := diagfmt.PrettyError(stderr, fr.Err, opts); err != nil {
				return err
			}
		}
		return reportedError{fr.Err}
	}

	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(fr.Result)
	}

	if !quiet && len(fr.Result.Diagnostics) > 0 {
		opts := diagfmt.PrettyOpts{Color: useColor(os.Stderr), BaseDir: cfg.ProjectRoot()}
		if err := diagfmt.PrettyDiagnostics(stderr, fr.Result.Diagnostics, opts); err != nil {
			return err
		}
	}

	if outPath == "" {
		_, err := fmt.Fprint(stdout, fr.Result.Code)
		return err
	}
	phase = timer.Begin("emit")
	written, err := buildpipeline.WriteArtifacts(outPath, fr.Result)
	timer.End(phase, fmt.Sprintf("%d files", len(written)))
	if err != nil {
		return err
	}
	if !quiet {
		for _, p := range written {
			fmt.Fprintln(stdout, p)
		}
	}
	return nil
}
