// Package main implements the tessera CLI.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tessera/internal/version"
)

var rootCmd = &cobra.Command{
	Use:               "tessera",
	Short:             "Tessera component compiler",
	Long:              `Tessera compiles .tes components into JavaScript modules and scoped stylesheets.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: applyColorFlag,
}

func main() {
	rootCmd.Version = version.Styled()

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to tessera.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")

	rootCmd.PersistentFlags().String("trace", "", "write trace events to a file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 0, "keep the last N trace events in memory")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")

	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")

	if err := rootCmd.Execute(); err != nil {
		if !isReported(err) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		}
		os.Exit(1)
	}
}

// colorMode is the parsed --color value.
var colorMode = "auto"

// applyColorFlag sets the global color mode from --color.
func applyColorFlag(cmd *cobra.Command, _ []string) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "on", "off":
	case "auto", "":
		mode = "auto"
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	colorMode = mode
	color.NoColor = !useColor(os.Stdout)
	return nil
}

// useColor reports whether output written to f is colored.
func useColor(f *os.File) bool {
	switch colorMode {
	case "on":
		return true
	case "off":
		return false
	}
	return isTerminal(f) && os.Getenv("NO_COLOR") == ""
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// reportedError marks errors already printed to the user.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func isReported(err error) bool {
	_, ok := err.(reportedError)
	return ok
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
