package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tessera/internal/server"
	"tessera/internal/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Serve the compiler over HTTP",
	Long:  "Serve POST /compile, /healthz, /metrics and, with --trace-ring-size, /debug/trace.",
	Args:  cobra.NoArgs,
	RunE:  serveExecution,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: manifest [server] addr)")
}

func serveExecution(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

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
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(compiler, server.Options{
		Addr:        addr,
		ProjectRoot: cfg.ProjectRoot(),
		Compile:     cfg.CompileOptions(),
		Tracer:      trace.FromContext(ctx),
		Ring:        ring,
	})
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "tessera %s listening on %s\n", versionLabel(), addr)
	}
	return srv.ListenAndServe(ctx)
}

