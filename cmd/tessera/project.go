package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tessera/internal/compile"
	"tessera/internal/config"
	"tessera/internal/driver"
	"tessera/internal/resolve"
	"tessera/internal/stylesheet"
	"tessera/internal/transform"
)

// loadConfig reads --config, or searches for tessera.toml from the working
// directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd)
}

// newCompiler wires the configured transformer command, the native
// stylesheet preprocessor and the file-system resolver.
func newCompiler(cfg *config.Config) (*compile.Compiler, error) {
	if len(cfg.Compiler.Command) == 0 {
		return nil, fmt.Errorf("no transformer configured: set [compiler] command in %s or %s", config.FileName, config.EnvCompiler)
	}
	var r resolve.Resolver = resolve.FS{}
	if cfg.Cache.ResolverSize > 0 {
		cached, err := resolve.NewCached(r, cfg.Cache.ResolverSize)
		if err != nil {
			return nil, err
		}
		r = cached
	}
	t := &transform.Process{Command: cfg.Compiler.Command, Dir: cfg.ProjectRoot()}
	return compile.New(t, stylesheet.Native{}, r), nil
}

// openCache opens the compile cache, or returns nil when it is disabled.
func openCache(cfg *config.Config, disabled bool) (*driver.DiskCache, error) {
	if disabled || !cfg.Cache.Enabled {
		return nil, nil
	}
	dir := cfg.CacheDir()
	if dir == "" {
		var err error
		if dir, err = driver.DefaultCacheDir("tessera"); err != nil {
			return nil, err
		}
	}
	return driver.OpenDiskCache(dir)
}
