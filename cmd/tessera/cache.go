package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/driver"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the compile cache",
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the compile cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := cacheDir(cfg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
		return err
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every cached compile result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := cacheDir(cfg)
		if err != nil {
			return err
		}
		cache, err := driver.OpenDiskCache(dir)
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return fmt.Errorf("failed to clean cache %s: %w", dir, err)
		}
		quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
		if err != nil {
			return fmt.Errorf("failed to get quiet flag: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", dir)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheDirCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

func cacheDir(cfg *config.Config) (string, error) {
	if dir := cfg.CacheDir(); dir != "" {
		return dir, nil
	}
	return driver.DefaultCacheDir("tessera")
}
