// Package config loads the tessera.toml project manifest.
package config

import (
	"path/filepath"
	"strings"

	"tessera/internal/compile"
)

// FileName is the manifest looked up from the working directory upwards.
const FileName = "tessera.toml"

// Config is the merged project configuration.
type Config struct {
	// Path is the manifest file, empty when none was found.
	Path string `toml:"-"`
	// Dir is the directory relative paths are resolved against.
	Dir string `toml:"-"`

	Project  ProjectConfig  `toml:"project"`
	Compiler CompilerConfig `toml:"compiler"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
}

type ProjectConfig struct {
	Name       string   `toml:"name"`
	Root       string   `toml:"root" validate:"required"`
	Src        string   `toml:"src" validate:"required"`
	Out        string   `toml:"out" validate:"required"`
	Site       string   `toml:"site" validate:"omitempty,url"`
	Extensions []string `toml:"extensions" validate:"required,min=1,dive,startswith=."`
}

type CompilerConfig struct {
	// Command is the transformer executable and its arguments.
	Command             []string `toml:"command"`
	CompressHTML        bool     `toml:"compress_html"`
	ScopedStyleStrategy string   `toml:"scoped_style_strategy" validate:"omitempty,oneof=where class attribute"`
	AnnotateSource      bool     `toml:"annotate_source"`
	RenderScript        bool     `toml:"render_script"`
	Jobs                int      `toml:"jobs" validate:"gte=0"`
}

type CacheConfig struct {
	Enabled      bool   `toml:"enabled"`
	Dir          string `toml:"dir"`
	ResolverSize int    `toml:"resolver_size" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

// Default returns the configuration used when no manifest sets a value.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Root:       ".",
			Src:        "src",
			Out:        "dist",
			Extensions: []string{".tes"},
		},
		Compiler: CompilerConfig{
			ScopedStyleStrategy: string(compile.StrategyWhere),
		},
		Cache: CacheConfig{
			Enabled:      true,
			ResolverSize: 4096,
		},
		Server: ServerConfig{
			Addr: ":4321",
		},
	}
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Dir, filepath.FromSlash(p))
}

// ProjectRoot is the absolute project root used for filename normalization.
func (c *Config) ProjectRoot() string {
	return c.abs(c.Project.Root)
}

// SrcDir is the absolute directory holding component sources.
func (c *Config) SrcDir() string {
	return filepath.Join(c.ProjectRoot(), filepath.FromSlash(c.Project.Src))
}

// OutDir is the absolute build output directory.
func (c *Config) OutDir() string {
	return filepath.Join(c.ProjectRoot(), filepath.FromSlash(c.Project.Out))
}

// CacheDir is the configured cache directory, or "" for the user cache.
func (c *Config) CacheDir() string {
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return ""
	}
	return c.abs(c.Cache.Dir)
}

// CompileOptions maps the manifest onto compile options.
func (c *Config) CompileOptions() compile.Options {
	return compile.Options{
		CompactOutput:       c.Compiler.CompressHTML,
		ScopedStyleStrategy: compile.ScopedStyleStrategy(c.Compiler.ScopedStyleStrategy),
		AnnotateSource:      c.Compiler.AnnotateSource,
		RenderScriptInline:  c.Compiler.RenderScript,
		Site:                c.Project.Site,
	}
}
