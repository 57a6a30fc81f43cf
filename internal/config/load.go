package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment overrides, applied after the manifest and the project .env file.
const (
	EnvSite     = "TESSERA_SITE"
	EnvCompiler = "TESSERA_COMPILER"
	EnvCacheDir = "TESSERA_CACHE_DIR"
	EnvAddr     = "TESSERA_ADDR"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Find walks up from startDir looking for tessera.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and decodes the manifest for startDir. Without a manifest the
// defaults apply with startDir as the project directory.
func Load(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		dir, err := filepath.Abs(startDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve start directory: %w", err)
		}
		cfg := Default()
		cfg.Dir = dir
		return finish(cfg)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes the manifest at path over the defaults.
func LoadFile(path string) (*Config, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if meta.IsDefined("project", "name") && strings.TrimSpace(cfg.Project.Name) == "" {
		return nil, fmt.Errorf("%s: [project].name is empty", path)
	}
	cfg.Path = path
	cfg.Dir = filepath.Dir(path)
	out, err := finish(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func finish(cfg *Config) (*Config, error) {
	if err := loadDotEnv(cfg.Dir); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv reads <dir>/.env; variables already set in the process win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := env(EnvSite); v != "" {
		cfg.Project.Site = v
	}
	if v := env(EnvCompiler); v != "" {
		cfg.Compiler.Command = strings.Fields(v)
	}
	if v := env(EnvCacheDir); v != "" {
		cfg.Cache.Dir = v
	}
	if v := env(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate checks field constraints and reports the first violation by its
// manifest key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Errorf("invalid %s: failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("invalid %s: failed %s (got %v)", key, fe.Tag(), fe.Value())
}
