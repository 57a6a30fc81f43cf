// Package resolve maps import specifiers found in components to module paths.
package resolve

import (
	"context"
	"os"
	"path"
	"strings"

	"tessera/internal/source"
)

// Resolver resolves specifier as imported from importer.
type Resolver interface {
	Resolve(ctx context.Context, specifier, importer string) (string, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, specifier, importer string) (string, error)

func (f Func) Resolve(ctx context.Context, specifier, importer string) (string, error) {
	return f(ctx, specifier, importer)
}

// FS resolves relative specifiers against the importer's directory.
// Bare and absolute specifiers are returned untouched.
type FS struct {
	// Exists reports whether a file exists; nil means os.Stat.
	Exists func(path string) bool
}

var tsSiblings = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
	".mjs": {".mts"},
	".cjs": {".cts"},
}

// Resolve implements Resolver.
func (r FS) Resolve(ctx context.Context, specifier, importer string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !strings.HasPrefix(specifier, ".") {
		return specifier, nil
	}
	dir := path.Dir(source.NormalizePath(importer))
	resolved := source.NormalizePath(path.Join(dir, specifier))
	return r.preferTS(resolved), nil
}

// preferTS rewrites a missing .js-style path to an existing TypeScript sibling.
func (r FS) preferTS(p string) string {
	ext := path.Ext(p)
	candidates, ok := tsSiblings[ext]
	if !ok || r.exists(p) {
		return p
	}
	base := strings.TrimSuffix(p, ext)
	for _, alt := range candidates {
		if r.exists(base + alt) {
			return base + alt
		}
	}
	return p
}

func (r FS) exists(p string) bool {
	if r.Exists != nil {
		return r.Exists(p)
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
