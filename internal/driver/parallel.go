package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tessera/internal/compile"
	"tessera/internal/trace"
)

// Compiler is the part of compile.Compiler the driver needs.
type Compiler interface {
	Compile(ctx context.Context, req *compile.Request) (*compile.Result, error)
}

// Options configures CompileFiles.
type Options struct {
	// Root is the project root filenames are normalized against.
	Root string
	// Jobs bounds concurrent compiles; <= 0 means GOMAXPROCS.
	Jobs int
	// Cache, when set, short-circuits unchanged files.
	Cache *DiskCache
	// CacheVersion and CacheCommand are mixed into cache keys.
	CacheVersion string
	CacheCommand []string
	Compile      compile.Options
	Observer     FileObserver
}

// FileResult is the outcome of compiling one file. Exactly one of Result and
// Err is set.
type FileResult struct {
	Path    string
	Result  *compile.Result
	Err     error
	Cached  bool
	Elapsed time.Duration
}

// ListComponentFiles returns the sorted files under dir whose extension is
// one of exts. Hidden directories and node_modules are skipped.
func ListComponentFiles(dir string, exts []string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if want[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CompileFiles compiles files in parallel. Per-file failures are recorded
// in the results, which keep the order of files; the returned error is only
// set when ctx is cancelled.
func CompileFiles(ctx context.Context, c Compiler, files []string, opts Options) ([]FileResult, error) {
	results := make([]FileResult, len(files))
	if len(files) == 0 {
		return results, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx)
	notify := func(ev FileEvent) {
		if opts.Observer != nil {
			opts.Observer(ev)
		}
	}
	for _, path := range files {
		notify(FileEvent{Path: path, Status: FileQueued})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			span := trace.Begin(tracer, trace.ScopeFile, path, parent)
			res := CompileFile(trace.WithSpan(gctx, span), c, path, opts)
			switch {
			case res.Err != nil:
				span.Fail(res.Err)
				notify(FileEvent{Path: path, Status: FileFailed, Err: res.Err, Elapsed: res.Elapsed})
			case res.Cached:
				span.WithExtra("cached", "true")
				notify(FileEvent{Path: path, Status: FileCached, Elapsed: res.Elapsed})
			default:
				notify(FileEvent{Path: path, Status: FileDone, Elapsed: res.Elapsed})
			}
			span.End("")
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// CompileFile reads and compiles one file, consulting opts.Cache.
func CompileFile(ctx context.Context, c Compiler, path string, opts Options) FileResult {
	start := time.Now()
	res := FileResult{Path: path}
	src, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read %s: %w", path, err)
		res.Elapsed = time.Since(start)
		return res
	}

	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx)
	var key Digest
	if opts.Cache != nil {
		key = CacheKey(opts.CacheVersion, opts.CacheCommand, opts.Root, path, opts.Compile, src)
		cached, ok, err := opts.Cache.Get(key, path)
		if err != nil {
			trace.Point(tracer, trace.ScopeFile, "cache", err.Error(), parent)
		}
		if ok {
			res.Result = cached
			res.Cached = true
			res.Elapsed = time.Since(start)
			return res
		}
	}

	if opts.Observer != nil {
		opts.Observer(FileEvent{Path: path, Status: FileCompiling})
	}
	out, err := c.Compile(ctx, &compile.Request{
		Filename:    path,
		Source:      string(src),
		ProjectRoot: opts.Root,
		Options:     opts.Compile,
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = out
	if opts.Cache != nil {
		if err := opts.Cache.Put(key, path, out); err != nil {
			trace.Point(tracer, trace.ScopeFile, "cache", err.Error(), parent)
		}
	}
	return res
}
