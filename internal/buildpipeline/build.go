// Package buildpipeline compiles a project's component tree and writes the
// generated modules.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tessera/internal/compile"
	"tessera/internal/diag"
	"tessera/internal/driver"
	"tessera/internal/trace"
)

// BuildRequest configures a build.
type BuildRequest struct {
	Compiler    driver.Compiler
	ProjectRoot string
	SrcDir      string
	OutDir      string
	Extensions  []string
	// Files overrides discovery when non-nil.
	Files        []string
	Jobs         int
	Cache        *driver.DiskCache
	CacheVersion string
	CacheCommand []string
	Options      compile.Options
	// MaxDiagnostics bounds the collected diagnostics; <= 0 is unlimited.
	MaxDiagnostics int
	// MinSeverity filters collected diagnostics; zero keeps all.
	MinSeverity diag.Severity
	Progress    ProgressSink
}

// BuildResult describes a finished build.
type BuildResult struct {
	Files       []driver.FileResult
	Outputs     []string
	Diagnostics *diag.Bag
	// Dropped counts diagnostics over MaxDiagnostics.
	Dropped int
	Failed  int
	Cached  int
	Timings Timings
}

// FailedError reports how many components did not compile.
type FailedError struct {
	Failed int
	Total  int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d of %d components failed to compile", e.Failed, e.Total)
}

// Discover lists the component files of req.SrcDir.
func Discover(req *BuildRequest) ([]string, error) {
	if req.Files != nil {
		return req.Files, nil
	}
	exts := req.Extensions
	if len(exts) == 0 {
		exts = []string{".tes"}
	}
	files, err := driver.ListComponentFiles(req.SrcDir, exts)
	if err != nil {
		return nil, fmt.Errorf("failed to list components in %s: %w", req.SrcDir, err)
	}
	return files, nil
}

// Build discovers, compiles and emits. Per-file failures do not stop the
// build; they are reported through the result and a *FailedError.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if req == nil || req.Compiler == nil {
		return result, errors.New("missing build request")
	}
	result.Diagnostics = diag.NewBag(req.MaxDiagnostics)
	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx)

	start := time.Now()
	emitStage(req.Progress, StageDiscover, StatusWorking, nil, 0)
	span := trace.Begin(tracer, trace.ScopeBatch, string(StageDiscover), parent)
	files, err := Discover(req)
	span.Fail(err).WithExtra("files", fmt.Sprint(len(files))).End("")
	result.Timings.Set(StageDiscover, time.Since(start))
	if err != nil {
		emitStage(req.Progress, StageDiscover, StatusError, err, time.Since(start))
		return result, err
	}
	emitStage(req.Progress, StageDiscover, StatusDone, nil, time.Since(start))

	start = time.Now()
	emitStage(req.Progress, StageCompile, StatusWorking, nil, 0)
	span = trace.Begin(tracer, trace.ScopeBatch, string(StageCompile), parent)
	results, err := driver.CompileFiles(trace.WithSpan(ctx, span), req.Compiler, files, driver.Options{
		Root:         req.ProjectRoot,
		Jobs:         req.Jobs,
		Cache:        req.Cache,
		CacheVersion: req.CacheVersion,
		CacheCommand: req.CacheCommand,
		Compile:      req.Options,
		Observer:     fileObserver(req.Progress),
	})
	result.Files = results
	for i := range results {
		switch {
		case results[i].Err != nil:
			result.Failed++
		case results[i].Cached:
			result.Cached++
		}
	}
	span.Fail(err).WithExtra("failed", fmt.Sprint(result.Failed)).WithExtra("cached", fmt.Sprint(result.Cached)).End("")
	result.Timings.Set(StageCompile, time.Since(start))
	if err != nil {
		emitStage(req.Progress, StageCompile, StatusError, err, time.Since(start))
		return result, err
	}
	emitStage(req.Progress, StageCompile, StatusDone, nil, time.Since(start))

	start = time.Now()
	emitStage(req.Progress, StageEmit, StatusWorking, nil, 0)
	span = trace.Begin(tracer, trace.ScopeBatch, string(StageEmit), parent)
	for i := range results {
		fr := &results[i]
		if fr.Err != nil {
			continue
		}
		result.Dropped += result.Diagnostics.AddAll(withFile(fr.Result.Diagnostics, fr.Path), minSeverity(req.MinSeverity))
		written, err := writeOutputs(req.SrcDir, req.OutDir, fr.Path, fr.Result)
		result.Outputs = append(result.Outputs, written...)
		if err != nil {
			span.Fail(err).End("")
			result.Timings.Set(StageEmit, time.Since(start))
			emitStage(req.Progress, StageEmit, StatusError, err, time.Since(start))
			return result, err
		}
	}
	result.Diagnostics.Sort()
	span.WithExtra("outputs", fmt.Sprint(len(result.Outputs))).End("")
	result.Timings.Set(StageEmit, time.Since(start))
	emitStage(req.Progress, StageEmit, StatusDone, nil, time.Since(start))

	if result.Failed > 0 {
		return result, &FailedError{Failed: result.Failed, Total: len(files)}
	}
	return result, nil
}

func minSeverity(s diag.Severity) diag.Severity {
	if s == 0 {
		return diag.SevHint
	}
	return s
}

// withFile fills in the component path for diagnostics reported without one.
func withFile(items []diag.Diagnostic, path string) []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(items))
	for i, d := range items {
		if d.Location.File == "" {
			d.Location.File = path
		}
		out[i] = d
	}
	return out
}

// OutputBase returns the artifact path prefix for a component:
// <outDir>/<path relative to srcDir without extension>.
func OutputBase(srcDir, outDir, path string) (string, error) {
	rel, err := filepath.Rel(srcDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, srcDir)
	}
	return filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))), nil
}

func writeOutputs(srcDir, outDir, path string, res *compile.Result) ([]string, error) {
	base, err := OutputBase(srcDir, outDir, path)
	if err != nil {
		return nil, err
	}
	return WriteArtifacts(base, res)
}

// WriteArtifacts writes <base>.mjs, plus <base>.mjs.map and <base>.css when
// the result has a source map or stylesheets. A trailing .mjs on base is
// ignored.
func WriteArtifacts(base string, res *compile.Result) ([]string, error) {
	base = strings.TrimSuffix(base, ".mjs")
	if err := os.MkdirAll(filepath.Dir(base), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	type artifact struct{ path, data string }
	arts := []artifact{{base + ".mjs", res.Code}}
	if res.Map != "" {
		arts = append(arts, artifact{base + ".mjs.map", res.Map})
	}
	if len(res.CSS) > 0 {
		parts := make([]string, 0, len(res.CSS))
		for _, c := range res.CSS {
			parts = append(parts, c.Code)
		}
		arts = append(arts, artifact{base + ".css", strings.Join(parts, "\n")})
	}

	written := make([]string, 0, len(arts))
	for _, a := range arts {
		if err := os.WriteFile(a.path, []byte(a.data), 0o600); err != nil {
			return written, fmt.Errorf("failed to write build output %q: %w", a.path, err)
		}
		written = append(written, a.path)
	}
	return written, nil
}

func emitStage(sink ProgressSink, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func fileObserver(sink ProgressSink) driver.FileObserver {
	if sink == nil {
		return nil
	}
	return func(ev driver.FileEvent) {
		out := Event{File: ev.Path, Stage: StageCompile, Err: ev.Err, Elapsed: ev.Elapsed}
		switch ev.Status {
		case driver.FileQueued:
			out.Status = StatusQueued
		case driver.FileCompiling:
			out.Status = StatusWorking
		case driver.FileCached:
			out.Status = StatusCached
		case driver.FileDone:
			out.Status = StatusDone
		case driver.FileFailed:
			out.Status = StatusError
		}
		sink.OnEvent(out)
	}
}
