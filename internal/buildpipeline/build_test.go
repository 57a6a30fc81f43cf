package buildpipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tessera/internal/compile"
	"tessera/internal/diag"
)

type stubCompiler struct{}

func (stubCompiler) Compile(_ context.Context, req *compile.Request) (*compile.Result, error) {
	if strings.Contains(req.Source, "broken") {
		return nil, &diag.CompilerError{Kind: diag.KindCompilerDiagnostic, Message: "bad syntax"}
	}
	res := &compile.Result{Code: "export default 1;\n"}
	if strings.Contains(req.Source, "<style>") {
		res.CSS = []compile.CSSResult{{Code: "h1{color:red}"}, {Code: "p{margin:0}"}}
		res.Map = `{"version":3}`
	}
	if strings.Contains(req.Source, "unused") {
		res.Diagnostics = []diag.Diagnostic{
			{Severity: diag.SevWarning, Text: "unused import", Location: diag.Location{Line: 2, Column: 1}},
			{Severity: diag.SevHint, Text: "consider is:inline"},
		}
	}
	return res, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func project(t *testing.T, files map[string]string) (root, src, out string) {
	t.Helper()
	root = t.TempDir()
	src = filepath.Join(root, "src")
	out = filepath.Join(root, "dist")
	for rel, content := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root, src, out
}

func TestBuildWritesArtifacts(t *testing.T) {
	root, src, out := project(t, map[string]string{
		"pages/index.tes":     "<h1/><style>h1{}</style>",
		"components/Card.tes": "import x from 'unused'",
	})
	rec := &recorder{}
	res, err := Build(context.Background(), &BuildRequest{
		Compiler:    stubCompiler{},
		ProjectRoot: root,
		SrcDir:      src,
		OutDir:      out,
		MinSeverity: diag.SevWarning,
		Progress:    rec,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, rel := range []string{"pages/index.mjs", "pages/index.mjs.map", "pages/index.css", "components/Card.mjs"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "components", "Card.css")); !os.IsNotExist(err) {
		t.Fatalf("Card has no styles, no css expected")
	}
	css, _ := os.ReadFile(filepath.Join(out, "pages", "index.css"))
	if string(css) != "h1{color:red}\np{margin:0}" {
		t.Fatalf("css: %q", css)
	}
	if len(res.Outputs) != 4 {
		t.Fatalf("outputs: %v", res.Outputs)
	}

	items := res.Diagnostics.Items()
	if len(items) != 1 || items[0].Text != "unused import" {
		t.Fatalf("diagnostics: %+v", items)
	}
	if items[0].Location.File != filepath.Join(src, "components", "Card.tes") {
		t.Fatalf("diagnostic file not filled: %q", items[0].Location.File)
	}
	for _, stage := range []Stage{StageDiscover, StageCompile, StageEmit} {
		if !res.Timings.Has(stage) {
			t.Fatalf("missing timing for %s", stage)
		}
	}

	var done int
	for _, ev := range rec.events {
		if ev.File != "" && ev.Status == StatusDone {
			done++
		}
	}
	if done != 2 {
		t.Fatalf("want 2 file done events, got %d", done)
	}
}

func TestBuildReportsFailures(t *testing.T) {
	root, src, out := project(t, map[string]string{
		"a.tes": "<h1/>",
		"b.tes": "broken",
	})
	res, err := Build(context.Background(), &BuildRequest{
		Compiler:    stubCompiler{},
		ProjectRoot: root,
		SrcDir:      src,
		OutDir:      out,
	})
	var failed *FailedError
	if !errors.As(err, &failed) || failed.Failed != 1 || failed.Total != 2 {
		t.Fatalf("want 1 of 2 failed, got %v", err)
	}
	if err.Error() != "1 of 2 components failed to compile" {
		t.Fatalf("message: %q", err.Error())
	}
	if res.Failed != 1 || res.Files[1].Err == nil {
		t.Fatalf("result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(out, "a.mjs")); err != nil {
		t.Fatalf("successful component should still be emitted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "b.mjs")); !os.IsNotExist(err) {
		t.Fatalf("failed component must not be emitted")
	}
}

func TestBuildMissingSrcDir(t *testing.T) {
	dir := t.TempDir()
	_, err := Build(context.Background(), &BuildRequest{
		Compiler: stubCompiler{},
		SrcDir:   filepath.Join(dir, "nope"),
		OutDir:   filepath.Join(dir, "dist"),
	})
	if err == nil || !strings.Contains(err.Error(), "failed to list components") {
		t.Fatalf("want discovery error, got %v", err)
	}
}

func TestOutputBase(t *testing.T) {
	got, err := OutputBase("/p/src", "/p/dist", "/p/src/pages/blog/post.tes")
	if err != nil || got != filepath.Join("/p/dist", "pages", "blog", "post") {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := OutputBase("/p/src", "/p/dist", "/p/other/x.tes"); err == nil {
		t.Fatalf("expected error for file outside src")
	}
}

func TestWriteArtifactsTrimsModuleSuffix(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "page.mjs")
	written, err := WriteArtifacts(base, &compile.Result{Code: "export {}"})
	if err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	if len(written) != 1 || written[0] != base {
		t.Fatalf("written: got %v, want [%s]", written, base)
	}
	data, err := os.ReadFile(base)
	if err != nil || string(data) != "export {}" {
		t.Fatalf("module content: %q, %v", data, err)
	}
}
