package stylesheet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tessera/internal/diag"
)

// gatedPreprocessor blocks every call until its content is released.
type gatedPreprocessor struct {
	started chan string
	mu      sync.Mutex
	gates   map[string]chan struct{}
	ids     map[string]string
}

func newGated(contents ...string) *gatedPreprocessor {
	g := &gatedPreprocessor{
		started: make(chan string, len(contents)),
		gates:   make(map[string]chan struct{}, len(contents)),
		ids:     make(map[string]string, len(contents)),
	}
	for _, c := range contents {
		g.gates[c] = make(chan struct{})
	}
	return g
}

func (g *gatedPreprocessor) Preprocess(ctx context.Context, id string, req Request) (Output, error) {
	g.mu.Lock()
	g.ids[req.Content] = id
	gate := g.gates[req.Content]
	g.mu.Unlock()
	g.started <- req.Content
	<-gate
	return Output{Code: strings.ToUpper(req.Content)}, nil
}

func TestHookIndexFollowsInvocationOrder(t *testing.T) {
	contents := []string{"a{}", "b{}", "c{}"}
	pre := newGated(contents...)
	c := NewCollector("/site/src/Page.tes", "", pre)

	results := make([]HookResult, len(contents))
	var wg sync.WaitGroup
	for i, content := range contents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Hook(context.Background(), content, map[string]string{"lang": "css"})
		}()
		if got := <-pre.started; got != content {
			t.Fatalf("expected %q to start, got %q", content, got)
		}
	}
	// complete in reverse order
	for i := len(contents) - 1; i >= 0; i-- {
		close(pre.gates[contents[i]])
	}
	wg.Wait()

	for i, content := range contents {
		if results[i].Index != i {
			t.Fatalf("call %d (%s) got index %d", i, content, results[i].Index)
		}
		if results[i].Code != strings.ToUpper(content) {
			t.Fatalf("call %d returned code %q", i, results[i].Code)
		}
		if want := StyleID("/site/src/Page.tes", i, "css"); pre.ids[content] != want {
			t.Fatalf("call %d: want id %q, got %q", i, want, pre.ids[content])
		}
		if _, ok := c.Metadata(i); !ok {
			t.Fatalf("missing metadata for index %d", i)
		}
	}
	if c.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", c.Calls())
	}
	if errs := c.Errors(); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestHookRecordsErrorsByIndex(t *testing.T) {
	component := "<h1>hi</h1>\n<style>\n.a { color: red }\n</style>\n<style lang=\"scss\">\n$x: 1;\n</style>\n<style>\n.b {\n  color: blue\n</style>\n"
	c := NewCollector("/site/src/Page.tes", component, Native{})
	ctx := context.Background()

	ok := c.Hook(ctx, "\n.a { color: red }\n", nil)
	scss := c.Hook(ctx, "\n$x: 1;\n", map[string]string{"lang": "scss"})
	broken := c.Hook(ctx, "\n.b {\n  color: blue\n", map[string]string{"is:global": ""})

	if ok.Error != "" || ok.Code == "" {
		t.Fatalf("first stylesheet should succeed: %+v", ok)
	}
	if scss.Error == "" || scss.Code != "" {
		t.Fatalf("scss should fail with empty code: %+v", scss)
	}
	if broken.Error == "" {
		t.Fatalf("unbalanced stylesheet should fail: %+v", broken)
	}

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	var first, second *diag.CompilerError
	if !errors.As(errs[0], &first) || !errors.As(errs[1], &second) {
		t.Fatalf("errors must be compiler errors: %v", errs)
	}
	if first.Kind != diag.KindStyleTransform || !strings.Contains(first.Message, `"sass"`) {
		t.Fatalf("unexpected first error: %+v", first)
	}
	// no position from the preprocessor: point at the <style lang="scss"> line
	if first.Location.Line != 5 || first.Location.File != "/site/src/Page.tes" {
		t.Fatalf("unexpected first location: %+v", first.Location)
	}
	// "{" on body line 2, body starts on component line 8
	if second.Message != "Unclosed block" || second.Location.Line != 9 || second.Location.Column != 4 {
		t.Fatalf("unexpected second error: %+v", second)
	}
	if _, ok := c.Metadata(1); ok {
		t.Fatalf("failed stylesheet must not have metadata")
	}
}

func TestHookRecoversPreprocessorPanic(t *testing.T) {
	pre := PreprocessorFunc(func(context.Context, string, Request) (Output, error) {
		panic("kaboom")
	})
	c := NewCollector("/a.tes", "", pre)
	res := c.Hook(context.Background(), "x{}", nil)
	if res.Error == "" {
		t.Fatalf("panic should be reported as an error")
	}
	var ce *diag.CompilerError
	if errs := c.Errors(); len(errs) != 1 || !errors.As(errs[0], &ce) || ce.Stack == "" {
		t.Fatalf("expected one style error with a stack, got %v", errs)
	}
}

func TestHookMetadata(t *testing.T) {
	pre := PreprocessorFunc(func(_ context.Context, _ string, req Request) (Output, error) {
		return Output{Code: req.Content, Deps: []string{`C:\site\src\vars.css`}}, nil
	})
	c := NewCollector("/a.tes", "", pre)
	c.Hook(context.Background(), "x{}", map[string]string{"is:global": "", "lang": "PCSS"})
	meta, ok := c.Metadata(0)
	if !ok {
		t.Fatalf("missing metadata")
	}
	if !meta.IsGlobal || meta.Lang != "pcss" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if len(meta.Dependencies) != 1 || meta.Dependencies[0] != "C:/site/src/vars.css" {
		t.Fatalf("dependencies must be normalized: %v", meta.Dependencies)
	}
}

func TestHookAtUsesCallerIndex(t *testing.T) {
	c := NewCollector("/a.tes", "", Native{})
	ctx := context.Background()

	late := c.HookAt(ctx, 2, "c{}", nil)
	early := c.HookAt(ctx, 0, "a{}", map[string]string{"is:global": ""})
	if late.Index != 2 || early.Index != 0 {
		t.Fatalf("indices not kept: %d %d", early.Index, late.Index)
	}
	if m, ok := c.Metadata(0); !ok || !m.IsGlobal {
		t.Fatalf("metadata 0: %+v %v", m, ok)
	}
	if c.Calls() != 3 {
		t.Fatalf("calls should cover the highest index, got %d", c.Calls())
	}
	if got := c.Reserve(); got != 3 {
		t.Fatalf("Reserve after HookAt: got %d, want 3", got)
	}
}

func TestHookLocatesDuplicateBodies(t *testing.T) {
	component := "<style>\n.b {\n</style>\n<p>x</p>\n<style>\n.b {\n</style>\n"
	c := NewCollector("/a.tes", component, Native{})
	ctx := context.Background()
	c.Hook(ctx, "\n.b {\n", nil)
	c.Hook(ctx, "\n.b {\n", nil)

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	var first, second *diag.CompilerError
	if !errors.As(errs[0], &first) || !errors.As(errs[1], &second) {
		t.Fatalf("errors must be compiler errors: %v", errs)
	}
	if first.Location.Line != 2 {
		t.Fatalf("first block: got line %d, want 2", first.Location.Line)
	}
	if second.Location.Line != 6 {
		t.Fatalf("second block: got line %d, want 6", second.Location.Line)
	}
}

func TestHookLocatesCRLFBody(t *testing.T) {
	component := "<h1>hi</h1>\r\n<style>\r\n.b {\r\n</style>\r\n"
	c := NewCollector("/a.tes", component, Native{})
	c.Hook(context.Background(), "\r\n.b {\r\n", nil)

	errs := c.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	var ce *diag.CompilerError
	if !errors.As(errs[0], &ce) {
		t.Fatalf("want compiler error, got %v", errs[0])
	}
	if ce.Location.Line != 3 || ce.Location.Column != 4 {
		t.Fatalf("got %d:%d, want 3:4", ce.Location.Line, ce.Location.Column)
	}
}
