package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tessera/internal/compile"
	"tessera/internal/diag"
	"tessera/internal/diagfmt"
	"tessera/internal/trace"
)

type fakeCompiler struct {
	res  *compile.Result
	err  error
	last *compile.Request
}

func (f *fakeCompiler) Compile(_ context.Context, req *compile.Request) (*compile.Result, error) {
	f.last = req
	return f.res, f.err
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/compile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompileSuccess(t *testing.T) {
	fc := &fakeCompiler{res: &compile.Result{Code: "export default 1", Scope: "abc123"}}
	srv := New(fc, Options{ProjectRoot: "/proj", Compile: compile.Options{Site: "https://example.com"}})

	rec := post(t, srv.Handler(), `{"filename":"/proj/src/a.tes","source":"<p/>"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var res compile.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Code != "export default 1" {
		t.Fatalf("code: got %q", res.Code)
	}
	if got := rec.Header().Get("X-Tessera-Scope"); got != "abc123" {
		t.Fatalf("scope header: got %q", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id")
	}
	if fc.last.ProjectRoot != "/proj" || fc.last.Options.Site != "https://example.com" || fc.last.Source != "<p/>" {
		t.Fatalf("unexpected request: %+v", fc.last)
	}
}

func TestCompileFailureIs422(t *testing.T) {
	fc := &fakeCompiler{err: &diag.CompilerError{
		Kind:     diag.KindCompilerDiagnostic,
		Message:  "bad",
		Location: diag.ErrorLocation{File: "/proj/src/a.tes", Line: 3, Column: 1},
	}}
	srv := New(fc, Options{ProjectRoot: "/proj"})

	rec := post(t, srv.Handler(), `{"filename":"src/a.tes","source":"x"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d", rec.Code)
	}
	var out diagfmt.ErrorJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != "CompilerError" || out.Location == nil || out.Location.File != "src/a.tes" || out.Location.Line != 3 {
		t.Fatalf("unexpected failure body: %+v", out)
	}
}

func TestCompileRejectsBadInput(t *testing.T) {
	srv := New(&fakeCompiler{}, Options{})
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"filename":`},
		{"unknown field", `{"filename":"a.tes","extra":1}`},
		{"missing filename", `{"source":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv.Handler(), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d", rec.Code)
			}
		})
	}

	rec := post(t, srv.Handler(), `{"source":"x"}`)
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Fields) != 1 || body.Fields[0] != "filename: failed required" {
		t.Fatalf("fields: got %v", body.Fields)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := New(&fakeCompiler{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "fixed")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-Id") != "fixed" {
		t.Fatalf("got status %d id %q", rec.Code, rec.Header().Get("X-Request-Id"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(&fakeCompiler{res: &compile.Result{}}, Options{})
	post(t, srv.Handler(), `{"filename":"a.tes"}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `tessera_compile_total{outcome="ok"}`) {
		t.Fatalf("metrics missing compile counter:\n%s", rec.Body.String())
	}
}

func TestDebugTrace(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeCompiler{}, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/trace", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("without ring: got %d", rec.Code)
	}

	ring := trace.NewRingTracer(16, trace.LevelDebug)
	srv := New(&fakeCompiler{res: &compile.Result{}}, Options{Tracer: ring, Ring: ring})
	post(t, srv.Handler(), `{"filename":"a.tes"}`)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/trace", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"a.tes"`) {
		t.Fatalf("trace dump: status %d body %s", rec.Code, rec.Body.String())
	}
}
