// Package server exposes the compiler over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessera/internal/compile"
	"tessera/internal/diagfmt"
	"tessera/internal/trace"
)

const (
	defaultMaxBody  = 4 << 20
	shutdownTimeout = 5 * time.Second
	requestIDHeader = "x-request-id"
)

// Compiler compiles one component.
type Compiler interface {
	Compile(ctx context.Context, req *compile.Request) (*compile.Result, error)
}

// Options configures a Server.
type Options struct {
	Addr        string
	ProjectRoot string
	Compile     compile.Options
	// MaxBodyBytes caps request bodies; 0 means 4 MiB.
	MaxBodyBytes int64
	Tracer       trace.Tracer
	// Ring, when set, is served at /debug/trace.
	Ring *trace.RingTracer
}

// Server routes compile requests to a Compiler.
type Server struct {
	compiler Compiler
	opts     Options
	validate *validator.Validate
	router   chi.Router
}

type requestIDKey struct{}

type compileRequest struct {
	Filename string `json:"filename" validate:"required,max=4096"`
	Source   string `json:"source"`
}

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// New builds a server and its routes.
func New(c Compiler, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	s := &Server{compiler: c, opts: opts, validate: v}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Post("/compile", s.handleCompile)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/debug/trace", s.handleTrace)
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on Options.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = trace.WithTracer(ctx, s.opts.Tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID assigned to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h := s.responseHeaders(r)

	var body compileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		observeCompile(outcomeRejected, start)
		writeJSON(w, h, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := s.validate.Struct(body); err != nil {
		observeCompile(outcomeRejected, start)
		writeJSON(w, h, http.StatusBadRequest, errorBody{Error: "invalid request", Fields: fieldErrors(err)})
		return
	}

	tracer := trace.FromContext(r.Context())
	span := trace.Begin(tracer, trace.ScopeFile, body.Filename, trace.CurrentSpan(r.Context())).
		WithExtra("request_id", RequestID(r.Context()))
	res, err := s.compiler.Compile(trace.WithSpan(r.Context(), span), &compile.Request{
		Filename:    body.Filename,
		Source:      body.Source,
		ProjectRoot: s.opts.ProjectRoot,
		Options:     s.opts.Compile,
	})
	if err != nil {
		span.Fail(err).End("failed")
		observeCompile(outcomeFailed, start)
		out := diagfmt.BuildErrorOutput(err, diagfmt.JSONOpts{BaseDir: s.opts.ProjectRoot})
		writeJSON(w, h, http.StatusUnprocessableEntity, out)
		return
	}
	span.End("ok")
	observeCompile(outcomeOK, start)
	if res.Scope != "" {
		h.Set("x-tessera-scope", res.Scope)
	}
	writeJSON(w, h, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.responseHeaders(r), http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	h := s.responseHeaders(r)
	if s.opts.Ring == nil {
		writeJSON(w, h, http.StatusNotFound, errorBody{Error: "trace ring disabled"})
		return
	}
	h.Set("content-type", "application/x-ndjson")
	writeHeaders(w, h)
	w.WriteHeader(http.StatusOK)
	_ = s.opts.Ring.Dump(w, trace.FormatNDJSON)
}

func (s *Server) responseHeaders(r *http.Request) *Headers {
	h := NewHeaders()
	h.Set("cache-control", "no-store")
	h.Set(requestIDHeader, RequestID(r.Context()))
	return h
}

func writeJSON(w http.ResponseWriter, h *Headers, status int, v any) {
	h.Set("content-type", "application/json; charset=utf-8")
	writeHeaders(w, h)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return out
}
