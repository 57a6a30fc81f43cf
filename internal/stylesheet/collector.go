package stylesheet

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"tessera/internal/diag"
	"tessera/internal/source"
)

// HookResult is what the collector hands back to the transformer for one
// stylesheet. On failure Code is empty and Error carries the message.
type HookResult struct {
	Index int
	Code  string
	Map   string
	Error string
}

// Collector is created for a single compile call. Its Hook may be invoked
// concurrently; every call takes the next index on entry, so indices follow
// invocation order no matter when the preprocessor finishes. Callers that
// learn the order before dispatching a call use Reserve or HookAt instead.
type Collector struct {
	filename string
	file     *source.File
	pre      Preprocessor

	mu      sync.Mutex
	next    int
	results map[int]Metadata
	errs    map[int]error
}

// NewCollector returns a collector for the component filename whose source
// text is src.
func NewCollector(filename, src string, pre Preprocessor) *Collector {
	return &Collector{
		filename: filename,
		file:     source.Virtual(filename, src),
		pre:      pre,
		results:  make(map[int]Metadata),
		errs:     make(map[int]error),
	}
}

// Hook preprocesses one embedded stylesheet.
func (c *Collector) Hook(ctx context.Context, content string, attrs map[string]string) HookResult {
	return c.HookAt(ctx, c.Reserve(), content, attrs)
}

// Reserve takes the next index without running anything.
func (c *Collector) Reserve() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := c.next
	c.next++
	return index
}

// HookAt preprocesses one embedded stylesheet under an index the caller
// already owns, either from Reserve or from an ordered stream of calls.
func (c *Collector) HookAt(ctx context.Context, index int, content string, attrs map[string]string) HookResult {
	c.mu.Lock()
	if index >= c.next {
		c.next = index + 1
	}
	c.mu.Unlock()

	lang := langOf(attrs)
	req := Request{Filename: c.filename, Content: content, Attrs: attrs}
	out, err := c.run(ctx, StyleID(c.filename, index, lang), req)
	if err != nil {
		styleErr := c.enhance(err, index, content)
		c.mu.Lock()
		c.errs[index] = styleErr
		c.mu.Unlock()
		return HookResult{Index: index, Error: err.Error()}
	}

	deps := make([]string, 0, len(out.Deps))
	for _, d := range out.Deps {
		deps = append(deps, source.NormalizePath(d))
	}
	_, global := attrs["is:global"]
	c.mu.Lock()
	c.results[index] = Metadata{IsGlobal: global, Dependencies: deps, Lang: lang}
	c.mu.Unlock()
	return HookResult{Index: index, Code: out.Code, Map: out.Map}
}

func (c *Collector) run(ctx context.Context, id string, req Request) (out Output, err error) {
	if c.pre == nil {
		return Output{}, errors.New("no stylesheet preprocessor configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return c.pre.Preprocess(ctx, id, req)
}

// Calls returns how many times Hook was invoked.
func (c *Collector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Metadata returns the success metadata recorded for index i.
func (c *Collector) Metadata(i int) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.results[i]
	return m, ok
}

// Errors returns the recorded failures ordered by call index.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	idx := make([]int, 0, len(c.errs))
	for i := range c.errs {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]error, len(idx))
	for k, i := range idx {
		out[k] = c.errs[i]
	}
	return out
}

// StyleID names the index-th stylesheet of filename.
func StyleID(filename string, index int, lang string) string {
	return fmt.Sprintf("%s?tessera&type=style&index=%d&lang.%s", filename, index, lang)
}

// enhance turns a preprocessor failure into a CSS error located in the
// component file.
func (c *Collector) enhance(err error, index int, content string) *diag.CompilerError {
	var ce *diag.CompilerError
	if errors.As(err, &ce) && ce.Kind == diag.KindStyleTransform {
		return ce
	}

	// zero-based line where the stylesheet body starts inside the component
	baseLine := 0
	if start := c.bodyOffset(index, content); start >= 0 {
		if lc, posErr := c.file.Position(start); posErr == nil {
			baseLine = int(lc.Line) - 1
		}
	}

	out := &diag.CompilerError{
		Kind:     diag.KindStyleTransform,
		Message:  err.Error(),
		Location: diag.ErrorLocation{File: c.filename},
		Cause:    err,
	}
	var se *SyntaxError
	var pe *panicError
	switch {
	case errors.As(err, &se) && se.Line > 0:
		out.Message = se.Reason
		out.Location.Line = baseLine + se.Line
		out.Location.Column = se.Column
		out.Frame = se.Frame
	case errors.As(err, &pe):
		out.Location.Line = baseLine + 1
		out.Stack = pe.stack
	default:
		out.Location.Line = baseLine + 1
	}
	return out
}

// bodyOffset returns where the index-th stylesheet body starts in the
// component, or -1. The search begins at the index-th <style tag so identical
// bodies resolve to their own block.
func (c *Collector) bodyOffset(index int, content string) int {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if content == "" {
		return -1
	}
	text := string(c.file.Content)
	if from := styleTagOffset(text, index); from >= 0 {
		if at := strings.Index(text[from:], content); at >= 0 {
			return from + at
		}
	}
	return strings.Index(text, content)
}

// styleTagOffset returns the byte offset of the index-th "<style" in text,
// matched case-insensitively, or -1.
func styleTagOffset(text string, index int) int {
	const tag = "<style"
	seen := 0
	for i := 0; i+len(tag) <= len(text); i++ {
		if text[i] != '<' || !strings.EqualFold(text[i:i+len(tag)], tag) {
			continue
		}
		if seen == index {
			return i
		}
		seen++
	}
	return -1
}

func langOf(attrs map[string]string) string {
	lang := strings.ToLower(strings.TrimSpace(attrs["lang"]))
	lang = strings.TrimPrefix(lang, ".")
	if lang == "" {
		return "css"
	}
	return lang
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("stylesheet preprocessor panicked: %v", e.value)
}
