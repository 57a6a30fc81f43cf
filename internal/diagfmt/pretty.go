package diagfmt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"tessera/internal/diag"
	"tessera/internal/source"
)

const tabWidth = 4

type printer struct {
	w     io.Writer
	opts  PrettyOpts
	files map[string]*source.File
	err   error

	errColor  *color.Color
	warnColor *color.Color
	noteColor *color.Color
	gutter    *color.Color
	bold      *color.Color
}

func newPrinter(w io.Writer, opts PrettyOpts) *printer {
	return &printer{
		w:         w,
		opts:      opts,
		files:     make(map[string]*source.File),
		errColor:  paint(opts.Color, color.FgRed, color.Bold),
		warnColor: paint(opts.Color, color.FgYellow, color.Bold),
		noteColor: paint(opts.Color, color.FgCyan, color.Bold),
		gutter:    paint(opts.Color, color.FgBlue, color.Bold),
		bold:      paint(opts.Color, color.Bold),
	}
}

func paint(enabled bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// PrettyError renders a compile failure:
//
//	error[CompilerError]: bad syntax
//	  --> src/pages/index.tes:3:1
//	   |
//	 3 | <div
//	   | ^
//	   = hint: close the element
//
// Aggregates render every wrapped failure.
func PrettyError(w io.Writer, err error, opts PrettyOpts) error {
	if err == nil {
		return nil
	}
	p := newPrinter(w, opts)
	var agg *diag.AggregateError
	var ce *diag.CompilerError
	switch {
	case errors.As(err, &agg):
		p.printf("%s: %s\n", p.errColor.Sprintf("error[%s]", agg.Name()),
			p.bold.Sprintf("%d stylesheets failed to compile", len(agg.Errors)))
		for _, child := range agg.Errors {
			p.printf("\n")
			p.renderError(child)
		}
	case errors.As(err, &ce):
		p.renderCompilerError(ce)
	default:
		p.printf("%s: %s\n", p.errColor.Sprint("error"), p.bold.Sprint(err.Error()))
	}
	return p.err
}

func (p *printer) renderError(err error) {
	var ce *diag.CompilerError
	if errors.As(err, &ce) {
		p.renderCompilerError(ce)
		return
	}
	p.printf("%s: %s\n", p.errColor.Sprint("error"), p.bold.Sprint(err.Error()))
}

func (p *printer) renderCompilerError(ce *diag.CompilerError) {
	p.printf("%s: %s\n", p.errColor.Sprintf("error[%s]", ce.Name()), p.bold.Sprint(ce.Message))
	loc := diag.Location{File: ce.Location.File, Line: ce.Location.Line, Column: ce.Location.Column}
	shown := p.renderLocation(loc, p.errColor)
	if !shown && ce.Frame != "" {
		for _, line := range strings.Split(strings.TrimRight(ce.Frame, "\n"), "\n") {
			p.printf("   %s %s\n", p.gutter.Sprint("|"), line)
		}
	}
	if ce.Hint != "" {
		p.printf("   %s %s %s\n", p.gutter.Sprint("="), p.bold.Sprint("hint:"), ce.Hint)
	}
	if p.opts.ShowStack && ce.Stack != "" {
		p.printf("   %s %s\n", p.gutter.Sprint("="), p.bold.Sprint("stack:"))
		for _, line := range strings.Split(strings.TrimRight(ce.Stack, "\n"), "\n") {
			p.printf("       %s\n", line)
		}
	}
}

// PrettyDiagnostics renders non-fatal diagnostics in the same layout.
func PrettyDiagnostics(w io.Writer, items []diag.Diagnostic, opts PrettyOpts) error {
	p := newPrinter(w, opts)
	for i, d := range items {
		if i > 0 {
			p.printf("\n")
		}
		c := p.severityColor(d.Severity)
		label := strings.ToLower(d.Severity.String())
		if d.Code != 0 {
			label = fmt.Sprintf("%s[%d]", label, d.Code)
		}
		p.printf("%s: %s\n", c.Sprint(label), p.bold.Sprint(d.Text))
		p.renderLocation(d.Location, c)
		if d.Hint != "" {
			p.printf("   %s %s %s\n", p.gutter.Sprint("="), p.bold.Sprint("hint:"), d.Hint)
		}
	}
	return p.err
}

func (p *printer) severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.errColor
	case diag.SevWarning:
		return p.warnColor
	default:
		return p.noteColor
	}
}

// renderLocation prints the --> line and, when the source is available, the
// excerpt with a caret. It reports whether an excerpt was printed.
func (p *printer) renderLocation(loc diag.Location, c *color.Color) bool {
	if loc.File == "" {
		return false
	}
	shownLoc := loc
	shownLoc.File = formatPath(loc.File, p.opts.PathMode, p.opts.BaseDir)
	p.printf("  %s %s\n", p.gutter.Sprint("-->"), shownLoc.String())

	if loc.Line <= 0 {
		return false
	}
	f := p.file(loc.File)
	text, ok := f.LineText(loc.Line)
	if !ok {
		return false
	}

	first := max(loc.Line-p.opts.Context, 1)
	width := len(strconv.Itoa(loc.Line))
	pad := strings.Repeat(" ", width)
	p.printf("%s %s\n", pad, p.gutter.Sprint("|"))
	for n := first; n < loc.Line; n++ {
		if prev, ok := f.LineText(n); ok {
			p.printf("%s %s\n", p.gutter.Sprintf("%*d |", width, n), expandTabs(prev))
		}
	}
	p.printf("%s %s\n", p.gutter.Sprintf("%*d |", width, loc.Line), expandTabs(text))
	if loc.Column > 0 {
		p.printf("%s %s %s\n", pad, p.gutter.Sprint("|"), c.Sprint(caret(text, loc.Column, loc.Length)))
	}
	return true
}

func (p *printer) file(path string) *source.File {
	if f, ok := p.files[path]; ok {
		return f
	}
	var f *source.File
	if content, ok := p.opts.Sources[path]; ok {
		f = source.Virtual(path, content)
	} else if loaded, err := source.Load(path); err == nil {
		f = loaded
	}
	p.files[path] = f
	return f
}

// caret returns the marker line for a 1-based character column, padded to
// the display width of the text before it.
func caret(line string, column, length int) string {
	prefix := line
	n := 0
	for i := range line {
		if n == column-1 {
			prefix = line[:i]
			break
		}
		n++
	}
	if n < column-1 {
		prefix = line
	}
	lead := runewidth.StringWidth(expandTabs(prefix))

	span := 1
	if length > 1 {
		rest := strings.TrimPrefix(line, prefix)
		if utf8.RuneCountInString(rest) >= length {
			r := []rune(rest)[:length]
			span = max(runewidth.StringWidth(string(r)), 1)
		} else {
			span = max(runewidth.StringWidth(rest), 1)
		}
	}
	return strings.Repeat(" ", lead) + "^" + strings.Repeat("~", span-1)
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
