package stylesheet

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// SyntaxError is a preprocessor failure with a position relative to the
// stylesheet body (1-based).
type SyntaxError struct {
	Reason string
	Line   int
	Column int
	Frame  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Reason)
}

var importRe = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']([^"']+)["']`)

// Native handles plain CSS: it checks block structure and reports relative
// @import targets as dependencies. Other style languages are rejected.
type Native struct{}

// Preprocess implements Preprocessor.
func (Native) Preprocess(ctx context.Context, _ string, req Request) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	switch lang := req.Lang(); lang {
	case "css", "pcss", "postcss":
	default:
		return Output{}, fmt.Errorf("Preprocessor dependency %q not found. Did you install it?", preprocessorPackage(lang))
	}
	if err := checkBlocks(req.Content); err != nil {
		return Output{}, err
	}

	var deps []string
	dir := path.Dir(strings.ReplaceAll(req.Filename, `\`, "/"))
	for _, m := range importRe.FindAllStringSubmatch(req.Content, -1) {
		target := m[1]
		if !strings.HasPrefix(target, "./") && !strings.HasPrefix(target, "../") {
			continue
		}
		deps = append(deps, path.Join(dir, target))
	}
	return Output{Code: req.Content, Deps: deps}, nil
}

func preprocessorPackage(lang string) string {
	switch lang {
	case "scss":
		return "sass"
	case "styl":
		return "stylus"
	}
	return lang
}

// checkBlocks walks the stylesheet and reports the first unbalanced brace.
// Comments and quoted strings are skipped.
func checkBlocks(css string) error {
	type open struct{ line, col int }
	var stack []open
	line, col := 1, 0
	for i := 0; i < len(css); i++ {
		ch := css[i]
		col++
		switch {
		case ch == '\n':
			line++
			col = 0
		case ch == '/' && i+1 < len(css) && css[i+1] == '*':
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				return &SyntaxError{Reason: "Unclosed comment", Line: line, Column: col, Frame: frameAt(css, line)}
			}
			skipped := css[i : i+2+end+2]
			if n := strings.Count(skipped, "\n"); n > 0 {
				line += n
				col = len(skipped) - strings.LastIndexByte(skipped, '\n') - 1
			} else {
				col += len(skipped) - 1
			}
			i += len(skipped) - 1
		case ch == '"' || ch == '\'':
			j := i + 1
			for j < len(css) && css[j] != ch && css[j] != '\n' {
				if css[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(css) || css[j] == '\n' {
				return &SyntaxError{Reason: "Unclosed string", Line: line, Column: col, Frame: frameAt(css, line)}
			}
			col += j - i
			i = j
		case ch == '{':
			stack = append(stack, open{line, col})
		case ch == '}':
			if len(stack) == 0 {
				return &SyntaxError{Reason: "Unexpected }", Line: line, Column: col, Frame: frameAt(css, line)}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		last := stack[len(stack)-1]
		return &SyntaxError{Reason: "Unclosed block", Line: last.line, Column: last.col, Frame: frameAt(css, last.line)}
	}
	return nil
}

func frameAt(css string, line int) string {
	lines := strings.Split(css, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}
