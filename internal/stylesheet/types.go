// Package stylesheet collects the results of preprocessing the stylesheets
// embedded in one component.
package stylesheet

import "context"

// Request is one embedded stylesheet handed over by the transformer.
type Request struct {
	// Filename is the component that embeds the stylesheet.
	Filename string
	Content  string
	// Attrs are the attributes of the style element (lang, is:global, ...).
	Attrs map[string]string
}

// Lang returns the lower-cased style language, "css" when unset.
func (r Request) Lang() string {
	return langOf(r.Attrs)
}

// Metadata is what a successful preprocessing run reports besides the code.
type Metadata struct {
	IsGlobal     bool     `json:"isGlobal" msgpack:"is_global"`
	Dependencies []string `json:"dependencies" msgpack:"dependencies"`
	Lang         string   `json:"lang,omitempty" msgpack:"lang"`
}

// Output is the result of preprocessing one stylesheet.
type Output struct {
	Code string
	Map  string
	Deps []string
}

// Preprocessor turns one embedded stylesheet into final CSS.
type Preprocessor interface {
	// Preprocess transforms req. id identifies the stylesheet within its
	// component and is stable for a given call index.
	Preprocess(ctx context.Context, id string, req Request) (Output, error)
}

// PreprocessorFunc adapts a function to Preprocessor.
type PreprocessorFunc func(ctx context.Context, id string, req Request) (Output, error)

func (f PreprocessorFunc) Preprocess(ctx context.Context, id string, req Request) (Output, error) {
	return f(ctx, id, req)
}
