package compile

import (
	"encoding/json"
	"fmt"
)

const (
	// InternalURL is the runtime module generated code imports from.
	InternalURL = "tessera/compiler-runtime"
	// TransitionsAnimationURL is the stylesheet backing view transitions.
	TransitionsAnimationURL = "tessera/components/viewtransitions.css"
)

// ScopedStyleStrategy selects how component styles are scoped.
type ScopedStyleStrategy string

const (
	StrategyWhere     ScopedStyleStrategy = "where"
	StrategyClass     ScopedStyleStrategy = "class"
	StrategyAttribute ScopedStyleStrategy = "attribute"
)

// ParseScopedStyleStrategy parses a strategy name; "" means StrategyWhere.
func ParseScopedStyleStrategy(s string) (ScopedStyleStrategy, error) {
	switch ScopedStyleStrategy(s) {
	case "", StrategyWhere:
		return StrategyWhere, nil
	case StrategyClass:
		return StrategyClass, nil
	case StrategyAttribute:
		return StrategyAttribute, nil
	}
	return "", fmt.Errorf("unknown scoped style strategy %q (want where, class or attribute)", s)
}

// Options are the compile settings that map onto transformer options.
type Options struct {
	CompactOutput       bool                `json:"compactOutput" msgpack:"compact_output"`
	ScopedStyleStrategy ScopedStyleStrategy `json:"scopedStyleStrategy" msgpack:"scoped_style_strategy"`
	AnnotateSource      bool                `json:"annotateSource" msgpack:"annotate_source"`
	RenderScriptInline  bool                `json:"renderScriptInline" msgpack:"render_script_inline"`
	// Site is the configured site URL; empty means unset.
	Site string `json:"site,omitempty" msgpack:"site"`
}

// Request is the input of one compile call.
type Request struct {
	Filename    string
	Source      string
	ProjectRoot string
	Options     Options
}

func siteJSON(site string) string {
	if site == "" {
		return ""
	}
	b, err := json.Marshal(site)
	if err != nil {
		return ""
	}
	return string(b)
}
