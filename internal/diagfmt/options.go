package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shows paths relative to BaseDir when they are inside it.
	PathModeAuto PathMode = iota
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures human-readable output.
type PrettyOpts struct {
	Color bool
	// Context is the number of source lines shown above the reported line.
	Context  int
	PathMode PathMode
	BaseDir  string
	// ShowStack prints the transformer stack of unknown compiler errors.
	ShowStack bool
	// Sources maps file paths to contents for files not on disk.
	Sources map[string]string
}

// JSONOpts configures JSON output.
type JSONOpts struct {
	PathMode     PathMode
	BaseDir      string
	Max          int // 0 keeps all diagnostics
	IncludeStack bool
}

// SarifRunMeta describes the tool in SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}
