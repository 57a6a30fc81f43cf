package source

// FileFlags records normalizations applied while loading a file.
type FileFlags uint8

const (
	// FileVirtual marks content that did not come from disk (stdin, HTTP body, tests).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File is a component source held in memory with its line index.
type File struct {
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
