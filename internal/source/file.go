package source

import (
	"crypto/sha256"
	"fmt"
	"os"

	"fortio.org/safecast"
)

// New builds a File from already normalized content.
func New(path string, content []byte, flags FileFlags) *File {
	return &File{
		Path:    NormalizePath(path),
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
		Flags:   flags,
	}
}

// Virtual builds a File for content that did not come from disk.
func Virtual(path, content string) *File {
	data, hadBOM := removeBOM([]byte(content))
	data, hadCRLF := normalizeCRLF(data)
	flags := FileVirtual
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return New(path, data, flags)
}

// Load reads a file from disk, strips a UTF-8 BOM and normalizes CRLF.
func Load(path string) (*File, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return New(path, content, flags), nil
}

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int {
	if f == nil {
		return 0
	}
	n := len(f.LineIdx) + 1
	if len(f.Content) > 0 && f.Content[len(f.Content)-1] == '\n' {
		n--
	}
	return n
}

// Position converts a byte offset into a line/column pair.
func (f *File) Position(off int) (LineCol, error) {
	if off < 0 || off > len(f.Content) {
		return LineCol{}, fmt.Errorf("offset %d out of range for %s", off, f.Path)
	}
	u, err := safecast.Conv[uint32](off)
	if err != nil {
		return LineCol{}, fmt.Errorf("offset overflow: %w", err)
	}
	return toLineCol(f.LineIdx, u), nil
}

// LineText returns the text of a 1-based line without its newline.
// The second result is false when the line does not exist.
func (f *File) LineText(line int) (string, bool) {
	if f == nil || line < 1 || line > f.LineCount() {
		return "", false
	}
	start := 0
	if line > 1 {
		start = int(f.LineIdx[line-2]) + 1
	}
	end := len(f.Content)
	if line-1 < len(f.LineIdx) {
		end = int(f.LineIdx[line-1])
	}
	return string(f.Content[start:end]), true
}
