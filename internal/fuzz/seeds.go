package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

const maxSeedBytes = 64 << 10

var styleBlockRe = regexp.MustCompile(`(?s)<style[^>]*>(.*?)</style>`)

// addStyleSeeds adds the stylesheets embedded in testdata components plus a
// few fixed shapes.
func addStyleSeeds(f *testing.F) {
	for _, seed := range []string{
		"",
		"a { color: red; }",
		"@import './base.css';\n.card { padding: 1rem; }",
		"@media (min-width: 40em) { .x { display: none } }",
		"/* unterminated",
		".a { content: \"}\"; }",
		"}",
	} {
		f.Add(seed)
	}
	forEachComponent(func(src []byte) {
		for _, m := range styleBlockRe.FindAllSubmatch(src, -1) {
			f.Add(string(clampSeed(m[1])))
		}
	})
}

// forEachComponent calls fn with every .tes file under the repository's
// testdata directory.
func forEachComponent(fn func(src []byte)) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".tes" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		fn(src)
		return nil
	})
}

func clampSeed(b []byte) []byte {
	if len(b) > maxSeedBytes {
		b = b[:maxSeedBytes]
	}
	return append([]byte(nil), b...)
}
