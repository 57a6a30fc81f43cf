package source

import (
	"net/url"
	"path"
	"strings"
)

// NormalizePath gives p a uniform shape: forward slashes and a cleaned form.
// Windows volume prefixes are kept as-is.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// RootPath accepts a project root given as a directory path or a file:// URL
// and returns it as a normalized path.
func RootPath(root string) string {
	if strings.HasPrefix(root, "file:") {
		if u, err := url.Parse(root); err == nil {
			p := u.Path
			// file:///C:/proj parses to /C:/proj
			if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
				p = p[1:]
			}
			return NormalizePath(p)
		}
	}
	return NormalizePath(root)
}

// NormalizeFilename makes filename relative to the project root, keeping one
// leading slash (/src/Page.tes). Files outside the root, such as virtual or
// externally resolved modules, come back normalized but otherwise unchanged.
func NormalizeFilename(filename, root string) string {
	normalized := NormalizePath(filename)
	r := RootPath(root)
	if r == "" {
		return normalized
	}
	if !strings.HasSuffix(r, "/") {
		r += "/"
	}
	if strings.HasPrefix(normalized, r) {
		return normalized[len(r)-1:]
	}
	return normalized
}
