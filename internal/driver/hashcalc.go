package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"tessera/internal/compile"
)

// Digest is a SHA-256 cache key.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// CacheKey hashes everything a compile result depends on: the tool version,
// the transformer command, the project root and filename (together they
// decide the normalized filename the transformer sees), the options and the
// source.
func CacheKey(version string, command []string, root, filename string, opts compile.Options, src []byte) Digest {
	h := sha256.New()
	field := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	flag := func(b bool) {
		if b {
			field("1")
		} else {
			field("0")
		}
	}

	field(version)
	field(strconv.Itoa(len(command)))
	for _, arg := range command {
		field(arg)
	}
	field(root)
	field(filename)
	flag(opts.CompactOutput)
	field(string(opts.ScopedStyleStrategy))
	flag(opts.AnnotateSource)
	flag(opts.RenderScriptInline)
	field(opts.Site)
	field(string(src))

	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
