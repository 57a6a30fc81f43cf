package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFSResolve(t *testing.T) {
	existing := map[string]bool{
		"/site/src/utils/format.ts":   true,
		"/site/src/lib/real.js":       true,
		"/site/src/lib/real.ts":       true,
		"/site/src/widgets/Chart.tsx": true,
	}
	r := FS{Exists: func(p string) bool { return existing[p] }}
	importer := "/site/src/pages/index.tes"

	cases := []struct {
		specifier string
		want      string
	}{
		{"../utils/format.js", "/site/src/utils/format.ts"},
		{"../lib/real.js", "/site/src/lib/real.js"},
		{"../widgets/Chart.jsx", "/site/src/widgets/Chart.tsx"},
		{"./Missing.js", "/site/src/pages/Missing.js"},
		{"./Card.tes", "/site/src/pages/Card.tes"},
		{"react", "react"},
		{"/abs/module.js", "/abs/module.js"},
		{"tessera:content", "tessera:content"},
	}
	for _, tc := range cases {
		got, err := r.Resolve(context.Background(), tc.specifier, importer)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.specifier, err)
		}
		if got != tc.want {
			t.Fatalf("%s: want %q, got %q", tc.specifier, tc.want, got)
		}
	}
}

func TestFSResolveOnDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "helper.ts"), []byte("export {}"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	importer := filepath.Join(dir, "Page.tes")
	got, err := FS{}.Resolve(context.Background(), "./helper.js", importer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.ToSlash(filepath.Join(dir, "helper.ts")); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestCachedMemoizesSuccessOnly(t *testing.T) {
	calls := 0
	fail := true
	next := Func(func(_ context.Context, specifier, importer string) (string, error) {
		calls++
		if fail {
			return "", errors.New("not yet")
		}
		return importer + "|" + specifier, nil
	})
	c, err := NewCached(next, 8)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	ctx := context.Background()

	if _, err := c.Resolve(ctx, "./a", "/x.tes"); err == nil {
		t.Fatalf("expected failure to propagate")
	}
	fail = false
	for range 3 {
		got, err := c.Resolve(ctx, "./a", "/x.tes")
		if err != nil || got != "/x.tes|./a" {
			t.Fatalf("unexpected result %q, %v", got, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls to the wrapped resolver, got %d", calls)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("purge should empty the cache")
	}
}
